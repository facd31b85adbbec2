// ABOUTME: Request/response types and handlers for every dispatcher route
// ABOUTME: Response shapes are explicit structs, never raw store records

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/auth"
	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/engine"
	"github.com/mosaicgrid/mosaicd/internal/fees"
	"github.com/mosaicgrid/mosaicd/internal/perm"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// ChangeColorRequest is the JSON body for POST /v1/change-color.
type ChangeColorRequest struct {
	Sender   string          `json:"sender"`
	Position canvas.Position `json:"position"`
	Color    canvas.Color    `json:"color"`
	Payment  uint64          `json:"payment"`
}

// ChangeColorResponse reports a committed change.
type ChangeColorResponse struct {
	Position   canvas.Position  `json:"position"`
	Color      canvas.Color     `json:"color"`
	Settlement fees.Settlement  `json:"settlement"`
	Event      ColorChangeEvent `json:"event"`
}

// GrantRequest is the JSON body for POST /v1/permissions/grant.
type GrantRequest struct {
	Sender    string          `json:"sender"`
	Position  canvas.Position `json:"position"`
	Editor    string          `json:"editor"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// RevokeRequest is the JSON body for POST /v1/permissions/revoke.
type RevokeRequest struct {
	Sender   string          `json:"sender"`
	Position canvas.Position `json:"position"`
	Editor   string          `json:"editor"`
}

// PublicEditingRequest is the JSON body for POST /v1/permissions/public-editing.
type PublicEditingRequest struct {
	Sender   string          `json:"sender"`
	Position canvas.Position `json:"position"`
	Enabled  bool            `json:"enabled"`
	Fee      *uint64         `json:"fee,omitempty"`
}

// BatchGrantRequest is the JSON body for POST /v1/permissions/grant-batch.
type BatchGrantRequest struct {
	Sender string      `json:"sender"`
	Items  []GrantItem `json:"items"`
}

// GrantItem is one entry of a batch grant.
type GrantItem struct {
	Position  canvas.Position `json:"position"`
	Editor    string          `json:"editor"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// BatchRevokeRequest is the JSON body for POST /v1/permissions/revoke-batch.
type BatchRevokeRequest struct {
	Sender string       `json:"sender"`
	Items  []RevokeItem `json:"items"`
}

// RevokeItem is one entry of a batch revocation.
type RevokeItem struct {
	Position canvas.Position `json:"position"`
	Editor   string          `json:"editor"`
}

// BatchPublicEditingRequest is the JSON body for POST /v1/permissions/public-editing-batch.
type BatchPublicEditingRequest struct {
	Sender string              `json:"sender"`
	Items  []PublicEditingItem `json:"items"`
}

// PublicEditingItem is one entry of a batch public-editing update.
type PublicEditingItem struct {
	Position canvas.Position `json:"position"`
	Enabled  bool            `json:"enabled"`
	Fee      *uint64         `json:"fee,omitempty"`
}

// MintRandomRequest is the JSON body for POST /v1/mint/random.
type MintRandomRequest struct {
	Sender  string `json:"sender"`
	Payment uint64 `json:"payment"`
}

// MintPositionRequest is the JSON body for POST /v1/mint/position.
type MintPositionRequest struct {
	Sender   string          `json:"sender"`
	Position canvas.Position `json:"position"`
	Payment  uint64          `json:"payment"`
}

// ClaimResponse reports an awarded position.
type ClaimResponse struct {
	Position canvas.Position `json:"position"`
	TokenID  string          `json:"token_id"`
	Minter   string          `json:"minter"`
	MintedAt time.Time       `json:"minted_at"`
}

// WithdrawRequest is the JSON body for POST /v1/admin/withdraw.
type WithdrawRequest struct {
	Amount *uint64 `json:"amount,omitempty"`
}

// WithdrawResponse reports a completed withdrawal.
type WithdrawResponse struct {
	Withdrawn uint64 `json:"withdrawn"`
}

// TransferRequest is the JSON body for POST /v1/registry/transfer.
type TransferRequest struct {
	Position canvas.Position `json:"position"`
	NewOwner string          `json:"new_owner"`
}

// GrantView is one allow-list entry in a permissions response.
type GrantView struct {
	Editor    string     `json:"editor"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PermissionsResponse is the JSON view of a permission record.
type PermissionsResponse struct {
	Position        canvas.Position `json:"position"`
	Owner           string          `json:"owner"`
	Grants          []GrantView     `json:"grants"`
	PublicEditing   bool            `json:"public_editing"`
	PublicChangeFee *uint64         `json:"public_change_fee,omitempty"`
}

// UserStatisticsResponse is the JSON view of per-editor counters.
type UserStatisticsResponse struct {
	Identity          string     `json:"identity"`
	TotalColorChanges uint64     `json:"total_color_changes"`
	TotalFeesPaid     uint64     `json:"total_fees_paid"`
	LastColorChange   *time.Time `json:"last_color_change,omitempty"`
	ChangesInWindow   uint32     `json:"changes_in_window"`
	WindowStart       *time.Time `json:"window_start,omitempty"`
}

// ConfigResponse is the JSON view of the engine config.
type ConfigResponse struct {
	Admin               string `json:"admin"`
	Registry            string `json:"registry"`
	ColorChangeFee      uint64 `json:"color_change_fee"`
	RateLimit           uint32 `json:"rate_limit"`
	RateLimitWindow     uint64 `json:"rate_limit_window"`
	RequiresPayment     bool   `json:"requires_payment"`
	RateLimitingEnabled bool   `json:"rate_limiting_enabled"`
	RoyaltyPercent      uint8  `json:"royalty_percent"`
	MintPrice           uint64 `json:"mint_price"`
}

// ColorChangeEvent is one history row in JSON form.
type ColorChangeEvent struct {
	ID        string          `json:"id"`
	Position  canvas.Position `json:"position"`
	Editor    string          `json:"editor"`
	FromColor canvas.Color    `json:"from_color"`
	ToColor   canvas.Color    `json:"to_color"`
	FeePaid   uint64          `json:"fee_paid"`
	Timestamp time.Time       `json:"timestamp"`
}

// BalanceResponse is the JSON view of a fee balance.
type BalanceResponse struct {
	Identity string `json:"identity,omitempty"`
	Balance  uint64 `json:"balance"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid request body")
		return false
	}
	return true
}

func parseQueryPosition(r *http.Request) (canvas.Position, bool) {
	x, errX := strconv.ParseUint(r.URL.Query().Get("x"), 10, 32)
	y, errY := strconv.ParseUint(r.URL.Query().Get("y"), 10, 32)
	if errX != nil || errY != nil {
		return canvas.Position{}, false
	}
	return canvas.Position{X: uint32(x), Y: uint32(y)}, true
}

func parseQueryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func (s *Server) handleChangeColor(w http.ResponseWriter, r *http.Request) {
	var req ChangeColorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeBadRequest(w, "sender is required")
		return
	}

	result, err := s.engine.ChangeColor(r.Context(), req.Sender, req.Position, req.Color, req.Payment)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ChangeColorResponse{
		Position:   result.Position,
		Color:      result.Color,
		Settlement: result.Settlement,
		Event:      toEventView(result.Event),
	})
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || req.Editor == "" {
		writeBadRequest(w, "sender and editor are required")
		return
	}

	if err := s.perm.Grant(r.Context(), req.Position, req.Sender, req.Editor, req.ExpiresAt); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || req.Editor == "" {
		writeBadRequest(w, "sender and editor are required")
		return
	}

	if err := s.perm.Revoke(r.Context(), req.Position, req.Sender, req.Editor); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleSetPublicEditing(w http.ResponseWriter, r *http.Request) {
	var req PublicEditingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeBadRequest(w, "sender is required")
		return
	}

	if err := s.perm.SetPublicEditing(r.Context(), req.Position, req.Sender, req.Enabled, req.Fee); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleGrantBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchGrantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || len(req.Items) == 0 {
		writeBadRequest(w, "sender and items are required")
		return
	}

	items := make([]perm.GrantItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = perm.GrantItem{Position: item.Position, Editor: item.Editor, ExpiresAt: item.ExpiresAt}
	}
	if err := s.perm.GrantBatch(r.Context(), req.Sender, items); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "granted", "count": len(items)})
}

func (s *Server) handleRevokeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRevokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || len(req.Items) == 0 {
		writeBadRequest(w, "sender and items are required")
		return
	}

	items := make([]perm.RevokeItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = perm.RevokeItem{Position: item.Position, Editor: item.Editor}
	}
	if err := s.perm.RevokeBatch(r.Context(), req.Sender, items); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked", "count": len(items)})
}

func (s *Server) handleSetPublicEditingBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPublicEditingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || len(req.Items) == 0 {
		writeBadRequest(w, "sender and items are required")
		return
	}

	items := make([]perm.PublicEditingItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = perm.PublicEditingItem{Position: item.Position, Enabled: item.Enabled, Fee: item.Fee}
	}
	if err := s.perm.SetPublicEditingBatch(r.Context(), req.Sender, items); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "count": len(items)})
}

func (s *Server) handleMintRandom(w http.ResponseWriter, r *http.Request) {
	var req MintRandomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeBadRequest(w, "sender is required")
		return
	}

	claim, err := s.minter.MintRandom(r.Context(), req.Sender, req.Payment)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimView(claim))
}

func (s *Server) handleMintPosition(w http.ResponseWriter, r *http.Request) {
	var req MintPositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeBadRequest(w, "sender is required")
		return
	}

	claim, err := s.minter.MintPosition(r.Context(), req.Sender, req.Position, req.Payment)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimView(claim))
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update engine.ConfigUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	caller := auth.IdentityFromContext(r.Context())
	cfg, err := s.engine.UpdateConfig(r.Context(), caller, update)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigView(cfg))
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller := auth.IdentityFromContext(r.Context())
	withdrawn, err := s.engine.WithdrawFees(r.Context(), caller, req.Amount)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawResponse{Withdrawn: withdrawn})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewOwner == "" {
		writeBadRequest(w, "new_owner is required")
		return
	}

	caller := auth.IdentityFromContext(r.Context())
	if err := s.engine.HandleTransfer(r.Context(), caller, req.Position, req.NewOwner); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (s *Server) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	pos, ok := parseQueryPosition(r)
	if !ok {
		writeBadRequest(w, "x and y query parameters are required")
		return
	}

	rec, err := s.engine.Permissions(r.Context(), pos)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	grants := make([]GrantView, len(rec.Grants))
	for i, g := range rec.Grants {
		grants[i] = GrantView{Editor: g.Editor, ExpiresAt: g.ExpiresAt}
	}
	writeJSON(w, http.StatusOK, PermissionsResponse{
		Position:        rec.Position,
		Owner:           rec.Owner,
		Grants:          grants,
		PublicEditing:   rec.PublicEditing,
		PublicChangeFee: rec.PublicChangeFee,
	})
}

func (s *Server) handleCanChangeColor(w http.ResponseWriter, r *http.Request) {
	pos, ok := parseQueryPosition(r)
	if !ok {
		writeBadRequest(w, "x and y query parameters are required")
		return
	}
	editor := r.URL.Query().Get("editor")
	if editor == "" {
		writeBadRequest(w, "editor query parameter is required")
		return
	}

	decision, err := s.engine.CanChangeColor(r.Context(), editor, pos)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	pos, ok := parseQueryPosition(r)
	if !ok {
		writeBadRequest(w, "x and y query parameters are required")
		return
	}

	history, err := s.engine.ColorHistory(r.Context(), pos, parseQueryLimit(r, 20))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	out := make([]ColorChangeEvent, len(history))
	for i, ev := range history {
		out[i] = toEventView(ev)
	}
	writeJSON(w, http.StatusOK, map[string]any{"position": pos, "events": out})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigView(cfg))
}

func (s *Server) handleGetTotalFees(w http.ResponseWriter, r *http.Request) {
	total, err := s.engine.TotalFees(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: total})
}

func (s *Server) handleGetUserStatistics(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	stats, err := s.engine.UserStatistics(r.Context(), identity)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserStatisticsResponse{
		Identity:          stats.Identity,
		TotalColorChanges: stats.TotalColorChanges,
		TotalFeesPaid:     stats.TotalFeesPaid,
		LastColorChange:   stats.LastColorChange,
		ChangesInWindow:   stats.ChangesInWindow,
		WindowStart:       stats.WindowStart,
	})
}

func (s *Server) handleGetOwnerBalance(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	balance, err := s.engine.OwnerBalance(r.Context(), identity)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Identity: identity, Balance: balance})
}

func (s *Server) handleMintCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.minter.MintCount(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (s *Server) handleMintPrice(w http.ResponseWriter, r *http.Request) {
	count := uint64(1)
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			writeBadRequest(w, "count must be a positive integer")
			return
		}
		count = parsed
	}

	price, err := s.minter.MintPrice(r.Context(), uint32(count))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": count, "price": price})
}

func (s *Server) handlePositionStatus(w http.ResponseWriter, r *http.Request) {
	pos, ok := parseQueryPosition(r)
	if !ok {
		writeBadRequest(w, "x and y query parameters are required")
		return
	}

	claim, err := s.minter.PositionStatus(r.Context(), pos)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if claim == nil {
		writeJSON(w, http.StatusOK, map[string]any{"position": pos, "claimed": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"position": pos, "claimed": true, "claim": toClaimView(claim)})
}

func (s *Server) handleNextMintable(w http.ResponseWriter, r *http.Request) {
	var after *canvas.Position
	if r.URL.Query().Get("after_x") != "" || r.URL.Query().Get("after_y") != "" {
		x, errX := strconv.ParseUint(r.URL.Query().Get("after_x"), 10, 32)
		y, errY := strconv.ParseUint(r.URL.Query().Get("after_y"), 10, 32)
		if errX != nil || errY != nil {
			writeBadRequest(w, "after_x and after_y must both be integers")
			return
		}
		after = &canvas.Position{X: uint32(x), Y: uint32(y)}
	}

	positions, err := s.minter.NextMintable(r.Context(), after, parseQueryLimit(r, 10))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func toEventView(ev *store.ColorChangeEvent) ColorChangeEvent {
	return ColorChangeEvent{
		ID:        ev.ID,
		Position:  ev.Position,
		Editor:    ev.Editor,
		FromColor: ev.FromColor,
		ToColor:   ev.ToColor,
		FeePaid:   ev.FeePaid,
		Timestamp: ev.Timestamp,
	}
}

func toClaimView(claim *store.Claim) ClaimResponse {
	return ClaimResponse{
		Position: claim.Position,
		TokenID:  claim.TokenID,
		Minter:   claim.Minter,
		MintedAt: claim.MintedAt,
	}
}

func toConfigView(cfg *store.EngineConfig) ConfigResponse {
	return ConfigResponse{
		Admin:               cfg.Admin,
		Registry:            cfg.Registry,
		ColorChangeFee:      cfg.ColorChangeFee,
		RateLimit:           cfg.RateLimit,
		RateLimitWindow:     cfg.RateLimitWindow,
		RequiresPayment:     cfg.RequiresPayment,
		RateLimitingEnabled: cfg.RateLimitingEnabled,
		RoyaltyPercent:      cfg.RoyaltyPercent,
		MintPrice:           cfg.MintPrice,
	}
}
