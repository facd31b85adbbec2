// ABOUTME: HTTP JSON dispatcher: one route per engine operation plus queries
// ABOUTME: Public ops trust the host-verified sender field; admin and registry ops need a bearer token

package api

import (
	"log/slog"
	"net/http"

	"github.com/mosaicgrid/mosaicd/internal/auth"
	"github.com/mosaicgrid/mosaicd/internal/engine"
	"github.com/mosaicgrid/mosaicd/internal/events"
	"github.com/mosaicgrid/mosaicd/internal/metrics"
	"github.com/mosaicgrid/mosaicd/internal/minter"
	"github.com/mosaicgrid/mosaicd/internal/perm"
)

// Server wires the engine, permission service, and minter into HTTP routes.
type Server struct {
	engine   *engine.Engine
	perm     *perm.Service
	minter   *minter.Minter
	verifier auth.TokenVerifier
	ws       *events.WSServer
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewServer creates the dispatcher. ws and metrics may be nil to disable
// the event feed and /metrics endpoint.
func NewServer(eng *engine.Engine, permSvc *perm.Service, mnt *minter.Minter, verifier auth.TokenVerifier, ws *events.WSServer, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   eng,
		perm:     permSvc,
		minter:   mnt,
		verifier: verifier,
		ws:       ws,
		metrics:  collector,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the full route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Mutating operations. The sender field names the caller; the host in
	// front of the engine has already authenticated it.
	mux.HandleFunc("POST /v1/change-color", s.handleChangeColor)
	mux.HandleFunc("POST /v1/permissions/grant", s.handleGrant)
	mux.HandleFunc("POST /v1/permissions/revoke", s.handleRevoke)
	mux.HandleFunc("POST /v1/permissions/public-editing", s.handleSetPublicEditing)
	mux.HandleFunc("POST /v1/permissions/grant-batch", s.handleGrantBatch)
	mux.HandleFunc("POST /v1/permissions/revoke-batch", s.handleRevokeBatch)
	mux.HandleFunc("POST /v1/permissions/public-editing-batch", s.handleSetPublicEditingBatch)
	mux.HandleFunc("POST /v1/mint/random", s.handleMintRandom)
	mux.HandleFunc("POST /v1/mint/position", s.handleMintPosition)

	// Admin and registry operations: the bearer token subject is the
	// caller; the engine checks it against the stored config.
	authed := auth.Middleware(s.verifier)
	mux.Handle("POST /v1/admin/config", authed(http.HandlerFunc(s.handleUpdateConfig)))
	mux.Handle("POST /v1/admin/withdraw", authed(http.HandlerFunc(s.handleWithdrawFees)))
	mux.Handle("POST /v1/registry/transfer", authed(http.HandlerFunc(s.handleTransfer)))

	// Queries.
	mux.HandleFunc("GET /v1/permissions", s.handleGetPermissions)
	mux.HandleFunc("GET /v1/can-change-color", s.handleCanChangeColor)
	mux.HandleFunc("GET /v1/history", s.handleGetHistory)
	mux.HandleFunc("GET /v1/config", s.handleGetConfig)
	mux.HandleFunc("GET /v1/fees/total", s.handleGetTotalFees)
	mux.HandleFunc("GET /v1/users/{identity}/statistics", s.handleGetUserStatistics)
	mux.HandleFunc("GET /v1/users/{identity}/balance", s.handleGetOwnerBalance)
	mux.HandleFunc("GET /v1/mint/count", s.handleMintCount)
	mux.HandleFunc("GET /v1/mint/price", s.handleMintPrice)
	mux.HandleFunc("GET /v1/positions/status", s.handlePositionStatus)
	mux.HandleFunc("GET /v1/positions/mintable", s.handleNextMintable)

	mux.HandleFunc("GET /health", s.handleHealth)

	if s.ws != nil {
		mux.Handle("GET /ws", s.ws.Handler())
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
