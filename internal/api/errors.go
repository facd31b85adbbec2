// ABOUTME: Maps domain errors onto HTTP status codes and structured JSON bodies
// ABOUTME: Every rejection carries a stable code plus the fields the caller can act on

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/oracle"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// errorBody is the JSON envelope for every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code             string  `json:"code"`
	Message          string  `json:"message"`
	RemainingSeconds *uint64 `json:"remaining_seconds,omitempty"`
	Required         *uint64 `json:"required,omitempty"`
	Sent             *uint64 `json:"sent,omitempty"`
}

// writeError translates a domain error into its HTTP response.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, detail := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("internal error", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

func classify(err error) (int, errorDetail) {
	var (
		alreadyGranted *canvas.PermissionAlreadyGrantedError
		permNotFound   *canvas.PermissionNotFoundError
		invalidPos     *canvas.InvalidPositionError
		posTaken       *canvas.PositionTakenError
		rateLimited    *canvas.RateLimitExceededError
		insufficient   *canvas.InsufficientPaymentError
	)

	switch {
	case errors.Is(err, canvas.ErrUnauthorized):
		return http.StatusForbidden, errorDetail{Code: "UNAUTHORIZED", Message: err.Error()}
	case errors.As(err, &alreadyGranted):
		return http.StatusConflict, errorDetail{Code: "PERMISSION_ALREADY_GRANTED", Message: err.Error()}
	case errors.As(err, &permNotFound):
		return http.StatusNotFound, errorDetail{Code: "PERMISSION_NOT_FOUND", Message: err.Error()}
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests, errorDetail{
			Code:             "RATE_LIMIT_EXCEEDED",
			Message:          err.Error(),
			RemainingSeconds: &rateLimited.RemainingSeconds,
		}
	case errors.As(err, &insufficient):
		return http.StatusPaymentRequired, errorDetail{
			Code:     "INSUFFICIENT_PAYMENT",
			Message:  err.Error(),
			Required: &insufficient.Required,
			Sent:     &insufficient.Sent,
		}
	case errors.As(err, &invalidPos):
		return http.StatusBadRequest, errorDetail{Code: "INVALID_POSITION", Message: err.Error()}
	case errors.As(err, &posTaken):
		return http.StatusConflict, errorDetail{Code: "POSITION_TAKEN", Message: err.Error()}
	case errors.Is(err, canvas.ErrNoAvailablePositions):
		return http.StatusConflict, errorDetail{Code: "NO_AVAILABLE_POSITIONS", Message: err.Error()}
	case errors.Is(err, canvas.ErrInvalidPayment):
		return http.StatusPaymentRequired, errorDetail{Code: "INVALID_PAYMENT", Message: err.Error()}
	case errors.Is(err, canvas.ErrInsufficientFunds):
		return http.StatusBadRequest, errorDetail{Code: "INSUFFICIENT_FUNDS", Message: err.Error()}
	case errors.Is(err, canvas.ErrInvalidConfigUpdate):
		return http.StatusBadRequest, errorDetail{Code: "INVALID_CONFIG_UPDATE", Message: err.Error()}
	case errors.Is(err, oracle.ErrTokenNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorDetail{Code: "NOT_FOUND", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorDetail{Code: "INTERNAL", Message: "internal error"}
	}
}

// writeBadRequest reports a malformed request body or query.
func writeBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: "BAD_REQUEST", Message: message}})
}

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
