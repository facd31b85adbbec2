// ABOUTME: Admin-only engine operations: config updates and fee withdrawal
// ABOUTME: Partial config updates are validated as a whole before anything persists

package engine

import (
	"context"
	"fmt"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// ConfigUpdate is a partial update to the engine config. Nil fields keep
// their current values.
type ConfigUpdate struct {
	Admin               *string `json:"admin,omitempty"`
	Registry            *string `json:"registry,omitempty"`
	ColorChangeFee      *uint64 `json:"color_change_fee,omitempty"`
	RateLimit           *uint32 `json:"rate_limit,omitempty"`
	RateLimitWindow     *uint64 `json:"rate_limit_window,omitempty"`
	RequiresPayment     *bool   `json:"requires_payment,omitempty"`
	RateLimitingEnabled *bool   `json:"rate_limiting_enabled,omitempty"`
	RoyaltyPercent      *uint8  `json:"royalty_percent,omitempty"`
	MintPrice           *uint64 `json:"mint_price,omitempty"`
}

// UpdateConfig applies a partial config update. Only the current admin may
// call it; an invalid resulting config is rejected whole, leaving the
// stored config untouched.
func (e *Engine) UpdateConfig(ctx context.Context, caller string, update ConfigUpdate) (*store.EngineConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.store.GetEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if caller != cfg.Admin {
		return nil, canvas.ErrUnauthorized
	}

	next := *cfg
	if update.Admin != nil {
		next.Admin = *update.Admin
	}
	if update.Registry != nil {
		next.Registry = *update.Registry
	}
	if update.ColorChangeFee != nil {
		next.ColorChangeFee = *update.ColorChangeFee
	}
	if update.RateLimit != nil {
		next.RateLimit = *update.RateLimit
	}
	if update.RateLimitWindow != nil {
		next.RateLimitWindow = *update.RateLimitWindow
	}
	if update.RequiresPayment != nil {
		next.RequiresPayment = *update.RequiresPayment
	}
	if update.RateLimitingEnabled != nil {
		next.RateLimitingEnabled = *update.RateLimitingEnabled
	}
	if update.RoyaltyPercent != nil {
		next.RoyaltyPercent = *update.RoyaltyPercent
	}
	if update.MintPrice != nil {
		next.MintPrice = *update.MintPrice
	}

	if err := validateConfig(&next); err != nil {
		return nil, err
	}

	if err := e.store.PutEngineConfig(ctx, &next); err != nil {
		return nil, fmt.Errorf("storing config: %w", err)
	}

	e.logger.Info("engine config updated", "admin", caller)
	return &next, nil
}

func validateConfig(cfg *store.EngineConfig) error {
	if cfg.Admin == "" {
		return fmt.Errorf("%w: admin must not be empty", canvas.ErrInvalidConfigUpdate)
	}
	if cfg.Registry == "" {
		return fmt.Errorf("%w: registry must not be empty", canvas.ErrInvalidConfigUpdate)
	}
	if cfg.RoyaltyPercent > 100 {
		return fmt.Errorf("%w: royalty percent %d exceeds 100", canvas.ErrInvalidConfigUpdate, cfg.RoyaltyPercent)
	}
	if cfg.RateLimitingEnabled {
		if cfg.RateLimit == 0 {
			return fmt.Errorf("%w: rate limit must be positive when limiting is enabled", canvas.ErrInvalidConfigUpdate)
		}
		if cfg.RateLimitWindow == 0 {
			return fmt.Errorf("%w: rate limit window must be positive when limiting is enabled", canvas.ErrInvalidConfigUpdate)
		}
	}
	return nil
}

// WithdrawFees pays out from the platform fee ledger. Only the admin may
// withdraw; a nil amount withdraws the full balance. Returns the amount
// withdrawn.
func (e *Engine) WithdrawFees(ctx context.Context, caller string, amount *uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.store.GetEngineConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading config: %w", err)
	}
	if caller != cfg.Admin {
		return 0, canvas.ErrUnauthorized
	}

	total, err := e.store.GetTotalFees(ctx)
	if err != nil {
		return 0, err
	}

	withdraw := total
	if amount != nil {
		withdraw = *amount
	}
	if withdraw > total {
		return 0, canvas.ErrInsufficientFunds
	}

	if err := e.store.SetTotalFees(ctx, total-withdraw); err != nil {
		return 0, fmt.Errorf("updating fee ledger: %w", err)
	}

	e.logger.Info("fees withdrawn", "admin", caller, "amount", withdraw, "remaining", total-withdraw)
	return withdraw, nil
}
