// ABOUTME: Read-only engine queries: permissions, statistics, config, ledger, history
// ABOUTME: Queries never mutate state and take no commit lock

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Permissions returns the stored permission record for a position, or a
// zero-value record when none exists yet.
func (e *Engine) Permissions(ctx context.Context, pos canvas.Position) (*store.PermissionRecord, error) {
	if !e.grid.Contains(pos) {
		return nil, &canvas.InvalidPositionError{Position: pos, Max: e.grid.Max}
	}
	return e.perm.GetOrDefault(ctx, pos)
}

// UserStatistics returns the counters for an identity. Identities that
// never changed a color get zero-value statistics.
func (e *Engine) UserStatistics(ctx context.Context, identity string) (*store.UserStatistics, error) {
	return e.loadStats(ctx, identity)
}

// Config returns the current engine config.
func (e *Engine) Config(ctx context.Context) (*store.EngineConfig, error) {
	return e.store.GetEngineConfig(ctx)
}

// TotalFees returns the platform's collected fee balance.
func (e *Engine) TotalFees(ctx context.Context) (uint64, error) {
	return e.store.GetTotalFees(ctx)
}

// OwnerBalance returns the accrued owner share for an identity.
func (e *Engine) OwnerBalance(ctx context.Context, identity string) (uint64, error) {
	return e.store.GetOwnerBalance(ctx, identity)
}

// ColorHistory returns the newest limit changes for a position, oldest
// first.
func (e *Engine) ColorHistory(ctx context.Context, pos canvas.Position, limit int) ([]*store.ColorChangeEvent, error) {
	if !e.grid.Contains(pos) {
		return nil, &canvas.InvalidPositionError{Position: pos, Max: e.grid.Max}
	}
	if limit <= 0 {
		limit = 20
	}
	return e.store.ListColorChanges(ctx, pos, limit)
}

// CurrentColor returns the present color of a position, zero (black) for a
// tile never painted.
func (e *Engine) CurrentColor(ctx context.Context, pos canvas.Position) (canvas.Color, error) {
	if !e.grid.Contains(pos) {
		return canvas.Color{}, &canvas.InvalidPositionError{Position: pos, Max: e.grid.Max}
	}
	return e.currentColor(ctx, pos)
}

// EnsureConfig stores the given config when none exists yet, leaving an
// existing config untouched. Used at startup to seed deployment defaults.
func (e *Engine) EnsureConfig(ctx context.Context, cfg *store.EngineConfig) error {
	_, err := e.store.GetEngineConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return e.store.PutEngineConfig(ctx, cfg)
}
