// ABOUTME: Mint flow: award unclaimed positions for exact payment and record the claim
// ABOUTME: Random allocation with sequential fallback, plus mintable-position queries

package minter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/allocator"
	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/events"
	"github.com/mosaicgrid/mosaicd/internal/metrics"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Clock supplies the current time, injected per the host-clock model.
type Clock func() time.Time

// Minter awards unclaimed grid positions to mint requests. Mint requests
// are serialized: the claimed set and cursor are contended shared state.
type Minter struct {
	mu      sync.Mutex
	store   store.Store
	grid    canvas.Grid
	seeder  allocator.Seeder
	clock   Clock
	events  *events.Broadcaster
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a minter. Pass nil clock for time.Now, nil logger for the
// default, nil broadcaster and metrics to disable those outputs.
func New(st store.Store, grid canvas.Grid, seeder allocator.Seeder, clock Clock, broadcaster *events.Broadcaster, collector *metrics.Collector, logger *slog.Logger) *Minter {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Minter{
		store:   st,
		grid:    grid,
		seeder:  seeder,
		clock:   clock,
		events:  broadcaster,
		metrics: collector,
		logger:  logger.With("component", "minter"),
	}
}

func (m *Minter) claimSet() allocator.ClaimSet {
	return allocator.ClaimSetFunc(func(ctx context.Context, pos canvas.Position) (bool, error) {
		return m.store.HasClaim(ctx, pos)
	})
}

// MintRandom awards the next available position for a "no preference"
// request. Payment must equal the configured mint price exactly.
func (m *Minter) MintRandom(ctx context.Context, minterID string, payment uint64) (*store.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.GetEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if payment != cfg.MintPrice {
		return nil, canvas.ErrInvalidPayment
	}

	cursor, err := m.store.GetCursor(ctx)
	if err != nil {
		return nil, err
	}

	pos, nextCursor, err := allocator.Allocate(ctx, m.claimSet(), m.grid, m.seeder, cursor)
	if err != nil {
		return nil, err
	}
	if nextCursor != cursor {
		if err := m.store.SetCursor(ctx, nextCursor); err != nil {
			return nil, err
		}
	}

	return m.commitClaim(ctx, minterID, pos)
}

// MintPosition awards a specific position. Fails when the position is out
// of bounds or already claimed. Payment must equal the mint price exactly.
func (m *Minter) MintPosition(ctx context.Context, minterID string, pos canvas.Position, payment uint64) (*store.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.grid.Contains(pos) {
		return nil, &canvas.InvalidPositionError{Position: pos, Max: m.grid.Max}
	}

	cfg, err := m.store.GetEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if payment != cfg.MintPrice {
		return nil, canvas.ErrInvalidPayment
	}

	has, err := m.store.HasClaim(ctx, pos)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, &canvas.PositionTakenError{Position: pos}
	}

	return m.commitClaim(ctx, minterID, pos)
}

func (m *Minter) commitClaim(ctx context.Context, minterID string, pos canvas.Position) (*store.Claim, error) {
	claim := &store.Claim{
		Position: pos,
		TokenID:  pos.TokenID(),
		Minter:   minterID,
		MintedAt: m.clock(),
	}
	if err := m.store.PutClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("recording claim: %w", err)
	}

	m.metrics.MintCommitted()
	m.events.Publish(&events.Event{
		Type:      events.TypeMinted,
		Position:  pos.String(),
		Minter:    minterID,
		Timestamp: claim.MintedAt,
	})
	m.logger.Info("position minted",
		"position", pos.String(),
		"token_id", claim.TokenID,
		"minter", minterID)
	return claim, nil
}

// MintCount returns the number of claimed positions.
func (m *Minter) MintCount(ctx context.Context) (uint64, error) {
	return m.store.CountClaims(ctx)
}

// MintPrice returns the total price for minting count positions.
func (m *Minter) MintPrice(ctx context.Context, count uint32) (uint64, error) {
	cfg, err := m.store.GetEngineConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading config: %w", err)
	}
	return cfg.MintPrice * uint64(count), nil
}

// PositionStatus returns the claim for a position, or nil when unclaimed.
func (m *Minter) PositionStatus(ctx context.Context, pos canvas.Position) (*store.Claim, error) {
	if !m.grid.Contains(pos) {
		return nil, &canvas.InvalidPositionError{Position: pos, Max: m.grid.Max}
	}
	claim, err := m.store.GetClaim(ctx, pos)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return claim, err
}

// NextMintable lists up to limit unclaimed positions after the given one.
func (m *Minter) NextMintable(ctx context.Context, after *canvas.Position, limit int) ([]canvas.Position, error) {
	if limit <= 0 {
		limit = 10
	}
	return allocator.NextMintable(ctx, m.claimSet(), m.grid, after, limit)
}
