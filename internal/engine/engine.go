// ABOUTME: Decision engine: authorize, rate-limit, and settle every color change
// ABOUTME: Serializes commits so the ledger, statistics, and history stay consistent

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/events"
	"github.com/mosaicgrid/mosaicd/internal/fees"
	"github.com/mosaicgrid/mosaicd/internal/metrics"
	"github.com/mosaicgrid/mosaicd/internal/oracle"
	"github.com/mosaicgrid/mosaicd/internal/perm"
	"github.com/mosaicgrid/mosaicd/internal/ratelimit"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Clock supplies the current time, injected so decision flows are
// reproducible in tests.
type Clock func() time.Time

// ChangeResult reports a committed color change: what was charged, how the
// fee was split, and the persisted history event.
type ChangeResult struct {
	Position   canvas.Position `json:"position"`
	Color      canvas.Color    `json:"color"`
	Settlement fees.Settlement `json:"settlement"`
	Event      *store.ColorChangeEvent
}

// Decision is the answer to a can-change-color query. When Allowed is
// false, Reason carries the rejection code the change would fail with.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	RequiredFee      uint64 `json:"required_fee"`
	RemainingSeconds uint64 `json:"remaining_seconds,omitempty"`
}

// Rejection reason codes reported by decisions and metrics.
const (
	ReasonUnauthorized        = "unauthorized"
	ReasonRateLimited         = "rate_limited"
	ReasonInvalidPosition     = "invalid_position"
	ReasonNotMinted           = "not_minted"
	ReasonPaymentInsufficient = "insufficient_payment"
)

// Engine is the canvas decision engine. Every mutating call is serialized
// under one mutex: the fee ledger, user statistics, and history are shared
// state and single-writer keeps each commit atomic end to end.
type Engine struct {
	mu      sync.Mutex
	store   store.Store
	perm    *perm.Service
	oracle  oracle.Client
	grid    canvas.Grid
	events  *events.Broadcaster
	metrics *metrics.Collector
	clock   Clock
	logger  *slog.Logger
}

// New creates an engine. Pass nil clock for time.Now, nil logger for the
// default; events and metrics may be nil to disable them.
func New(st store.Store, permSvc *perm.Service, oc oracle.Client, grid canvas.Grid, broadcaster *events.Broadcaster, collector *metrics.Collector, clock Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   st,
		perm:    permSvc,
		oracle:  oc,
		grid:    grid,
		events:  broadcaster,
		metrics: collector,
		clock:   clock,
		logger:  logger.With("component", "engine"),
	}
}

// resolveRecord returns the permission record with an owner freshly checked
// against the registry. A cached owner that no longer matches the oracle
// means the engine missed a transfer notification; the record is reset for
// the new owner before any decision is taken from it.
func (e *Engine) resolveRecord(ctx context.Context, pos canvas.Position) (*store.PermissionRecord, error) {
	rec, err := e.perm.GetOrDefault(ctx, pos)
	if err != nil {
		return nil, err
	}

	owner, err := e.oracle.OwnerOf(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("resolving owner for %s: %w", pos, err)
	}

	if rec.Owner != owner {
		if err := e.perm.ApplyTransfer(ctx, pos, owner); err != nil {
			return nil, err
		}
		rec = &store.PermissionRecord{Position: pos, Owner: owner}
	}
	return rec, nil
}

// ChangeColor runs the full decision flow for one change request:
// bounds, ownership, authorization, rate limit, then fee settlement. Only
// after every check passes is the change committed: statistics recorded,
// the fee split booked, the history appended, and the event broadcast.
func (e *Engine) ChangeColor(ctx context.Context, editor string, pos canvas.Position, color canvas.Color, payment uint64) (*ChangeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.grid.Contains(pos) {
		e.metrics.ChangeRejected(ReasonInvalidPosition)
		return nil, &canvas.InvalidPositionError{Position: pos, Max: e.grid.Max}
	}

	rec, err := e.resolveRecord(ctx, pos)
	if err != nil {
		if errors.Is(err, oracle.ErrTokenNotFound) {
			e.metrics.ChangeRejected(ReasonNotMinted)
		}
		return nil, err
	}

	now := e.clock()
	if !perm.CanEdit(rec, editor, now) {
		e.metrics.ChangeRejected(ReasonUnauthorized)
		return nil, canvas.ErrUnauthorized
	}

	cfg, err := e.store.GetEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	stats, err := e.loadStats(ctx, editor)
	if err != nil {
		return nil, err
	}

	policy := ratelimit.PolicyFromConfig(cfg)
	if ok, remaining := ratelimit.Check(stats, policy, now); !ok {
		e.metrics.ChangeRejected(ReasonRateLimited)
		return nil, &canvas.RateLimitExceededError{
			RemainingSeconds: uint64(remaining / time.Second),
		}
	}

	required := fees.Required(rec, cfg, editor)
	settlement, err := fees.Settle(payment, required, cfg.RoyaltyPercent)
	if err != nil {
		e.metrics.ChangeRejected(ReasonPaymentInsufficient)
		return nil, err
	}

	// All checks passed; commit.
	ratelimit.Record(stats, policy, now)
	stats.TotalFeesPaid += settlement.Required
	if err := e.store.PutUserStatistics(ctx, stats); err != nil {
		return nil, fmt.Errorf("storing statistics: %w", err)
	}

	if settlement.Developer > 0 {
		total, err := e.store.GetTotalFees(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.store.SetTotalFees(ctx, total+settlement.Developer); err != nil {
			return nil, fmt.Errorf("booking platform fee: %w", err)
		}
	}
	if settlement.Owner > 0 {
		if err := e.store.AddOwnerBalance(ctx, rec.Owner, settlement.Owner); err != nil {
			return nil, fmt.Errorf("booking owner share: %w", err)
		}
	}

	fromColor, err := e.currentColor(ctx, pos)
	if err != nil {
		return nil, err
	}
	event := &store.ColorChangeEvent{
		ID:        uuid.New().String(),
		Position:  pos,
		Editor:    editor,
		FromColor: fromColor,
		ToColor:   color,
		FeePaid:   settlement.Required,
		Timestamp: now,
	}
	if err := e.store.AppendColorChange(ctx, event); err != nil {
		return nil, fmt.Errorf("appending history: %w", err)
	}

	e.metrics.ChangeCommitted(settlement.Developer)
	e.events.Publish(&events.Event{
		Type:      events.TypeColorChanged,
		Position:  pos.String(),
		Editor:    editor,
		FromColor: &event.FromColor,
		ToColor:   &event.ToColor,
		FeePaid:   settlement.Required,
		Timestamp: now,
	})

	e.logger.Info("color changed",
		"position", pos.String(),
		"editor", editor,
		"color", color.String(),
		"fee", settlement.Required)

	return &ChangeResult{
		Position:   pos,
		Color:      color,
		Settlement: settlement,
		Event:      event,
	}, nil
}

// CanChangeColor evaluates the decision flow without committing anything.
// The answer reflects state at the time of the call.
func (e *Engine) CanChangeColor(ctx context.Context, editor string, pos canvas.Position) (*Decision, error) {
	if !e.grid.Contains(pos) {
		return &Decision{Reason: ReasonInvalidPosition}, nil
	}

	rec, err := e.resolveRecord(ctx, pos)
	if err != nil {
		if errors.Is(err, oracle.ErrTokenNotFound) {
			return &Decision{Reason: ReasonNotMinted}, nil
		}
		return nil, err
	}

	now := e.clock()
	if !perm.CanEdit(rec, editor, now) {
		return &Decision{Reason: ReasonUnauthorized}, nil
	}

	cfg, err := e.store.GetEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	stats, err := e.loadStats(ctx, editor)
	if err != nil {
		return nil, err
	}
	if ok, remaining := ratelimit.Check(stats, ratelimit.PolicyFromConfig(cfg), now); !ok {
		return &Decision{
			Reason:           ReasonRateLimited,
			RemainingSeconds: uint64(remaining / time.Second),
		}, nil
	}

	return &Decision{
		Allowed:     true,
		RequiredFee: fees.Required(rec, cfg, editor),
	}, nil
}

// HandleTransfer resets a position's permissions after an ownership
// transfer. Only the configured registry identity may report transfers.
func (e *Engine) HandleTransfer(ctx context.Context, caller string, pos canvas.Position, newOwner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.grid.Contains(pos) {
		return &canvas.InvalidPositionError{Position: pos, Max: e.grid.Max}
	}

	cfg, err := e.store.GetEngineConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if caller != cfg.Registry {
		return canvas.ErrUnauthorized
	}

	if err := e.perm.ApplyTransfer(ctx, pos, newOwner); err != nil {
		return err
	}

	e.events.Publish(&events.Event{
		Type:      events.TypeTransferred,
		Position:  pos.String(),
		Editor:    newOwner,
		Timestamp: e.clock(),
	})
	return nil
}

func (e *Engine) loadStats(ctx context.Context, identity string) (*store.UserStatistics, error) {
	stats, err := e.store.GetUserStatistics(ctx, identity)
	if errors.Is(err, store.ErrNotFound) {
		return &store.UserStatistics{Identity: identity}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading statistics for %s: %w", identity, err)
	}
	return stats, nil
}

// currentColor is the ToColor of the newest history event, or zero (black)
// for a tile that was never painted.
func (e *Engine) currentColor(ctx context.Context, pos canvas.Position) (canvas.Color, error) {
	history, err := e.store.ListColorChanges(ctx, pos, 1)
	if err != nil {
		return canvas.Color{}, fmt.Errorf("loading history for %s: %w", pos, err)
	}
	if len(history) == 0 {
		return canvas.Color{}, nil
	}
	return history[len(history)-1].ToColor, nil
}
