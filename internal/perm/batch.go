// ABOUTME: Batch permission operations: grant, revoke, and public-editing over many positions
// ABOUTME: Validates every item before persisting anything, so a failure leaves no partial state

package perm

import (
	"context"
	"fmt"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// GrantItem is one entry of a batch grant.
type GrantItem struct {
	Position  canvas.Position
	Editor    string
	ExpiresAt *time.Time
}

// RevokeItem is one entry of a batch revocation.
type RevokeItem struct {
	Position canvas.Position
	Editor   string
}

// PublicEditingItem is one entry of a batch public-editing update.
type PublicEditingItem struct {
	Position canvas.Position
	Enabled  bool
	Fee      *uint64
}

// recordCache loads each position at most once per batch, so repeated
// items within one batch see earlier in-memory edits.
type recordCache struct {
	svc     *Service
	records map[canvas.Position]*store.PermissionRecord
}

func (c *recordCache) get(ctx context.Context, pos canvas.Position) (*store.PermissionRecord, error) {
	if rec, ok := c.records[pos]; ok {
		return rec, nil
	}
	rec, err := c.svc.resolveOwned(ctx, pos)
	if err != nil {
		return nil, err
	}
	c.records[pos] = rec
	return rec, nil
}

func (c *recordCache) all() []*store.PermissionRecord {
	out := make([]*store.PermissionRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	return out
}

func (s *Service) newRecordCache() *recordCache {
	return &recordCache{svc: s, records: make(map[canvas.Position]*store.PermissionRecord)}
}

// GrantBatch grants edit rights across many positions in one call. The
// caller must own every position; any failure aborts the whole batch
// before any record is written.
func (s *Service) GrantBatch(ctx context.Context, caller string, items []GrantItem) error {
	cache := s.newRecordCache()
	for _, item := range items {
		rec, err := cache.get(ctx, item.Position)
		if err != nil {
			return err
		}
		if caller != rec.Owner {
			return canvas.ErrUnauthorized
		}
		if rec.FindGrant(item.Editor) != nil {
			return &canvas.PermissionAlreadyGrantedError{Editor: item.Editor}
		}
		rec.Grants = append(rec.Grants, store.Grant{Editor: item.Editor, ExpiresAt: item.ExpiresAt})
	}

	return s.persistBatch(ctx, cache.all(), "batch grant")
}

// RevokeBatch revokes edit rights across many positions in one call, with
// the same all-or-nothing semantics as GrantBatch.
func (s *Service) RevokeBatch(ctx context.Context, caller string, items []RevokeItem) error {
	cache := s.newRecordCache()
	for _, item := range items {
		rec, err := cache.get(ctx, item.Position)
		if err != nil {
			return err
		}
		if caller != rec.Owner {
			return canvas.ErrUnauthorized
		}
		if rec.FindGrant(item.Editor) == nil {
			return &canvas.PermissionNotFoundError{Editor: item.Editor}
		}
		grants := rec.Grants[:0]
		for _, g := range rec.Grants {
			if g.Editor != item.Editor {
				grants = append(grants, g)
			}
		}
		rec.Grants = grants
	}

	return s.persistBatch(ctx, cache.all(), "batch revoke")
}

// SetPublicEditingBatch updates public editing across many positions in one
// call, all-or-nothing.
func (s *Service) SetPublicEditingBatch(ctx context.Context, caller string, items []PublicEditingItem) error {
	cache := s.newRecordCache()
	for _, item := range items {
		rec, err := cache.get(ctx, item.Position)
		if err != nil {
			return err
		}
		if caller != rec.Owner {
			return canvas.ErrUnauthorized
		}
		rec.PublicEditing = item.Enabled
		rec.PublicChangeFee = item.Fee
	}

	return s.persistBatch(ctx, cache.all(), "batch public editing")
}

// persistBatch writes the fully validated records.
func (s *Service) persistBatch(ctx context.Context, records []*store.PermissionRecord, what string) error {
	for _, rec := range records {
		if err := s.store.PutPermissions(ctx, rec); err != nil {
			return fmt.Errorf("persisting %s for %s: %w", what, rec.Position, err)
		}
	}
	s.logger.Info("batch permissions updated", "operation", what, "count", len(records))
	return nil
}
