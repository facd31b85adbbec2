// ABOUTME: Permission store: owner-controlled allow-lists, public editing, transfer reset
// ABOUTME: Grants are per-(position, editor) rows, each with its own optional expiry

package perm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/oracle"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Service manages per-position permission records. Every mutation is
// owner-only; the owner of an uninitialized record is resolved from the
// ownership oracle before the check, never trusted from the caller.
type Service struct {
	store  store.Store
	oracle oracle.Client
	logger *slog.Logger
}

// NewService creates a permission service. Pass nil logger for default.
func NewService(st store.Store, oc oracle.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		oracle: oc,
		logger: logger.With("component", "perm"),
	}
}

// GetOrDefault returns the stored record, or a zero-value record with an
// unresolved owner when none exists.
func (s *Service) GetOrDefault(ctx context.Context, pos canvas.Position) (*store.PermissionRecord, error) {
	rec, err := s.store.GetPermissions(ctx, pos)
	if errors.Is(err, store.ErrNotFound) {
		return &store.PermissionRecord{Position: pos}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading permissions for %s: %w", pos, err)
	}
	return rec, nil
}

// resolveOwned returns the record with an authoritative owner: if the
// stored record has no owner cached, the oracle is consulted and the result
// persisted via a transfer reset.
func (s *Service) resolveOwned(ctx context.Context, pos canvas.Position) (*store.PermissionRecord, error) {
	rec, err := s.GetOrDefault(ctx, pos)
	if err != nil {
		return nil, err
	}
	if rec.Owner != "" {
		return rec, nil
	}

	owner, err := s.oracle.OwnerOf(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("resolving owner for %s: %w", pos, err)
	}
	if err := s.ApplyTransfer(ctx, pos, owner); err != nil {
		return nil, err
	}
	rec.Owner = owner
	return rec, nil
}

// Grant adds an editor to the allow-list for a position. Only the owner may
// grant. Fails if the editor already holds a grant. The expiry applies to
// this grant alone.
func (s *Service) Grant(ctx context.Context, pos canvas.Position, caller, editor string, expiresAt *time.Time) error {
	rec, err := s.resolveOwned(ctx, pos)
	if err != nil {
		return err
	}
	if caller != rec.Owner {
		return canvas.ErrUnauthorized
	}
	if rec.FindGrant(editor) != nil {
		return &canvas.PermissionAlreadyGrantedError{Editor: editor}
	}

	rec.Grants = append(rec.Grants, store.Grant{Editor: editor, ExpiresAt: expiresAt})
	if err := s.store.PutPermissions(ctx, rec); err != nil {
		return fmt.Errorf("storing grant: %w", err)
	}

	s.logger.Info("permission granted",
		"position", pos.String(),
		"owner", caller,
		"editor", editor)
	return nil
}

// Revoke removes an editor from the allow-list. Only the owner may revoke.
// Fails if the editor holds no grant.
func (s *Service) Revoke(ctx context.Context, pos canvas.Position, caller, editor string) error {
	rec, err := s.resolveOwned(ctx, pos)
	if err != nil {
		return err
	}
	if caller != rec.Owner {
		return canvas.ErrUnauthorized
	}
	if rec.FindGrant(editor) == nil {
		return &canvas.PermissionNotFoundError{Editor: editor}
	}

	grants := rec.Grants[:0]
	for _, g := range rec.Grants {
		if g.Editor != editor {
			grants = append(grants, g)
		}
	}
	rec.Grants = grants

	if err := s.store.PutPermissions(ctx, rec); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}

	s.logger.Info("permission revoked",
		"position", pos.String(),
		"owner", caller,
		"editor", editor)
	return nil
}

// SetPublicEditing toggles open editing for a position and sets the
// optional per-position fee. Only the owner may change it.
func (s *Service) SetPublicEditing(ctx context.Context, pos canvas.Position, caller string, enabled bool, fee *uint64) error {
	rec, err := s.resolveOwned(ctx, pos)
	if err != nil {
		return err
	}
	if caller != rec.Owner {
		return canvas.ErrUnauthorized
	}

	rec.PublicEditing = enabled
	rec.PublicChangeFee = fee

	if err := s.store.PutPermissions(ctx, rec); err != nil {
		return fmt.Errorf("storing public editing: %w", err)
	}

	s.logger.Info("public editing updated",
		"position", pos.String(),
		"enabled", enabled)
	return nil
}

// ApplyTransfer resets a position's permissions for its new owner: the
// allow-list is cleared, public editing disabled, and the public fee
// removed. Prior grants never carry over to a new owner.
func (s *Service) ApplyTransfer(ctx context.Context, pos canvas.Position, newOwner string) error {
	rec := &store.PermissionRecord{
		Position: pos,
		Owner:    newOwner,
	}
	if err := s.store.PutPermissions(ctx, rec); err != nil {
		return fmt.Errorf("applying transfer for %s: %w", pos, err)
	}

	s.logger.Info("ownership transfer applied",
		"position", pos.String(),
		"new_owner", newOwner)
	return nil
}

// CanEdit evaluates the authorization rule for an editor at now:
// the owner always may; otherwise a live (unexpired) grant or public
// editing is required. Expiry never affects the owner.
func CanEdit(rec *store.PermissionRecord, editor string, now time.Time) bool {
	if editor == rec.Owner {
		return true
	}
	if g := rec.FindGrant(editor); g != nil {
		if g.ExpiresAt == nil || !now.After(*g.ExpiresAt) {
			return true
		}
	}
	return rec.PublicEditing
}
