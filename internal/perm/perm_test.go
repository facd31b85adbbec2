// ABOUTME: Tests for the permission service: grants, revocation, public editing
// ABOUTME: Covers owner resolution via the oracle and the transfer reset

package perm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/oracle"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

var tile = canvas.Position{X: 4, Y: 2}

func newTestService(t *testing.T) (*Service, *store.MockStore, *oracle.Static) {
	t.Helper()
	st := store.NewMockStore()
	oc := oracle.NewStatic()
	oc.SetOwner(tile, "alice")
	return NewService(st, oc, nil), st, oc
}

func TestGrantByOwner(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, tile, "alice", "bob", nil))

	rec, err := st.GetPermissions(ctx, tile)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Owner)
	require.NotNil(t, rec.FindGrant("bob"))
	assert.Nil(t, rec.FindGrant("bob").ExpiresAt)
}

func TestGrantByNonOwner(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Grant(context.Background(), tile, "mallory", "bob", nil)
	assert.ErrorIs(t, err, canvas.ErrUnauthorized)
}

func TestGrantDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, tile, "alice", "bob", nil))
	err := svc.Grant(ctx, tile, "alice", "bob", nil)

	var already *canvas.PermissionAlreadyGrantedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "bob", already.Editor)
}

func TestGrantUnmintedTile(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Grant(context.Background(), canvas.Position{X: 9, Y: 9}, "alice", "bob", nil)
	assert.ErrorIs(t, err, oracle.ErrTokenNotFound)
}

func TestRevoke(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, tile, "alice", "bob", nil))
	require.NoError(t, svc.Revoke(ctx, tile, "alice", "bob"))

	rec, err := st.GetPermissions(ctx, tile)
	require.NoError(t, err)
	assert.Nil(t, rec.FindGrant("bob"))
}

func TestRevokeAbsent(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Revoke(context.Background(), tile, "alice", "bob")

	var notFound *canvas.PermissionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "bob", notFound.Editor)
}

func TestSetPublicEditing(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	fee := uint64(500)
	require.NoError(t, svc.SetPublicEditing(ctx, tile, "alice", true, &fee))

	rec, err := st.GetPermissions(ctx, tile)
	require.NoError(t, err)
	assert.True(t, rec.PublicEditing)
	require.NotNil(t, rec.PublicChangeFee)
	assert.Equal(t, uint64(500), *rec.PublicChangeFee)

	assert.ErrorIs(t, svc.SetPublicEditing(ctx, tile, "mallory", false, nil), canvas.ErrUnauthorized)
}

func TestApplyTransferResetsEverything(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	fee := uint64(500)
	require.NoError(t, svc.Grant(ctx, tile, "alice", "bob", nil))
	require.NoError(t, svc.SetPublicEditing(ctx, tile, "alice", true, &fee))

	require.NoError(t, svc.ApplyTransfer(ctx, tile, "carol"))

	rec, err := st.GetPermissions(ctx, tile)
	require.NoError(t, err)
	assert.Equal(t, "carol", rec.Owner)
	assert.Empty(t, rec.Grants)
	assert.False(t, rec.PublicEditing)
	assert.Nil(t, rec.PublicChangeFee)
}

func TestCanEditOwnerAlways(t *testing.T) {
	rec := &store.PermissionRecord{Owner: "alice"}
	assert.True(t, CanEdit(rec, "alice", time.Now()))
	assert.False(t, CanEdit(rec, "bob", time.Now()))
}

func TestCanEditGrantExpiry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)
	rec := &store.PermissionRecord{
		Owner: "alice",
		Grants: []store.Grant{
			{Editor: "bob", ExpiresAt: &expiry},
			{Editor: "carol"},
		},
	}

	assert.True(t, CanEdit(rec, "bob", now))
	// The expiry instant itself is still inside the grant window.
	assert.True(t, CanEdit(rec, "bob", expiry))
	assert.False(t, CanEdit(rec, "bob", expiry.Add(time.Second)))

	// Carol's unexpiring grant is untouched by bob's lapse.
	assert.True(t, CanEdit(rec, "carol", expiry.Add(time.Hour)))
}

func TestCanEditPublic(t *testing.T) {
	rec := &store.PermissionRecord{Owner: "alice", PublicEditing: true}
	assert.True(t, CanEdit(rec, "anyone", time.Now()))

	// An expired grant falls back to the public flag.
	past := time.Now().Add(-time.Hour)
	rec.Grants = []store.Grant{{Editor: "bob", ExpiresAt: &past}}
	assert.True(t, CanEdit(rec, "bob", time.Now()))

	rec.PublicEditing = false
	assert.False(t, CanEdit(rec, "bob", time.Now()))
}
