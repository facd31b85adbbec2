// ABOUTME: Tests for batch permission operations
// ABOUTME: Verifies all-or-nothing semantics and repeated positions within one batch

package perm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/oracle"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

var (
	tileA = canvas.Position{X: 1, Y: 1}
	tileB = canvas.Position{X: 2, Y: 1}
	tileC = canvas.Position{X: 3, Y: 1}
)

func newBatchService(t *testing.T) (*Service, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	oc := oracle.NewStatic()
	oc.SetOwner(tileA, "alice")
	oc.SetOwner(tileB, "alice")
	oc.SetOwner(tileC, "carol")
	return NewService(st, oc, nil), st
}

func TestGrantBatch(t *testing.T) {
	svc, st := newBatchService(t)
	ctx := context.Background()

	err := svc.GrantBatch(ctx, "alice", []GrantItem{
		{Position: tileA, Editor: "bob"},
		{Position: tileB, Editor: "bob"},
	})
	require.NoError(t, err)

	for _, pos := range []canvas.Position{tileA, tileB} {
		rec, err := st.GetPermissions(ctx, pos)
		require.NoError(t, err)
		assert.NotNil(t, rec.FindGrant("bob"))
	}
}

func TestGrantBatchAllOrNothing(t *testing.T) {
	svc, st := newBatchService(t)
	ctx := context.Background()

	// tileC belongs to carol; the whole batch must abort with no grants
	// written for the earlier items.
	err := svc.GrantBatch(ctx, "alice", []GrantItem{
		{Position: tileA, Editor: "bob"},
		{Position: tileC, Editor: "bob"},
	})
	require.ErrorIs(t, err, canvas.ErrUnauthorized)

	rec, err := st.GetPermissions(ctx, tileA)
	if err == nil {
		assert.Nil(t, rec.FindGrant("bob"), "aborted batch must not write grants")
	} else {
		assert.True(t, errors.Is(err, store.ErrNotFound))
	}
}

func TestGrantBatchRepeatedPosition(t *testing.T) {
	svc, st := newBatchService(t)
	ctx := context.Background()

	// Two editors on the same position in one batch; the second item must
	// see the first item's in-memory grant.
	err := svc.GrantBatch(ctx, "alice", []GrantItem{
		{Position: tileA, Editor: "bob"},
		{Position: tileA, Editor: "carol"},
	})
	require.NoError(t, err)

	rec, err := st.GetPermissions(ctx, tileA)
	require.NoError(t, err)
	assert.NotNil(t, rec.FindGrant("bob"))
	assert.NotNil(t, rec.FindGrant("carol"))
}

func TestGrantBatchDuplicateEditorRejected(t *testing.T) {
	svc, _ := newBatchService(t)

	err := svc.GrantBatch(context.Background(), "alice", []GrantItem{
		{Position: tileA, Editor: "bob"},
		{Position: tileA, Editor: "bob"},
	})

	var already *canvas.PermissionAlreadyGrantedError
	assert.ErrorAs(t, err, &already)
}

func TestRevokeBatchAllOrNothing(t *testing.T) {
	svc, st := newBatchService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, tileA, "alice", "bob", nil))

	// Second item has no grant to revoke; the first revocation must not
	// stick.
	err := svc.RevokeBatch(ctx, "alice", []RevokeItem{
		{Position: tileA, Editor: "bob"},
		{Position: tileB, Editor: "bob"},
	})
	var notFound *canvas.PermissionNotFoundError
	require.ErrorAs(t, err, &notFound)

	rec, err := st.GetPermissions(ctx, tileA)
	require.NoError(t, err)
	assert.NotNil(t, rec.FindGrant("bob"))
}

func TestSetPublicEditingBatch(t *testing.T) {
	svc, st := newBatchService(t)
	ctx := context.Background()

	fee := uint64(42)
	err := svc.SetPublicEditingBatch(ctx, "alice", []PublicEditingItem{
		{Position: tileA, Enabled: true, Fee: &fee},
		{Position: tileB, Enabled: true},
	})
	require.NoError(t, err)

	recA, err := st.GetPermissions(ctx, tileA)
	require.NoError(t, err)
	assert.True(t, recA.PublicEditing)
	require.NotNil(t, recA.PublicChangeFee)

	recB, err := st.GetPermissions(ctx, tileB)
	require.NoError(t, err)
	assert.True(t, recB.PublicEditing)
	assert.Nil(t, recB.PublicChangeFee)
}
