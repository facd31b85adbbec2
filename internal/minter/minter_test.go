// ABOUTME: Tests for the mint flow: exact payment, claim recording, queries
// ABOUTME: Uses the mock store, a fixed seed, and a frozen clock

package minter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicgrid/mosaicd/internal/allocator"
	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/events"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

var frozen = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestMinter(t *testing.T, grid canvas.Grid) (*Minter, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	require.NoError(t, st.PutEngineConfig(context.Background(), &store.EngineConfig{
		Admin:     "admin",
		Registry:  "registry",
		MintPrice: 1000,
	}))
	m := New(st, grid, allocator.FixedSeeder(42), func() time.Time { return frozen }, nil, nil, nil)
	return m, st
}

func TestMintRandom(t *testing.T) {
	m, st := newTestMinter(t, canvas.DefaultGrid())
	ctx := context.Background()

	claim, err := m.MintRandom(ctx, "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, "alice", claim.Minter)
	assert.Equal(t, claim.Position.TokenID(), claim.TokenID)
	assert.Equal(t, frozen, claim.MintedAt)

	has, err := st.HasClaim(ctx, claim.Position)
	require.NoError(t, err)
	assert.True(t, has)

	count, err := m.MintCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestMintRandomPaymentMustBeExact(t *testing.T) {
	m, _ := newTestMinter(t, canvas.DefaultGrid())
	ctx := context.Background()

	_, err := m.MintRandom(ctx, "alice", 999)
	assert.ErrorIs(t, err, canvas.ErrInvalidPayment)

	// Overpayment is rejected too, not settled.
	_, err = m.MintRandom(ctx, "alice", 1001)
	assert.ErrorIs(t, err, canvas.ErrInvalidPayment)
}

func TestMintRandomExhaustsGrid(t *testing.T) {
	m, _ := newTestMinter(t, canvas.Grid{Max: 1})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := m.MintRandom(ctx, "alice", 1000)
		require.NoError(t, err, "mint %d", i+1)
	}

	_, err := m.MintRandom(ctx, "alice", 1000)
	assert.ErrorIs(t, err, canvas.ErrNoAvailablePositions)

	count, err := m.MintCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestMintPosition(t *testing.T) {
	m, _ := newTestMinter(t, canvas.DefaultGrid())
	ctx := context.Background()

	pos := canvas.Position{X: 10, Y: 20}
	claim, err := m.MintPosition(ctx, "bob", pos, 1000)
	require.NoError(t, err)
	assert.Equal(t, pos, claim.Position)
	assert.Equal(t, "tile_10_20", claim.TokenID)
}

func TestMintPositionTaken(t *testing.T) {
	m, _ := newTestMinter(t, canvas.DefaultGrid())
	ctx := context.Background()

	pos := canvas.Position{X: 10, Y: 20}
	_, err := m.MintPosition(ctx, "bob", pos, 1000)
	require.NoError(t, err)

	_, err = m.MintPosition(ctx, "carol", pos, 1000)
	var taken *canvas.PositionTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, pos, taken.Position)
}

func TestMintPositionOutOfBounds(t *testing.T) {
	m, _ := newTestMinter(t, canvas.DefaultGrid())

	_, err := m.MintPosition(context.Background(), "bob", canvas.Position{X: 100, Y: 0}, 1000)
	var invalid *canvas.InvalidPositionError
	assert.ErrorAs(t, err, &invalid)
}

func TestMintPrice(t *testing.T) {
	m, _ := newTestMinter(t, canvas.DefaultGrid())

	price, err := m.MintPrice(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), price)
}

func TestPositionStatus(t *testing.T) {
	m, _ := newTestMinter(t, canvas.DefaultGrid())
	ctx := context.Background()

	pos := canvas.Position{X: 1, Y: 2}
	claim, err := m.PositionStatus(ctx, pos)
	require.NoError(t, err)
	assert.Nil(t, claim, "unclaimed position has no status")

	_, err = m.MintPosition(ctx, "bob", pos, 1000)
	require.NoError(t, err)

	claim, err = m.PositionStatus(ctx, pos)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, "bob", claim.Minter)
}

func TestMintBroadcasts(t *testing.T) {
	st := store.NewMockStore()
	require.NoError(t, st.PutEngineConfig(context.Background(), &store.EngineConfig{
		Admin:     "admin",
		Registry:  "registry",
		MintPrice: 1000,
	}))
	broadcaster := events.NewBroadcaster(nil)
	defer broadcaster.Close()
	m := New(st, canvas.DefaultGrid(), allocator.FixedSeeder(42),
		func() time.Time { return frozen }, broadcaster, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := broadcaster.Subscribe(ctx)

	claim, err := m.MintRandom(ctx, "alice", 1000)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, events.TypeMinted, ev.Type)
		assert.Equal(t, claim.Position.String(), ev.Position)
		assert.Equal(t, "alice", ev.Minter)
	case <-time.After(time.Second):
		t.Fatal("no mint event broadcast")
	}
}

func TestNextMintableSkipsClaims(t *testing.T) {
	m, _ := newTestMinter(t, canvas.Grid{Max: 1})
	ctx := context.Background()

	_, err := m.MintPosition(ctx, "bob", canvas.Position{X: 0, Y: 0}, 1000)
	require.NoError(t, err)

	positions, err := m.NextMintable(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []canvas.Position{
		{X: 1, Y: 0},
		{X: 0, Y: 1},
		{X: 1, Y: 1},
	}, positions)
}
