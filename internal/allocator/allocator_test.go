// ABOUTME: Tests for random and sequential position allocation
// ABOUTME: Covers seed determinism, fallback, and grid exhaustion

package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

type mapClaims map[canvas.Position]bool

func (m mapClaims) Has(_ context.Context, pos canvas.Position) (bool, error) {
	return m[pos], nil
}

func TestAllocateRandomDeterministicBySeed(t *testing.T) {
	ctx := context.Background()
	grid := canvas.DefaultGrid()
	claims := mapClaims{}

	first, ok, err := AllocateRandom(ctx, claims, grid, FixedSeeder(7))
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := AllocateRandom(ctx, claims, grid, FixedSeeder(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second, "same seed over same claims must reproduce the draw")

	other, ok, err := AllocateRandom(ctx, claims, grid, FixedSeeder(8))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, grid.Contains(other))
}

func TestAllocateRandomSkipsClaimed(t *testing.T) {
	ctx := context.Background()
	grid := canvas.DefaultGrid()

	taken, ok, err := AllocateRandom(ctx, mapClaims{}, grid, FixedSeeder(7))
	require.NoError(t, err)
	require.True(t, ok)

	// Claim the first draw; the same seed must now land elsewhere.
	pos, ok, err := AllocateRandom(ctx, mapClaims{taken: true}, grid, FixedSeeder(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, taken, pos)
}

func TestAllocateRandomExhausted(t *testing.T) {
	// Every cell claimed: all attempts collide and the caller must fall
	// back to the sequential scan.
	grid := canvas.Grid{Max: 0}
	claims := mapClaims{{X: 0, Y: 0}: true}

	_, ok, err := AllocateRandom(context.Background(), claims, grid, FixedSeeder(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllocateSequential(t *testing.T) {
	ctx := context.Background()
	grid := canvas.Grid{Max: 1}
	claims := mapClaims{
		{X: 0, Y: 0}: true,
		{X: 1, Y: 0}: true,
	}

	pos, err := AllocateSequential(ctx, claims, grid, canvas.Position{})
	require.NoError(t, err)
	assert.Equal(t, canvas.Position{X: 0, Y: 1}, pos)

	// Scanning from a later cursor never looks back.
	claims[canvas.Position{X: 0, Y: 1}] = true
	pos, err = AllocateSequential(ctx, claims, grid, canvas.Position{X: 0, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, canvas.Position{X: 1, Y: 1}, pos)
}

func TestAllocateSequentialExhausted(t *testing.T) {
	grid := canvas.Grid{Max: 1}
	claims := mapClaims{
		{X: 0, Y: 0}: true,
		{X: 1, Y: 0}: true,
		{X: 0, Y: 1}: true,
		{X: 1, Y: 1}: true,
	}

	_, err := AllocateSequential(context.Background(), claims, grid, canvas.Position{})
	assert.ErrorIs(t, err, canvas.ErrNoAvailablePositions)
}

func TestAllocateFallsBackAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	grid := canvas.Grid{Max: 1}
	claims := mapClaims{
		{X: 0, Y: 0}: true,
		{X: 1, Y: 0}: true,
		{X: 0, Y: 1}: true,
	}

	pos, nextCursor, err := Allocate(ctx, claims, grid, FixedSeeder(3), canvas.Position{})
	require.NoError(t, err)
	assert.Equal(t, canvas.Position{X: 1, Y: 1}, pos)
	assert.Equal(t, pos, nextCursor, "sequential award moves the cursor")
}

func TestAllocateRandomSuccessKeepsCursor(t *testing.T) {
	ctx := context.Background()
	grid := canvas.DefaultGrid()
	cursor := canvas.Position{X: 5, Y: 5}

	_, nextCursor, err := Allocate(ctx, mapClaims{}, grid, FixedSeeder(9), cursor)
	require.NoError(t, err)
	assert.Equal(t, cursor, nextCursor)
}

func TestAllocateFullGrid(t *testing.T) {
	grid := canvas.Grid{Max: 1}
	claims := mapClaims{
		{X: 0, Y: 0}: true,
		{X: 1, Y: 0}: true,
		{X: 0, Y: 1}: true,
		{X: 1, Y: 1}: true,
	}

	_, _, err := Allocate(context.Background(), claims, grid, FixedSeeder(1), canvas.Position{})
	assert.ErrorIs(t, err, canvas.ErrNoAvailablePositions)
}

func TestNextMintable(t *testing.T) {
	ctx := context.Background()
	grid := canvas.Grid{Max: 1}
	claims := mapClaims{{X: 1, Y: 0}: true}

	positions, err := NextMintable(ctx, claims, grid, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []canvas.Position{
		{X: 0, Y: 0},
		{X: 0, Y: 1},
		{X: 1, Y: 1},
	}, positions)
}

func TestNextMintablePagination(t *testing.T) {
	ctx := context.Background()
	grid := canvas.Grid{Max: 1}
	claims := mapClaims{}

	page, err := NextMintable(ctx, claims, grid, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	after := page[1]
	page, err = NextMintable(ctx, claims, grid, &after, 2)
	require.NoError(t, err)
	assert.Equal(t, []canvas.Position{{X: 0, Y: 1}, {X: 1, Y: 1}}, page)

	// Past the final cell there is nothing left.
	last := canvas.Position{X: 1, Y: 1}
	page, err = NextMintable(ctx, claims, grid, &last, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}
