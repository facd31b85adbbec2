// ABOUTME: Tests for grid domain types: position ordering, token ids, bounds
// ABOUTME: Covers raster successor behavior at row and grid boundaries

package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionString(t *testing.T) {
	assert.Equal(t, "3,7", Position{X: 3, Y: 7}.String())
	assert.Equal(t, "0,0", Position{}.String())
}

func TestPositionTokenID(t *testing.T) {
	assert.Equal(t, "tile_12_34", Position{X: 12, Y: 34}.TokenID())
}

func TestParseTokenID(t *testing.T) {
	pos, err := ParseTokenID("tile_12_34")
	require.NoError(t, err)
	assert.Equal(t, Position{X: 12, Y: 34}, pos)

	_, err = ParseTokenID("pixel_1_2")
	assert.Error(t, err)

	_, err = ParseTokenID("tile_1")
	assert.Error(t, err)

	_, err = ParseTokenID("tile_a_2")
	assert.Error(t, err)
}

func TestPositionLess(t *testing.T) {
	// Row-major: y dominates, then x.
	assert.True(t, Position{X: 99, Y: 0}.Less(Position{X: 0, Y: 1}))
	assert.True(t, Position{X: 1, Y: 5}.Less(Position{X: 2, Y: 5}))
	assert.False(t, Position{X: 2, Y: 5}.Less(Position{X: 2, Y: 5}))
	assert.False(t, Position{X: 0, Y: 6}.Less(Position{X: 99, Y: 5}))
}

func TestColorString(t *testing.T) {
	assert.Equal(t, "#000000", Color{}.String())
	assert.Equal(t, "#ff8001", Color{R: 255, G: 128, B: 1}.String())
}

func TestGridContains(t *testing.T) {
	g := DefaultGrid()
	assert.True(t, g.Contains(Position{X: 0, Y: 0}))
	assert.True(t, g.Contains(Position{X: 99, Y: 99}))
	assert.False(t, g.Contains(Position{X: 100, Y: 0}))
	assert.False(t, g.Contains(Position{X: 0, Y: 100}))
}

func TestGridSize(t *testing.T) {
	assert.Equal(t, uint64(10000), DefaultGrid().Size())
	assert.Equal(t, uint64(4), Grid{Max: 1}.Size())
}

func TestGridNext(t *testing.T) {
	g := Grid{Max: 1}

	next, ok := g.Next(Position{X: 0, Y: 0})
	require.True(t, ok)
	assert.Equal(t, Position{X: 1, Y: 0}, next)

	// End of row wraps to the next row.
	next, ok = g.Next(Position{X: 1, Y: 0})
	require.True(t, ok)
	assert.Equal(t, Position{X: 0, Y: 1}, next)

	// Final cell has no successor.
	_, ok = g.Next(Position{X: 1, Y: 1})
	assert.False(t, ok)
}

func TestGridNextVisitsEveryCell(t *testing.T) {
	g := Grid{Max: 2}
	seen := map[Position]bool{}

	pos := Position{}
	seen[pos] = true
	for {
		next, ok := g.Next(pos)
		if !ok {
			break
		}
		assert.False(t, seen[next], "cell visited twice: %s", next)
		seen[next] = true
		pos = next
	}

	assert.Len(t, seen, int(g.Size()))
}
