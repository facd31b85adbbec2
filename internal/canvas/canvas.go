// ABOUTME: Core grid domain types shared across the engine: positions, colors, bounds
// ABOUTME: Positions are immutable (x, y) cells with row-major total ordering

package canvas

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxCoordinate is the inclusive bound of the default 100x100 grid.
const DefaultMaxCoordinate = 99

// Position identifies a single grid cell. Positions are value types and
// compare with ==.
type Position struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// String formats the position as "x,y".
func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// TokenID returns the registry token id for this position ("tile_x_y").
func (p Position) TokenID() string {
	return fmt.Sprintf("tile_%d_%d", p.X, p.Y)
}

// Less reports whether p sorts before other in row-major order (y, then x).
func (p Position) Less(other Position) bool {
	if p.Y != other.Y {
		return p.Y < other.Y
	}
	return p.X < other.X
}

// ParseTokenID parses a "tile_x_y" token id back into a position.
func ParseTokenID(tokenID string) (Position, error) {
	parts := strings.Split(tokenID, "_")
	if len(parts) != 3 || parts[0] != "tile" {
		return Position{}, fmt.Errorf("invalid token id %q", tokenID)
	}
	x, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Position{}, fmt.Errorf("invalid token id %q: %w", tokenID, err)
	}
	y, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Position{}, fmt.Errorf("invalid token id %q: %w", tokenID, err)
	}
	return Position{X: uint32(x), Y: uint32(y)}, nil
}

// Color is an RGB tile color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String formats the color as "#rrggbb".
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Grid describes the canvas bounds. Max is the inclusive maximum coordinate
// on both axes, so the grid spans (Max+1)^2 cells.
type Grid struct {
	Max uint32
}

// DefaultGrid returns the 100x100 grid used by the production canvas.
func DefaultGrid() Grid {
	return Grid{Max: DefaultMaxCoordinate}
}

// Contains reports whether the position is inside the grid bounds.
func (g Grid) Contains(p Position) bool {
	return p.X <= g.Max && p.Y <= g.Max
}

// Size returns the total number of cells in the grid.
func (g Grid) Size() uint64 {
	side := uint64(g.Max) + 1
	return side * side
}

// Next returns the row-major successor of p: x+1, wrapping x to 0 and
// incrementing y at the end of a row. The second return is false at the
// final cell (Max, Max), which has no successor.
func (g Grid) Next(p Position) (Position, bool) {
	if p.X < g.Max {
		return Position{X: p.X + 1, Y: p.Y}, true
	}
	if p.Y < g.Max {
		return Position{X: 0, Y: p.Y + 1}, true
	}
	return Position{}, false
}
