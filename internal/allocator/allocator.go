// ABOUTME: Position allocator: bounded random draws with deterministic raster-scan fallback
// ABOUTME: Seeded from an injected source so allocation is reproducible for replay/audit

package allocator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

// randomAttempts is how many uniform draws are tried before falling back to
// the sequential scan.
const randomAttempts = 100

// Seeder supplies the seed for one random allocation. The source is
// expected to be unpredictable to callers (the host's concern); the
// allocator only requires that the same seed over the same claimed-set
// snapshot reproduces the same draw sequence.
type Seeder interface {
	Next() uint64
}

// ClockSeeder derives seeds from the wall clock, mirroring the block-time
// seeding of the source registry.
type ClockSeeder struct{}

// Next returns a seed from the current time.
func (ClockSeeder) Next() uint64 {
	now := time.Now()
	return uint64(now.UnixNano()) * uint64(now.Unix()|1)
}

// FixedSeeder always yields the same seed; for tests.
type FixedSeeder uint64

// Next returns the fixed seed.
func (s FixedSeeder) Next() uint64 { return uint64(s) }

// ClaimSet answers whether a position is already claimed.
type ClaimSet interface {
	Has(ctx context.Context, pos canvas.Position) (bool, error)
}

// ClaimSetFunc adapts a function to the ClaimSet interface.
type ClaimSetFunc func(ctx context.Context, pos canvas.Position) (bool, error)

// Has calls the underlying function.
func (f ClaimSetFunc) Has(ctx context.Context, pos canvas.Position) (bool, error) {
	return f(ctx, pos)
}

// AllocateRandom draws up to randomAttempts uniform positions within the
// grid and returns the first unclaimed one. The second return is false when
// every attempt landed on a claimed cell; the caller should fall back to
// AllocateSequential.
func AllocateRandom(ctx context.Context, claimed ClaimSet, grid canvas.Grid, seeder Seeder) (canvas.Position, bool, error) {
	rng := rand.New(rand.NewSource(int64(seeder.Next())))
	side := int64(grid.Max) + 1

	for i := 0; i < randomAttempts; i++ {
		pos := canvas.Position{
			X: uint32(rng.Int63n(side)),
			Y: uint32(rng.Int63n(side)),
		}
		has, err := claimed.Has(ctx, pos)
		if err != nil {
			return canvas.Position{}, false, fmt.Errorf("checking claim at %s: %w", pos, err)
		}
		if !has {
			return pos, true, nil
		}
	}
	return canvas.Position{}, false, nil
}

// AllocateSequential scans forward row-major from the cursor and returns
// the first unclaimed cell. It fails with ErrNoAvailablePositions when the
// scan runs past (Max, Max) with no free cell.
func AllocateSequential(ctx context.Context, claimed ClaimSet, grid canvas.Grid, cursor canvas.Position) (canvas.Position, error) {
	pos := cursor
	for {
		has, err := claimed.Has(ctx, pos)
		if err != nil {
			return canvas.Position{}, fmt.Errorf("checking claim at %s: %w", pos, err)
		}
		if !has {
			return pos, nil
		}
		next, ok := grid.Next(pos)
		if !ok {
			return canvas.Position{}, canvas.ErrNoAvailablePositions
		}
		pos = next
	}
}

// Allocate picks an unclaimed position: random first, then the sequential
// fallback from the cursor. It returns the awarded position and the cursor
// to persist for the next sequential scan (unchanged when the random path
// succeeded).
func Allocate(ctx context.Context, claimed ClaimSet, grid canvas.Grid, seeder Seeder, cursor canvas.Position) (pos, nextCursor canvas.Position, err error) {
	pos, ok, err := AllocateRandom(ctx, claimed, grid, seeder)
	if err != nil {
		return canvas.Position{}, cursor, err
	}
	if ok {
		return pos, cursor, nil
	}

	pos, err = AllocateSequential(ctx, claimed, grid, cursor)
	if err != nil {
		return canvas.Position{}, cursor, err
	}
	return pos, pos, nil
}

// NextMintable lists up to limit unclaimed positions in row-major order,
// starting after the given position (or from the origin when nil). Used by
// pagination queries over mintable cells.
func NextMintable(ctx context.Context, claimed ClaimSet, grid canvas.Grid, after *canvas.Position, limit int) ([]canvas.Position, error) {
	var pos canvas.Position
	if after != nil {
		next, ok := grid.Next(*after)
		if !ok {
			return nil, nil
		}
		pos = next
	}

	var out []canvas.Position
	for len(out) < limit {
		has, err := claimed.Has(ctx, pos)
		if err != nil {
			return nil, fmt.Errorf("checking claim at %s: %w", pos, err)
		}
		if !has {
			out = append(out, pos)
		}
		next, ok := grid.Next(pos)
		if !ok {
			break
		}
		pos = next
	}
	return out, nil
}
