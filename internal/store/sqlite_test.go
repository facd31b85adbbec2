// ABOUTME: Round-trip tests for the SQLite store against an in-memory database
// ABOUTME: Covers grant replacement, singletons, ledgers, claims, and history order

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLitePermissionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := canvas.Position{X: 4, Y: 2}

	_, err := s.GetPermissions(ctx, pos)
	assert.ErrorIs(t, err, ErrNotFound)

	expiry := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	fee := uint64(250)
	rec := &PermissionRecord{
		Position:        pos,
		Owner:           "alice",
		PublicEditing:   true,
		PublicChangeFee: &fee,
		Grants: []Grant{
			{Editor: "bob", ExpiresAt: &expiry},
			{Editor: "carol"},
		},
	}
	require.NoError(t, s.PutPermissions(ctx, rec))

	got, err := s.GetPermissions(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.True(t, got.PublicEditing)
	require.NotNil(t, got.PublicChangeFee)
	assert.Equal(t, uint64(250), *got.PublicChangeFee)
	require.Len(t, got.Grants, 2)

	bob := got.FindGrant("bob")
	require.NotNil(t, bob)
	require.NotNil(t, bob.ExpiresAt)
	assert.True(t, bob.ExpiresAt.Equal(expiry))

	carol := got.FindGrant("carol")
	require.NotNil(t, carol)
	assert.Nil(t, carol.ExpiresAt)
}

func TestSQLitePutPermissionsReplacesGrants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := canvas.Position{X: 0, Y: 0}

	require.NoError(t, s.PutPermissions(ctx, &PermissionRecord{
		Position: pos,
		Owner:    "alice",
		Grants:   []Grant{{Editor: "bob"}, {Editor: "carol"}},
	}))

	// A second write with a different grant set fully replaces the first.
	require.NoError(t, s.PutPermissions(ctx, &PermissionRecord{
		Position: pos,
		Owner:    "dave",
		Grants:   []Grant{{Editor: "erin"}},
	}))

	got, err := s.GetPermissions(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, "dave", got.Owner)
	require.Len(t, got.Grants, 1)
	assert.Equal(t, "erin", got.Grants[0].Editor)
}

func TestSQLiteUserStatisticsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetUserStatistics(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	last := time.Date(2026, 8, 1, 12, 0, 0, 500000000, time.UTC)
	windowStart := last.Add(-10 * time.Minute)
	require.NoError(t, s.PutUserStatistics(ctx, &UserStatistics{
		Identity:          "alice",
		TotalColorChanges: 7,
		TotalFeesPaid:     700,
		LastColorChange:   &last,
		ChangesInWindow:   2,
		WindowStart:       &windowStart,
	}))

	got, err := s.GetUserStatistics(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.TotalColorChanges)
	assert.Equal(t, uint64(700), got.TotalFeesPaid)
	assert.Equal(t, uint32(2), got.ChangesInWindow)
	require.NotNil(t, got.LastColorChange)
	assert.True(t, got.LastColorChange.Equal(last))
	require.NotNil(t, got.WindowStart)
	assert.True(t, got.WindowStart.Equal(windowStart))

	// Upsert overwrites in place.
	require.NoError(t, s.PutUserStatistics(ctx, &UserStatistics{
		Identity:          "alice",
		TotalColorChanges: 8,
	}))
	got, err = s.GetUserStatistics(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got.TotalColorChanges)
	assert.Nil(t, got.LastColorChange)
}

func TestSQLiteEngineConfigSingleton(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetEngineConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := &EngineConfig{
		Admin:               "admin",
		Registry:            "registry",
		ColorChangeFee:      100000,
		RateLimit:           3,
		RateLimitWindow:     3600,
		RequiresPayment:     true,
		RateLimitingEnabled: true,
		RoyaltyPercent:      30,
		MintPrice:           1000000,
	}
	require.NoError(t, s.PutEngineConfig(ctx, cfg))

	got, err := s.GetEngineConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	cfg.Admin = "admin2"
	cfg.RequiresPayment = false
	require.NoError(t, s.PutEngineConfig(ctx, cfg))

	got, err = s.GetEngineConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin2", got.Admin)
	assert.False(t, got.RequiresPayment)
}

func TestSQLiteFeeLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	total, err := s.GetTotalFees(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, s.SetTotalFees(ctx, 500))
	require.NoError(t, s.SetTotalFees(ctx, 750))

	total, err = s.GetTotalFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), total)
}

func TestSQLiteOwnerBalances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	balance, err := s.GetOwnerBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, s.AddOwnerBalance(ctx, "alice", 70))
	require.NoError(t, s.AddOwnerBalance(ctx, "alice", 30))
	require.NoError(t, s.AddOwnerBalance(ctx, "bob", 5))

	balance, err = s.GetOwnerBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance)

	balance, err = s.GetOwnerBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)
}

func TestSQLiteColorHistoryNewestLast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := canvas.Position{X: 3, Y: 3}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	colors := []canvas.Color{{R: 255}, {G: 255}, {B: 255}}
	ids := []string{"ev-1", "ev-2", "ev-3"}
	from := canvas.Color{}
	for i, c := range colors {
		require.NoError(t, s.AppendColorChange(ctx, &ColorChangeEvent{
			ID:        ids[i],
			Position:  pos,
			Editor:    "alice",
			FromColor: from,
			ToColor:   c,
			FeePaid:   uint64(i * 10),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
		from = c
	}

	events, err := s.ListColorChanges(ctx, pos, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, canvas.Color{R: 255}, events[0].ToColor)
	assert.Equal(t, canvas.Color{B: 255}, events[2].ToColor)
	assert.True(t, events[2].Timestamp.After(events[0].Timestamp))

	// A limit keeps the newest entries, still ordered newest-last.
	events, err = s.ListColorChanges(ctx, pos, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, canvas.Color{G: 255}, events[0].ToColor)
	assert.Equal(t, canvas.Color{B: 255}, events[1].ToColor)

	// Other positions see nothing.
	events, err = s.ListColorChanges(ctx, canvas.Position{X: 9, Y: 9}, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLiteClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := canvas.Position{X: 10, Y: 20}

	_, err := s.GetClaim(ctx, pos)
	assert.ErrorIs(t, err, ErrNotFound)

	has, err := s.HasClaim(ctx, pos)
	require.NoError(t, err)
	assert.False(t, has)

	mintedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutClaim(ctx, &Claim{
		Position: pos,
		TokenID:  pos.TokenID(),
		Minter:   "bob",
		MintedAt: mintedAt,
	}))

	got, err := s.GetClaim(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, "tile_10_20", got.TokenID)
	assert.Equal(t, "bob", got.Minter)
	assert.True(t, got.MintedAt.Equal(mintedAt))

	has, err = s.HasClaim(ctx, pos)
	require.NoError(t, err)
	assert.True(t, has)

	count, err := s.CountClaims(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Double-claiming the same position violates the primary key.
	err = s.PutClaim(ctx, &Claim{Position: pos, TokenID: pos.TokenID(), Minter: "carol", MintedAt: mintedAt})
	assert.Error(t, err)
}

func TestSQLiteCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, canvas.Position{}, pos)

	require.NoError(t, s.SetCursor(ctx, canvas.Position{X: 7, Y: 8}))
	require.NoError(t, s.SetCursor(ctx, canvas.Position{X: 9, Y: 1}))

	pos, err = s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, canvas.Position{X: 9, Y: 1}, pos)
}
