// ABOUTME: Store interface and data types for mosaicd persistence
// ABOUTME: Keyed records for permissions, grants, user statistics, claims, ledger, history

package store

import (
	"context"
	"errors"
	"time"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Grant is a per-(position, editor) edit right. ExpiresAt nil means the
// grant never lapses. Each grant carries its own expiry; granting to a new
// editor never changes an existing editor's window.
type Grant struct {
	Editor    string
	ExpiresAt *time.Time
}

// PermissionRecord is the per-position access-control entry. Owner is a
// cache of the registry's answer, invalidated by transfer notifications;
// an empty Owner means the record is uninitialized and the true owner must
// be resolved from the ownership oracle before any authorization decision.
type PermissionRecord struct {
	Position      canvas.Position
	Owner         string
	Grants        []Grant
	PublicEditing bool
	// PublicChangeFee overrides the default fee for non-owner editors when
	// set. Nil means the configured default applies.
	PublicChangeFee *uint64
}

// FindGrant returns the grant for the given editor, or nil.
func (r *PermissionRecord) FindGrant(editor string) *Grant {
	for i := range r.Grants {
		if r.Grants[i].Editor == editor {
			return &r.Grants[i]
		}
	}
	return nil
}

// UserStatistics tracks per-editor counters and the active rate-limit
// window. TotalColorChanges and TotalFeesPaid only ever increase.
// ChangesInWindow is reset only when a lapsed window is replaced.
type UserStatistics struct {
	Identity          string
	TotalColorChanges uint64
	TotalFeesPaid     uint64
	LastColorChange   *time.Time
	ChangesInWindow   uint32
	WindowStart       *time.Time
}

// EngineConfig is the admin-mutable singleton controlling engine policy.
type EngineConfig struct {
	// Admin may update this config and withdraw collected fees.
	Admin string
	// Registry is the identity of the token registry; only it may report
	// ownership transfers.
	Registry string
	// ColorChangeFee is the default fee in base units for non-owner edits.
	ColorChangeFee uint64
	// RateLimit is the maximum number of changes per editor per window.
	RateLimit uint32
	// RateLimitWindow is the window length in seconds.
	RateLimitWindow uint64
	// RequiresPayment gates fee collection entirely.
	RequiresPayment bool
	// RateLimitingEnabled gates the rate limiter entirely.
	RateLimitingEnabled bool
	// RoyaltyPercent is the platform's share of every collected fee, in
	// [0, 100]. The remainder accrues to the tile owner.
	RoyaltyPercent uint8
	// MintPrice is the exact payment required to claim a position.
	MintPrice uint64
}

// ColorChangeEvent is one committed color change, kept as history per
// position.
type ColorChangeEvent struct {
	ID        string
	Position  canvas.Position
	Editor    string
	FromColor canvas.Color
	ToColor   canvas.Color
	FeePaid   uint64
	Timestamp time.Time
}

// Claim records that a position has been awarded to a mint request.
type Claim struct {
	Position canvas.Position
	TokenID  string
	Minter   string
	MintedAt time.Time
}

// Store defines keyed persistence for the engine. Implementations must make
// each individual method call atomic; cross-call atomicity for the commit
// path is provided by the engine's request serialization.
type Store interface {
	// Permission records (keyed by position). GetPermissions returns
	// ErrNotFound when no record exists.
	GetPermissions(ctx context.Context, pos canvas.Position) (*PermissionRecord, error)
	PutPermissions(ctx context.Context, rec *PermissionRecord) error

	// User statistics (keyed by identity). GetUserStatistics returns
	// ErrNotFound for users that never changed a color.
	GetUserStatistics(ctx context.Context, identity string) (*UserStatistics, error)
	PutUserStatistics(ctx context.Context, stats *UserStatistics) error

	// Engine config singleton.
	GetEngineConfig(ctx context.Context) (*EngineConfig, error)
	PutEngineConfig(ctx context.Context, cfg *EngineConfig) error

	// Fee ledger. TotalFees is the platform's running balance; it is
	// mutated only by settlement and admin withdrawal. Owner balances
	// accrue the owner share of split fees.
	GetTotalFees(ctx context.Context) (uint64, error)
	SetTotalFees(ctx context.Context, total uint64) error
	GetOwnerBalance(ctx context.Context, identity string) (uint64, error)
	AddOwnerBalance(ctx context.Context, identity string, amount uint64) error

	// Color change history, newest last.
	AppendColorChange(ctx context.Context, ev *ColorChangeEvent) error
	ListColorChanges(ctx context.Context, pos canvas.Position, limit int) ([]*ColorChangeEvent, error)

	// Claimed positions.
	GetClaim(ctx context.Context, pos canvas.Position) (*Claim, error)
	PutClaim(ctx context.Context, claim *Claim) error
	HasClaim(ctx context.Context, pos canvas.Position) (bool, error)
	CountClaims(ctx context.Context) (uint64, error)

	// Sequential-allocation cursor.
	GetCursor(ctx context.Context) (canvas.Position, error)
	SetCursor(ctx context.Context, pos canvas.Position) error

	// Close releases any resources held by the store.
	Close() error
}
