// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides keyed persistence with automatic schema creation and WAL mode

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path. The schema is
// automatically created if it doesn't exist. Parent directories are created
// if needed. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS permissions (
			x               INTEGER NOT NULL,
			y               INTEGER NOT NULL,
			owner           TEXT NOT NULL,
			public_editing  INTEGER NOT NULL DEFAULT 0,
			public_fee      INTEGER,
			PRIMARY KEY (x, y)
		);

		CREATE TABLE IF NOT EXISTS permission_grants (
			x          INTEGER NOT NULL,
			y          INTEGER NOT NULL,
			editor     TEXT NOT NULL,
			expires_at TEXT,
			PRIMARY KEY (x, y, editor),
			FOREIGN KEY (x, y) REFERENCES permissions(x, y) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS user_stats (
			identity            TEXT PRIMARY KEY,
			total_color_changes INTEGER NOT NULL,
			total_fees_paid     INTEGER NOT NULL,
			last_color_change   TEXT,
			changes_in_window   INTEGER NOT NULL,
			window_start        TEXT
		);

		CREATE TABLE IF NOT EXISTS engine_config (
			id                    INTEGER PRIMARY KEY CHECK (id = 1),
			admin                 TEXT NOT NULL,
			registry              TEXT NOT NULL,
			color_change_fee      INTEGER NOT NULL,
			rate_limit            INTEGER NOT NULL,
			rate_limit_window     INTEGER NOT NULL,
			requires_payment      INTEGER NOT NULL,
			rate_limiting_enabled INTEGER NOT NULL,
			royalty_percent       INTEGER NOT NULL,
			mint_price            INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS fee_ledger (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			total_fees INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS owner_balances (
			identity TEXT PRIMARY KEY,
			balance  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS color_history (
			id       TEXT PRIMARY KEY,
			x        INTEGER NOT NULL,
			y        INTEGER NOT NULL,
			editor   TEXT NOT NULL,
			from_r   INTEGER NOT NULL,
			from_g   INTEGER NOT NULL,
			from_b   INTEGER NOT NULL,
			to_r     INTEGER NOT NULL,
			to_g     INTEGER NOT NULL,
			to_b     INTEGER NOT NULL,
			fee_paid INTEGER NOT NULL,
			ts       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_color_history_pos
			ON color_history(x, y, ts);

		CREATE TABLE IF NOT EXISTS claims (
			x         INTEGER NOT NULL,
			y         INTEGER NOT NULL,
			token_id  TEXT NOT NULL,
			minter    TEXT NOT NULL,
			minted_at TEXT NOT NULL,
			PRIMARY KEY (x, y)
		);

		CREATE TABLE IF NOT EXISTS allocator_cursor (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			x  INTEGER NOT NULL,
			y  INTEGER NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// GetPermissions loads the permission record and its grants for a position.
func (s *SQLiteStore) GetPermissions(ctx context.Context, pos canvas.Position) (*PermissionRecord, error) {
	rec := &PermissionRecord{Position: pos}
	var publicEditing int
	var publicFee sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT owner, public_editing, public_fee FROM permissions WHERE x = ? AND y = ?`,
		pos.X, pos.Y,
	).Scan(&rec.Owner, &publicEditing, &publicFee)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying permissions: %w", err)
	}

	rec.PublicEditing = publicEditing != 0
	if publicFee.Valid {
		fee := uint64(publicFee.Int64)
		rec.PublicChangeFee = &fee
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT editor, expires_at FROM permission_grants WHERE x = ? AND y = ? ORDER BY editor`,
		pos.X, pos.Y,
	)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var g Grant
		var expires sql.NullString
		if err := rows.Scan(&g.Editor, &expires); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		if expires.Valid {
			t, err := time.Parse(time.RFC3339, expires.String)
			if err != nil {
				return nil, fmt.Errorf("parsing grant expiry: %w", err)
			}
			g.ExpiresAt = &t
		}
		rec.Grants = append(rec.Grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grants: %w", err)
	}

	return rec, nil
}

// PutPermissions upserts a permission record and replaces its grant rows.
func (s *SQLiteStore) PutPermissions(ctx context.Context, rec *PermissionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var publicFee sql.NullInt64
	if rec.PublicChangeFee != nil {
		publicFee = sql.NullInt64{Int64: int64(*rec.PublicChangeFee), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permissions (x, y, owner, public_editing, public_fee)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (x, y) DO UPDATE SET
			owner = excluded.owner,
			public_editing = excluded.public_editing,
			public_fee = excluded.public_fee`,
		rec.Position.X, rec.Position.Y, rec.Owner, boolToInt(rec.PublicEditing), publicFee,
	)
	if err != nil {
		return fmt.Errorf("upserting permissions: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE x = ? AND y = ?`,
		rec.Position.X, rec.Position.Y,
	)
	if err != nil {
		return fmt.Errorf("clearing grants: %w", err)
	}

	for _, g := range rec.Grants {
		var expires sql.NullString
		if g.ExpiresAt != nil {
			expires = sql.NullString{String: g.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO permission_grants (x, y, editor, expires_at) VALUES (?, ?, ?, ?)`,
			rec.Position.X, rec.Position.Y, g.Editor, expires,
		)
		if err != nil {
			return fmt.Errorf("inserting grant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing permissions: %w", err)
	}
	return nil
}

// GetUserStatistics loads the counters for an editor.
func (s *SQLiteStore) GetUserStatistics(ctx context.Context, identity string) (*UserStatistics, error) {
	stats := &UserStatistics{Identity: identity}
	var lastChange, windowStart sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT total_color_changes, total_fees_paid, last_color_change,
		       changes_in_window, window_start
		FROM user_stats WHERE identity = ?`,
		identity,
	).Scan(&stats.TotalColorChanges, &stats.TotalFeesPaid, &lastChange,
		&stats.ChangesInWindow, &windowStart)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user stats: %w", err)
	}

	if stats.LastColorChange, err = parseNullTime(lastChange); err != nil {
		return nil, fmt.Errorf("parsing last_color_change: %w", err)
	}
	if stats.WindowStart, err = parseNullTime(windowStart); err != nil {
		return nil, fmt.Errorf("parsing window_start: %w", err)
	}
	return stats, nil
}

// PutUserStatistics upserts the counters for an editor.
func (s *SQLiteStore) PutUserStatistics(ctx context.Context, stats *UserStatistics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (identity, total_color_changes, total_fees_paid,
		                        last_color_change, changes_in_window, window_start)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			total_color_changes = excluded.total_color_changes,
			total_fees_paid = excluded.total_fees_paid,
			last_color_change = excluded.last_color_change,
			changes_in_window = excluded.changes_in_window,
			window_start = excluded.window_start`,
		stats.Identity, stats.TotalColorChanges, stats.TotalFeesPaid,
		formatNullTime(stats.LastColorChange), stats.ChangesInWindow,
		formatNullTime(stats.WindowStart),
	)
	if err != nil {
		return fmt.Errorf("upserting user stats: %w", err)
	}
	return nil
}

// GetEngineConfig loads the config singleton.
func (s *SQLiteStore) GetEngineConfig(ctx context.Context) (*EngineConfig, error) {
	cfg := &EngineConfig{}
	var requiresPayment, rateLimiting int

	err := s.db.QueryRowContext(ctx, `
		SELECT admin, registry, color_change_fee, rate_limit, rate_limit_window,
		       requires_payment, rate_limiting_enabled, royalty_percent, mint_price
		FROM engine_config WHERE id = 1`,
	).Scan(&cfg.Admin, &cfg.Registry, &cfg.ColorChangeFee, &cfg.RateLimit,
		&cfg.RateLimitWindow, &requiresPayment, &rateLimiting,
		&cfg.RoyaltyPercent, &cfg.MintPrice)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying engine config: %w", err)
	}

	cfg.RequiresPayment = requiresPayment != 0
	cfg.RateLimitingEnabled = rateLimiting != 0
	return cfg, nil
}

// PutEngineConfig stores the config singleton.
func (s *SQLiteStore) PutEngineConfig(ctx context.Context, cfg *EngineConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_config (id, admin, registry, color_change_fee, rate_limit,
		                           rate_limit_window, requires_payment,
		                           rate_limiting_enabled, royalty_percent, mint_price)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			admin = excluded.admin,
			registry = excluded.registry,
			color_change_fee = excluded.color_change_fee,
			rate_limit = excluded.rate_limit,
			rate_limit_window = excluded.rate_limit_window,
			requires_payment = excluded.requires_payment,
			rate_limiting_enabled = excluded.rate_limiting_enabled,
			royalty_percent = excluded.royalty_percent,
			mint_price = excluded.mint_price`,
		cfg.Admin, cfg.Registry, cfg.ColorChangeFee, cfg.RateLimit,
		cfg.RateLimitWindow, boolToInt(cfg.RequiresPayment),
		boolToInt(cfg.RateLimitingEnabled), cfg.RoyaltyPercent, cfg.MintPrice,
	)
	if err != nil {
		return fmt.Errorf("upserting engine config: %w", err)
	}
	return nil
}

// GetTotalFees returns the platform fee balance, zero if never written.
func (s *SQLiteStore) GetTotalFees(ctx context.Context) (uint64, error) {
	var total uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT total_fees FROM fee_ledger WHERE id = 1`,
	).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying total fees: %w", err)
	}
	return total, nil
}

// SetTotalFees stores the platform fee balance.
func (s *SQLiteStore) SetTotalFees(ctx context.Context, total uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fee_ledger (id, total_fees) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET total_fees = excluded.total_fees`,
		total,
	)
	if err != nil {
		return fmt.Errorf("storing total fees: %w", err)
	}
	return nil
}

// GetOwnerBalance returns the accrued owner share for an identity, zero if
// none.
func (s *SQLiteStore) GetOwnerBalance(ctx context.Context, identity string) (uint64, error) {
	var balance uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM owner_balances WHERE identity = ?`,
		identity,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying owner balance: %w", err)
	}
	return balance, nil
}

// AddOwnerBalance accrues an amount to an identity's balance.
func (s *SQLiteStore) AddOwnerBalance(ctx context.Context, identity string, amount uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owner_balances (identity, balance) VALUES (?, ?)
		ON CONFLICT (identity) DO UPDATE SET balance = balance + excluded.balance`,
		identity, amount,
	)
	if err != nil {
		return fmt.Errorf("accruing owner balance: %w", err)
	}
	return nil
}

// AppendColorChange stores one committed change in the position's history.
func (s *SQLiteStore) AppendColorChange(ctx context.Context, ev *ColorChangeEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO color_history (id, x, y, editor, from_r, from_g, from_b,
		                           to_r, to_g, to_b, fee_paid, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Position.X, ev.Position.Y, ev.Editor,
		ev.FromColor.R, ev.FromColor.G, ev.FromColor.B,
		ev.ToColor.R, ev.ToColor.G, ev.ToColor.B,
		ev.FeePaid, ev.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting color change: %w", err)
	}
	return nil
}

// ListColorChanges returns up to limit changes for a position, newest last.
func (s *SQLiteStore) ListColorChanges(ctx context.Context, pos canvas.Position, limit int) ([]*ColorChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, editor, from_r, from_g, from_b, to_r, to_g, to_b, fee_paid, ts
		FROM color_history
		WHERE x = ? AND y = ?
		ORDER BY ts DESC
		LIMIT ?`,
		pos.X, pos.Y, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying color history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*ColorChangeEvent
	for rows.Next() {
		ev := &ColorChangeEvent{Position: pos}
		var ts string
		err := rows.Scan(&ev.ID, &ev.Editor,
			&ev.FromColor.R, &ev.FromColor.G, &ev.FromColor.B,
			&ev.ToColor.R, &ev.ToColor.G, &ev.ToColor.B,
			&ev.FeePaid, &ts)
		if err != nil {
			return nil, fmt.Errorf("scanning color change: %w", err)
		}
		ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing change timestamp: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating color history: %w", err)
	}

	// Reverse to newest-last for callers.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// GetClaim loads the claim for a position, ErrNotFound if unclaimed.
func (s *SQLiteStore) GetClaim(ctx context.Context, pos canvas.Position) (*Claim, error) {
	claim := &Claim{Position: pos}
	var mintedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT token_id, minter, minted_at FROM claims WHERE x = ? AND y = ?`,
		pos.X, pos.Y,
	).Scan(&claim.TokenID, &claim.Minter, &mintedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying claim: %w", err)
	}

	claim.MintedAt, err = time.Parse(time.RFC3339, mintedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing minted_at: %w", err)
	}
	return claim, nil
}

// PutClaim records a newly awarded position.
func (s *SQLiteStore) PutClaim(ctx context.Context, claim *Claim) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (x, y, token_id, minter, minted_at) VALUES (?, ?, ?, ?, ?)`,
		claim.Position.X, claim.Position.Y, claim.TokenID, claim.Minter,
		claim.MintedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting claim: %w", err)
	}
	return nil
}

// HasClaim reports whether a position is claimed.
func (s *SQLiteStore) HasClaim(ctx context.Context, pos canvas.Position) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM claims WHERE x = ? AND y = ?`,
		pos.X, pos.Y,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying claim existence: %w", err)
	}
	return true, nil
}

// CountClaims returns the number of claimed positions.
func (s *SQLiteStore) CountClaims(ctx context.Context) (uint64, error) {
	var count uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting claims: %w", err)
	}
	return count, nil
}

// GetCursor returns the sequential-allocation cursor, (0,0) if never set.
func (s *SQLiteStore) GetCursor(ctx context.Context) (canvas.Position, error) {
	var pos canvas.Position
	err := s.db.QueryRowContext(ctx,
		`SELECT x, y FROM allocator_cursor WHERE id = 1`,
	).Scan(&pos.X, &pos.Y)
	if err == sql.ErrNoRows {
		return canvas.Position{}, nil
	}
	if err != nil {
		return canvas.Position{}, fmt.Errorf("querying cursor: %w", err)
	}
	return pos, nil
}

// SetCursor stores the sequential-allocation cursor.
func (s *SQLiteStore) SetCursor(ctx context.Context, pos canvas.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocator_cursor (id, x, y) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET x = excluded.x, y = excluded.y`,
		pos.X, pos.Y,
	)
	if err != nil {
		return fmt.Errorf("storing cursor: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// Ensure SQLiteStore implements the Store interface.
var _ Store = (*SQLiteStore)(nil)
