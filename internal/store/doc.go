// Package store provides persistent storage for mosaicd using SQLite.
//
// # Data Models
//
//   - PermissionRecord / Grant: per-position access control with
//     per-editor expiry
//   - UserStatistics: monotonic counters plus the active rate-limit window
//   - EngineConfig: admin-mutable policy singleton
//   - ColorChangeEvent: committed change history per position
//   - Claim: minted-position registry with allocation cursor
//
// The fee ledger is two slots: the platform total (mutated by settlement
// and admin withdrawal only) and per-owner accrued balances.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite,
// and NewMockStore() for unit tests.
//
// # Error Handling
//
// ErrNotFound is returned when a requested entity does not exist. All
// methods accept context.Context.
package store
