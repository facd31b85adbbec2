// Package engine is the decision core of mosaicd: it authorizes, rate
// limits, prices, and commits color changes against the tile canvas.
//
// # Decision Flow
//
// ChangeColor runs every check before any state is touched, so a rejected
// change leaves no trace:
//
//  1. Bounds: the position must lie inside the configured grid.
//  2. Ownership: the registry oracle names the current owner. A mismatch
//     with the cached record means a transfer was missed; the record is
//     reset before the decision continues.
//  3. Authorization: the owner always may edit; everyone else needs a
//     live grant or public editing.
//  4. Rate limit: at most RateLimit changes per RateLimitWindow, owner
//     included.
//  5. Payment: the required fee depends on who edits and the public fee
//     override; underpayment rejects, overpayment reports the excess.
//
// Only then does the engine commit: statistics, the fee ledgers, the
// history row, metrics, and the event broadcast.
//
// # Concurrency
//
// All mutations run under one mutex. The engine is the single writer for
// canvas state; queries read through without the lock where the store
// snapshot suffices.
//
// # Admin Operations
//
// UpdateConfig and WithdrawFees are restricted to the stored admin
// identity. Config updates are validated as a whole: one bad field
// rejects the entire update. HandleTransfer is restricted to the stored
// registry identity and resets permissions for the transferred position.
package engine
