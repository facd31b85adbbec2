// Package perm manages per-position edit permissions: owner grants with
// optional expiry, public editing flags, and their batch variants.
//
// Grants expire per editor, not per position; an expired grant stays in
// the record until the owner rewrites it but never authorizes an edit.
// Batch operations are all-or-nothing: the first failing item aborts the
// batch and nothing is persisted.
package perm
