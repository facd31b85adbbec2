// Package allocator awards unclaimed canvas positions: a bounded number
// of seeded random draws, then a sequential raster scan from a persistent
// cursor.
package allocator
