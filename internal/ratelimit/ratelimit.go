// ABOUTME: Per-editor change-rate limiter over a resetting time window
// ABOUTME: Pure state transitions on UserStatistics; the engine decides who is subject

package ratelimit

import (
	"time"

	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Policy is the subset of engine config the limiter needs.
type Policy struct {
	Enabled bool
	Limit   uint32
	Window  time.Duration
}

// PolicyFromConfig extracts the limiter policy from the engine config.
func PolicyFromConfig(cfg *store.EngineConfig) Policy {
	return Policy{
		Enabled: cfg.RateLimitingEnabled,
		Limit:   cfg.RateLimit,
		Window:  time.Duration(cfg.RateLimitWindow) * time.Second,
	}
}

// Check reports whether the editor may make another change at now. When the
// answer is no, remaining is the time until the current window lapses.
//
// A window lapses strictly after window_start + window: at exactly the
// boundary the old window still applies.
func Check(stats *store.UserStatistics, policy Policy, now time.Time) (ok bool, remaining time.Duration) {
	if !policy.Enabled {
		return true, 0
	}

	windowStart := now
	if stats.WindowStart != nil {
		windowStart = *stats.WindowStart
	}
	windowEnd := windowStart.Add(policy.Window)

	if now.After(windowEnd) {
		// Window has lapsed; the next change opens a fresh one.
		return true, 0
	}
	if stats.ChangesInWindow < policy.Limit {
		return true, 0
	}
	return false, windowEnd.Sub(now)
}

// Record applies one accepted change to the statistics. If no window is
// open, or the previous window has lapsed, a new window starts with this
// change as its first (ChangesInWindow restarts at 1, not 0). The monotonic
// totals always advance.
func Record(stats *store.UserStatistics, policy Policy, now time.Time) {
	if stats.WindowStart == nil || now.After(stats.WindowStart.Add(policy.Window)) {
		start := now
		stats.WindowStart = &start
		stats.ChangesInWindow = 1
	} else {
		stats.ChangesInWindow++
	}

	stats.TotalColorChanges++
	last := now
	stats.LastColorChange = &last
}
