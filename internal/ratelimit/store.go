// Package ratelimit holds fixed-window request counters keyed by caller
// identity. The middleware receives a Store explicitly; nothing here is
// process global.
package ratelimit

import (
	"context"
	"time"
)

// Window is the state of one key after a hit.
type Window struct {
	Count   int64
	ResetAt time.Time
}

// Remaining is the number of requests left under limit, never negative.
func (w Window) Remaining(limit int64) int64 {
	if w.Count >= limit {
		return 0
	}
	return limit - w.Count
}

type Store interface {
	// Hit counts one request against key. The first hit opens a window of
	// the given length; later hits in the same window increment it.
	Hit(ctx context.Context, key string, window time.Duration) (Window, error)
}
