// Package ratelimit implements per-client fixed-window admission control.
package ratelimit

import "time"

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithWindow sets the window length W. Non-positive values are ignored.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithMax sets the number of submissions N admitted per client per window.
// Non-positive values are ignored.
func WithMax(max int) Option {
	return func(l *Limiter) {
		if max > 0 {
			l.max = max
		}
	}
}

// WithClock replaces time.Now, used by Allow.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}
