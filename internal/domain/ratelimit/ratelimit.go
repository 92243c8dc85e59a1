// Package ratelimit implements per-client fixed-window admission control.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Defaults for the submission window.
const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 15
)

// ErrRateLimited is returned by Allow when the client exhausted its window.
var ErrRateLimited = errors.New("too many submissions")

// Decision is the outcome of an admission check.
type Decision bool

// Possible decisions.
const (
	Allowed Decision = true
	Denied  Decision = false
)

func (d Decision) String() string {
	if d {
		return "allowed"
	}
	return "denied"
}

// window counts one client's submissions since start.
type window struct {
	count int
	start time.Time
}

// Limiter admits at most max submissions per client within each window.
// Counters live in process memory only and are lost on restart.
//
// A single mutex covers the sweep and the check-and-increment, so under
// concurrent calls for one client exactly max are admitted per window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	window  time.Duration
	max     int
	now     func() time.Time
}

// New creates a Limiter with the default 15 submissions per 60s.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		clients: make(map[string]*window),
		window:  DefaultWindow,
		max:     DefaultMax,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records a submission attempt by clientID at now.
// A denied attempt leaves the counter untouched.
func (l *Limiter) Admit(clientID string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.clients[clientID]
	if !ok {
		l.clients[clientID] = &window{count: 1, start: now}
		return Allowed
	}
	if now.Sub(w.start) > l.window {
		w.count = 1
		w.start = now
		return Allowed
	}
	if w.count < l.max {
		w.count++
		return Allowed
	}
	return Denied
}

// Allow is Admit at the limiter clock, reporting denial as ErrRateLimited.
func (l *Limiter) Allow(_ context.Context, clientID string) error {
	if l.Admit(clientID, l.now()) == Denied {
		return ErrRateLimited
	}
	return nil
}

// sweep drops every window that has elapsed at now.
// Must be called with l.mu held.
func (l *Limiter) sweep(now time.Time) {
	for id, w := range l.clients {
		if now.Sub(w.start) > l.window {
			delete(l.clients, id)
		}
	}
}

// Len returns the number of clients with a live window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Max returns the configured per-window capacity.
func (l *Limiter) Max() int { return l.max }
