package repository

import "time"

const (
	defaultTimeout  = 5 * time.Second
	defaultMaxConns = 10
)

type options struct {
	timeout  time.Duration
	maxConns int
	now      func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		timeout:  defaultTimeout,
		maxConns: defaultMaxConns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option applies a configuration option to a Store implementation.
type Option func(*options)

// WithTimeout bounds every storage call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxConns sets the connection pool size. Ignored by the sqlite and
// memory stores.
func WithMaxConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithClock sets the clock used for records submitted without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
