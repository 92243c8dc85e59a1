package api

import (
	"net/http"

	"github.com/okian/runboard/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the access logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCORSOrigin sets Access-Control-Allow-Origin. Empty keeps "*".
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithTrustProxy makes the first X-Forwarded-For entry the client id.
func WithTrustProxy(trust bool) Option {
	return func(s *Server) {
		s.trustProxy = trust
	}
}

// WithLive mounts the live feed handler at /leaderboard/live.
func WithLive(h http.Handler) Option {
	return func(s *Server) {
		s.live = h
	}
}
