package live

import (
	"net/http"

	"github.com/okian/runboard/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigin restricts upgrades to requests whose Origin header
// equals origin. "*" or empty allows any origin.
func WithAllowedOrigin(origin string) Option {
	return func(h *Hub) {
		if origin == "" || origin == "*" {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		}
	}
}
