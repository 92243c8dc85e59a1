// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/runboard/internal/domain/types"
	"github.com/okian/runboard/internal/domain/validate"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// maxBodyBytes bounds submission bodies.
const maxBodyBytes = 16 << 10

// codec keeps numbers as json.Number so the validator sees them exactly.
var codec = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmitRun(ctx context.Context, clientID string, p validate.Payload) (int64, error)
	TopRuns(ctx context.Context, limit int) ([]types.RunEntry, error)
	SubmitHero(ctx context.Context, clientID string, p validate.Payload) (bool, error)
	TopHeroes(ctx context.Context, limit int) ([]types.HeroEntry, error)
	StatsProvider
	Pinger
}

// Server wires HTTP routes for the business API.
type Server struct {
	runsHandler   *RunsHandler
	heroesHandler *HeroesHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	live          http.Handler

	corsOrigin string
	trustProxy bool
	logger     logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{corsOrigin: "*"}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}

	client := clientIdentifier(s.trustProxy)
	s.runsHandler = NewRunsHandler(deps, client)
	s.heroesHandler = NewHeroesHandler(deps, client)
	s.healthHandler = NewHealthHandler(deps, s.logger)
	s.statsHandler = NewStatsHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux. The leaderboard routes are
// served both at the root and under /api.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc(prefix+"/leaderboard", MetricsMiddleware(s.runsHandler.Handle, "leaderboard"))
		mux.HandleFunc(prefix+"/leaderboard-hero", MetricsMiddleware(s.heroesHandler.Handle, "leaderboard_hero"))
		if s.live != nil {
			mux.Handle(prefix+"/leaderboard/live", s.live)
		}
	}
}

// Wrap applies the request id, access log and CORS middleware to next.
func (s *Server) Wrap(next http.Handler) http.Handler {
	return RequestLogMiddleware(s.logger, CORSMiddleware(s.corsOrigin, next))
}

// decodePayload reads a JSON object body. An empty body or null decodes to
// an empty payload.
func decodePayload(w http.ResponseWriter, r *http.Request) (validate.Payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	p := validate.Payload{}
	if len(bytes.TrimSpace(body)) == 0 {
		return p, nil
	}
	if err := codec.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if p == nil {
		p = validate.Payload{}
	}
	return p, nil
}

// limitParam parses ?limit=; anything unparsable is 0, the default.
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, msgNotAllowed)
}
