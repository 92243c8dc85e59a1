// Package service implements the leaderboard use cases behind the HTTP API.
//
// Every submission passes the per-client rate limiter first, then the
// validator, then storage. Reads fetch the storage-reduced set and apply the
// ranking policy before cutting the top slice.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
	"github.com/okian/runboard/internal/domain/ratelimit"
	"github.com/okian/runboard/internal/domain/types"
	"github.com/okian/runboard/internal/domain/validate"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// Validator turns payloads into records.
type Validator interface {
	Run(p validate.Payload) (model.RunRecord, error)
	Hero(p validate.Payload) (model.HeroRecord, error)
}

// Publisher receives accepted submissions for the live feed. Enqueue must
// not block; a false return means the event was dropped.
type Publisher interface {
	Enqueue(ctx context.Context, e model.Event) bool
}

// Service implements the API dependencies for the leaderboards.
type Service struct {
	store     repository.Store
	limiter   *ratelimit.Limiter
	validator Validator
	publisher Publisher
	now       func() time.Time
	startedAt time.Time
	logger    logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimiter sets the limiter shared by run and hero submissions.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithValidator replaces the default validator, which applies no name filter.
func WithValidator(v Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithClock sets the clock that stamps records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher sends accepted submissions to the live feed.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		limiter:   ratelimit.New(),
		validator: validate.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.startedAt = s.now()
	return s
}

// SubmitRun admits, validates and stores a run, returning its id.
//
// Errors: ratelimit.ErrRateLimited, a *validate.FieldError, or a
// repository.ErrUnavailable wrap.
func (s *Service) SubmitRun(ctx context.Context, clientID string, p validate.Payload) (int64, error) {
	if err := s.admit(ctx, clientID, metrics.KindRun); err != nil {
		return 0, err
	}

	rec, err := s.validator.Run(p)
	if err != nil {
		var fe *validate.FieldError
		if errors.As(err, &fe) {
			metrics.RecordValidationError(fe.Field)
		}
		metrics.RecordSubmission(metrics.KindRun, metrics.OutcomeInvalid)
		return 0, err
	}
	rec.CreatedAt = s.now().UTC()

	id, err := s.store.InsertRun(ctx, rec)
	if err != nil {
		metrics.RecordSubmission(metrics.KindRun, metrics.OutcomeError)
		s.logger.Error(ctx, "failed to save run", logger.String("player", rec.PlayerName), logger.Error(err))
		return 0, fmt.Errorf("submit run: %w", err)
	}
	rec.ID = id
	metrics.RecordSubmission(metrics.KindRun, metrics.OutcomeAccepted)
	s.logger.Debug(ctx, "run saved",
		logger.Int64("id", id),
		logger.String("player", rec.PlayerName),
		logger.Int("tier", rec.DungeonTier),
		logger.Int("wave", rec.Wave),
		logger.Int("boss_hp_left", rec.BossHPLeft),
	)

	s.publish(ctx, model.Event{Kind: model.EventRun, Run: &rec, At: rec.CreatedAt})
	return id, nil
}

// TopRuns returns the best run of each player, ranked, at most
// ranking.ClampLimit(limit) entries.
func (s *Service) TopRuns(ctx context.Context, limit int) ([]types.RunEntry, error) {
	limit = ranking.ClampLimit(limit)
	runs, err := s.store.BestRuns(ctx, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to load runs", logger.Error(err))
		return nil, fmt.Errorf("top runs: %w", err)
	}
	metrics.RecordQuery(metrics.KindRun)

	top := ranking.TopRuns(runs, limit)
	entries := make([]types.RunEntry, len(top))
	for i, r := range top {
		entries[i] = types.FromRun(i+1, r)
	}
	return entries, nil
}

// SubmitHero admits, validates and conditionally stores a hero record.
// It reports whether the stored record was written; a lower or equal level
// is accepted but not written.
func (s *Service) SubmitHero(ctx context.Context, clientID string, p validate.Payload) (bool, error) {
	if err := s.admit(ctx, clientID, metrics.KindHero); err != nil {
		return false, err
	}

	rec, err := s.validator.Hero(p)
	if err != nil {
		metrics.RecordSubmission(metrics.KindHero, metrics.OutcomeInvalid)
		return false, err
	}
	rec.UpdatedAt = s.now().UTC()

	applied, err := s.store.UpsertHero(ctx, rec)
	if err != nil {
		metrics.RecordSubmission(metrics.KindHero, metrics.OutcomeError)
		s.logger.Error(ctx, "failed to save hero", logger.String("player", rec.PlayerName), logger.Error(err))
		return false, fmt.Errorf("submit hero: %w", err)
	}
	metrics.RecordSubmission(metrics.KindHero, metrics.OutcomeAccepted)
	metrics.RecordHeroUpsert(applied)
	s.logger.Debug(ctx, "hero submitted",
		logger.String("player", rec.PlayerName),
		logger.Int("level", rec.HeroLevel),
		logger.Bool("applied", applied),
	)

	if applied {
		s.publish(ctx, model.Event{Kind: model.EventHero, Hero: &rec, At: rec.UpdatedAt})
	}
	return applied, nil
}

// TopHeroes returns hero records ranked by level.
func (s *Service) TopHeroes(ctx context.Context, limit int) ([]types.HeroEntry, error) {
	limit = ranking.ClampLimit(limit)
	heroes, err := s.store.Heroes(ctx, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to load heroes", logger.Error(err))
		return nil, fmt.Errorf("top heroes: %w", err)
	}
	metrics.RecordQuery(metrics.KindHero)

	top := ranking.TopHeroes(heroes, limit)
	entries := make([]types.HeroEntry, len(top))
	for i, h := range top {
		entries[i] = types.FromHero(i+1, h)
	}
	return entries, nil
}

// Ping checks storage.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"uptime_seconds":       int64(s.now().Sub(s.startedAt).Seconds()),
		"rate_limit_clients":   s.limiter.Len(),
		"rate_limit_window_ms": s.limiter.Window().Milliseconds(),
		"rate_limit_max":       s.limiter.Max(),
	}

	if runs, err := s.store.CountRuns(ctx); err == nil {
		stats["runs"] = runs
	} else {
		stats["storage_error"] = true
	}
	if heroes, err := s.store.CountHeroes(ctx); err == nil {
		stats["heroes"] = heroes
	} else {
		stats["storage_error"] = true
	}
	if q, ok := s.publisher.(interface{ Len(context.Context) int }); ok {
		stats["feed_queue_length"] = q.Len(ctx)
	}

	metrics.UpdateRateLimitClients(s.limiter.Len())
	return stats
}

func (s *Service) admit(ctx context.Context, clientID, kind string) error {
	err := s.limiter.Allow(ctx, clientID)
	metrics.UpdateRateLimitClients(s.limiter.Len())
	if err != nil {
		metrics.RecordRateLimitDenied()
		metrics.RecordSubmission(kind, metrics.OutcomeRateLimited)
		s.logger.Warn(ctx, "submission rate limited", logger.String("client", clientID), logger.String("kind", kind))
		return err
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e model.Event) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.Enqueue(ctx, e) {
		s.logger.Debug(ctx, "feed event dropped", logger.String("kind", e.Kind))
	}
}
