// Package repository persists runs and hero records.
//
// Three implementations share the Store contract: PostgresStore for
// deployment, SQLiteStore for local runs, and MemoryStore for development
// and tests. Every error returned by a store wraps ErrUnavailable.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/metrics"
)

// Operation names used for metrics and error messages.
const (
	OpInsertRun   = "insert_run"
	OpBestRuns    = "best_runs"
	OpUpsertHero  = "upsert_hero"
	OpHeroes      = "heroes"
	OpCountRuns   = "count_runs"
	OpCountHeroes = "count_heroes"
	OpPing        = "ping"
	OpMigrate     = "migrate"
)

// Store provides read/write access to the leaderboard tables.
type Store interface {
	// InsertRun appends a run and returns its id. A zero CreatedAt is set
	// to the store clock.
	InsertRun(ctx context.Context, r model.RunRecord) (int64, error)

	// BestRuns returns at most limit runs, one per normalized player name,
	// excluding the reserved name, best first.
	BestRuns(ctx context.Context, limit int) ([]model.RunRecord, error)

	// UpsertHero writes h when no record exists for its normalized name or
	// when h.HeroLevel is strictly greater than the stored level.
	// Returns true if the store wrote the record.
	UpsertHero(ctx context.Context, h model.HeroRecord) (bool, error)

	// Heroes returns at most limit hero records, excluding the reserved
	// name, best first.
	Heroes(ctx context.Context, limit int) ([]model.HeroRecord, error)

	// CountRuns returns the number of stored runs.
	CountRuns(ctx context.Context) (int64, error)

	// CountHeroes returns the number of stored hero records.
	CountHeroes(ctx context.Context) (int64, error)

	// Ping checks that storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// observe runs fn under the store timeout, records latency and wraps any
// failure with ErrUnavailable.
func observe(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStorageLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStorageError(op)
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	return nil
}

func normalizeRun(r model.RunRecord, now func() time.Time) model.RunRecord {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

func normalizeHero(h model.HeroRecord, now func() time.Time) model.HeroRecord {
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = now()
	}
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h
}
