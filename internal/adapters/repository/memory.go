package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
)

// MemoryStore is a Store held in process memory.
//
// Runs are append-only; CreatedAt is kept non-decreasing in insertion order.
// The hero compare-and-set runs under the write lock.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   []model.RunRecord
	heroes map[string]model.HeroRecord
	nextID int64
	lastAt time.Time
	closed bool
	opts   options
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		heroes: make(map[string]model.HeroRecord),
		opts:   newOptions(opts),
	}
}

// InsertRun implements Store.
func (s *MemoryStore) InsertRun(ctx context.Context, r model.RunRecord) (int64, error) {
	var id int64
	err := s.do(ctx, OpInsertRun, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return ErrClosed
		}
		r = normalizeRun(r, s.opts.now)
		if r.CreatedAt.Before(s.lastAt) {
			r.CreatedAt = s.lastAt
		}
		s.lastAt = r.CreatedAt
		s.nextID++
		r.ID = s.nextID
		r.Team = copyTeam(r.Team)
		s.runs = append(s.runs, r)
		id = r.ID
		return nil
	})
	return id, err
}

// BestRuns implements Store.
func (s *MemoryStore) BestRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	var out []model.RunRecord
	err := s.do(ctx, OpBestRuns, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.closed {
			return ErrClosed
		}
		// BestPerPlayer copies into a fresh slice, so s.runs is not reordered.
		out = ranking.TopRuns(s.runs, limit)
		for i := range out {
			out[i].Team = copyTeam(out[i].Team)
		}
		return nil
	})
	return out, err
}

// UpsertHero implements Store.
func (s *MemoryStore) UpsertHero(ctx context.Context, h model.HeroRecord) (bool, error) {
	var applied bool
	err := s.do(ctx, OpUpsertHero, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return ErrClosed
		}
		key := ranking.NormalizeName(h.PlayerName)
		if cur, ok := s.heroes[key]; ok && cur.HeroLevel >= h.HeroLevel {
			return nil
		}
		s.heroes[key] = normalizeHero(h, s.opts.now)
		applied = true
		return nil
	})
	return applied, err
}

// Heroes implements Store.
func (s *MemoryStore) Heroes(ctx context.Context, limit int) ([]model.HeroRecord, error) {
	var out []model.HeroRecord
	err := s.do(ctx, OpHeroes, func() error {
		s.mu.RLock()
		all := make([]model.HeroRecord, 0, len(s.heroes))
		for _, h := range s.heroes {
			all = append(all, h)
		}
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			return ErrClosed
		}
		out = ranking.TopHeroes(all, limit)
		return nil
	})
	return out, err
}

// CountRuns implements Store.
func (s *MemoryStore) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := s.do(ctx, OpCountRuns, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		n = int64(len(s.runs))
		return nil
	})
	return n, err
}

// CountHeroes implements Store.
func (s *MemoryStore) CountHeroes(ctx context.Context) (int64, error) {
	var n int64
	err := s.do(ctx, OpCountHeroes, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		n = int64(len(s.heroes))
		return nil
	})
	return n, err
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.do(ctx, OpPing, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.closed {
			return ErrClosed
		}
		return nil
	})
}

// Close implements Store. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) do(ctx context.Context, op string, fn func() error) error {
	return observe(ctx, s.opts.timeout, op, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	})
}

func copyTeam(t model.Team) model.Team {
	if t.IDs != nil {
		t.IDs = append([]int{}, t.IDs...)
	}
	return t
}
