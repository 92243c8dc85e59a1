package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
)

// Tables created by older deployments lack the tier, team and name_key
// columns; the ALTER statements bring them up to date.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard (
		id SERIAL PRIMARY KEY,
		player_name VARCHAR(64) NOT NULL DEFAULT 'Player',
		wave INT NOT NULL,
		boss_hp_left INT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`ALTER TABLE leaderboard ADD COLUMN IF NOT EXISTS dungeon_tier INT NOT NULL DEFAULT 0`,
	`ALTER TABLE leaderboard ADD COLUMN IF NOT EXISTS team_hero_ids TEXT`,
	`ALTER TABLE leaderboard ADD COLUMN IF NOT EXISTS name_key VARCHAR(64)`,
	`UPDATE leaderboard SET name_key = LOWER(TRIM(player_name)) WHERE name_key IS NULL`,
	`DROP INDEX IF EXISTS idx_leaderboard_rank`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_order
		ON leaderboard (dungeon_tier DESC, wave DESC, boss_hp_left ASC, created_at ASC)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_name_key ON leaderboard (name_key)`,
	`CREATE TABLE IF NOT EXISTS leaderboard_hero (
		id SERIAL PRIMARY KEY,
		player_name VARCHAR(64) NOT NULL DEFAULT 'Player',
		name_key VARCHAR(64) NOT NULL UNIQUE,
		hero_id INT NOT NULL DEFAULT 0,
		hero_level INT NOT NULL DEFAULT 1,
		rarest_artifact_def_id INT NOT NULL DEFAULT -1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_hero_order
		ON leaderboard_hero (hero_level DESC, updated_at ASC)`,
}

const (
	pgInsertRun = `INSERT INTO leaderboard
		(player_name, name_key, dungeon_tier, wave, boss_hp_left, team_hero_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	pgBestRuns = `SELECT id, player_name, dungeon_tier, wave, boss_hp_left, team_hero_ids, created_at
		FROM (
			SELECT id, player_name, dungeon_tier, wave, boss_hp_left, team_hero_ids, created_at,
				ROW_NUMBER() OVER (
					PARTITION BY name_key
					ORDER BY dungeon_tier DESC, wave DESC, boss_hp_left ASC, created_at ASC, id ASC
				) AS rn
			FROM leaderboard
			WHERE name_key <> $1
		) best
		WHERE rn = 1
		ORDER BY dungeon_tier DESC, wave DESC, boss_hp_left ASC, created_at ASC, id ASC
		LIMIT $2`

	pgUpsertHero = `INSERT INTO leaderboard_hero
		(player_name, name_key, hero_id, hero_level, rarest_artifact_def_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name_key) DO UPDATE SET
			player_name = EXCLUDED.player_name,
			hero_id = EXCLUDED.hero_id,
			hero_level = EXCLUDED.hero_level,
			rarest_artifact_def_id = EXCLUDED.rarest_artifact_def_id,
			updated_at = EXCLUDED.updated_at
		WHERE leaderboard_hero.hero_level < EXCLUDED.hero_level`

	pgHeroes = `SELECT player_name, hero_id, hero_level, rarest_artifact_def_id, updated_at
		FROM leaderboard_hero
		WHERE name_key <> $1
		ORDER BY hero_level DESC, updated_at ASC, id ASC
		LIMIT $2`
)

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore connects to databaseURL, verifies the connection and
// creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	o := newOptions(opts)

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = int32(o.maxConns) //nolint:gosec // bounded by config validation

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	s := &PostgresStore{pool: pool, opts: o}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	return observe(ctx, s.opts.timeout, OpMigrate, func(ctx context.Context) error {
		for _, stmt := range postgresSchema {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertRun implements Store.
func (s *PostgresStore) InsertRun(ctx context.Context, r model.RunRecord) (int64, error) {
	r = normalizeRun(r, s.opts.now)
	team, hasTeam, err := model.EncodeTeam(r.Team)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrUnavailable, OpInsertRun, err)
	}
	var teamArg *string
	if hasTeam {
		teamArg = &team
	}

	var id int64
	err = observe(ctx, s.opts.timeout, OpInsertRun, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, pgInsertRun,
			r.PlayerName, ranking.NormalizeName(r.PlayerName),
			r.DungeonTier, r.Wave, r.BossHPLeft, teamArg, r.CreatedAt,
		).Scan(&id)
	})
	return id, err
}

// BestRuns implements Store.
func (s *PostgresStore) BestRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	var out []model.RunRecord
	err := observe(ctx, s.opts.timeout, OpBestRuns, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, pgBestRuns, ranking.ReservedName, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, scanPostgresRun)
		return err
	})
	return out, err
}

func scanPostgresRun(row pgx.CollectableRow) (model.RunRecord, error) {
	var (
		r    model.RunRecord
		team *string
		at   *time.Time
	)
	if err := row.Scan(&r.ID, &r.PlayerName, &r.DungeonTier, &r.Wave, &r.BossHPLeft, &team, &at); err != nil {
		return r, err
	}
	if team != nil {
		t, err := model.DecodeTeam(*team)
		if err != nil {
			return r, err
		}
		r.Team = t
	}
	if at != nil {
		r.CreatedAt = at.UTC()
	}
	return r, nil
}

// UpsertHero implements Store.
func (s *PostgresStore) UpsertHero(ctx context.Context, h model.HeroRecord) (bool, error) {
	h = normalizeHero(h, s.opts.now)
	var applied bool
	err := observe(ctx, s.opts.timeout, OpUpsertHero, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, pgUpsertHero,
			h.PlayerName, ranking.NormalizeName(h.PlayerName),
			h.HeroID, h.HeroLevel, h.RarestArtifactDefID, h.UpdatedAt,
		)
		if err != nil {
			return err
		}
		applied = tag.RowsAffected() > 0
		return nil
	})
	return applied, err
}

// Heroes implements Store.
func (s *PostgresStore) Heroes(ctx context.Context, limit int) ([]model.HeroRecord, error) {
	var out []model.HeroRecord
	err := observe(ctx, s.opts.timeout, OpHeroes, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, pgHeroes, ranking.ReservedName, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.HeroRecord, error) {
			var h model.HeroRecord
			err := row.Scan(&h.PlayerName, &h.HeroID, &h.HeroLevel, &h.RarestArtifactDefID, &h.UpdatedAt)
			h.UpdatedAt = h.UpdatedAt.UTC()
			return h, err
		})
		return err
	})
	return out, err
}

// CountRuns implements Store.
func (s *PostgresStore) CountRuns(ctx context.Context) (int64, error) {
	return s.count(ctx, OpCountRuns, `SELECT COUNT(*) FROM leaderboard`)
}

// CountHeroes implements Store.
func (s *PostgresStore) CountHeroes(ctx context.Context) (int64, error) {
	return s.count(ctx, OpCountHeroes, `SELECT COUNT(*) FROM leaderboard_hero`)
}

func (s *PostgresStore) count(ctx context.Context, op, query string) (int64, error) {
	var n int64
	err := observe(ctx, s.opts.timeout, op, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, query).Scan(&n)
	})
	return n, err
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return observe(ctx, s.opts.timeout, OpPing, s.pool.Ping)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
