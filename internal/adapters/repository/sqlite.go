package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
)

// Timestamps are stored as unix nanoseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS leaderboard (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_name TEXT NOT NULL DEFAULT 'Player',
	name_key TEXT NOT NULL,
	dungeon_tier INTEGER NOT NULL DEFAULT 0,
	wave INTEGER NOT NULL,
	boss_hp_left INTEGER NOT NULL,
	team_hero_ids TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_order
	ON leaderboard (dungeon_tier DESC, wave DESC, boss_hp_left ASC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_leaderboard_name_key ON leaderboard (name_key);

CREATE TABLE IF NOT EXISTS leaderboard_hero (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_name TEXT NOT NULL DEFAULT 'Player',
	name_key TEXT NOT NULL UNIQUE,
	hero_id INTEGER NOT NULL DEFAULT 0,
	hero_level INTEGER NOT NULL DEFAULT 1,
	rarest_artifact_def_id INTEGER NOT NULL DEFAULT -1,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_hero_order
	ON leaderboard_hero (hero_level DESC, updated_at ASC);
`

const (
	liteInsertRun = `INSERT INTO leaderboard
		(player_name, name_key, dungeon_tier, wave, boss_hp_left, team_hero_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	liteBestRuns = `SELECT id, player_name, dungeon_tier, wave, boss_hp_left, team_hero_ids, created_at
		FROM (
			SELECT id, player_name, dungeon_tier, wave, boss_hp_left, team_hero_ids, created_at,
				ROW_NUMBER() OVER (
					PARTITION BY name_key
					ORDER BY dungeon_tier DESC, wave DESC, boss_hp_left ASC, created_at ASC, id ASC
				) AS rn
			FROM leaderboard
			WHERE name_key <> ?
		)
		WHERE rn = 1
		ORDER BY dungeon_tier DESC, wave DESC, boss_hp_left ASC, created_at ASC, id ASC
		LIMIT ?`

	liteUpsertHero = `INSERT INTO leaderboard_hero
		(player_name, name_key, hero_id, hero_level, rarest_artifact_def_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name_key) DO UPDATE SET
			player_name = excluded.player_name,
			hero_id = excluded.hero_id,
			hero_level = excluded.hero_level,
			rarest_artifact_def_id = excluded.rarest_artifact_def_id,
			updated_at = excluded.updated_at
		WHERE leaderboard_hero.hero_level < excluded.hero_level`

	liteHeroes = `SELECT player_name, hero_id, hero_level, rarest_artifact_def_id, updated_at
		FROM leaderboard_hero
		WHERE name_key <> ?
		ORDER BY hero_level DESC, updated_at ASC, id ASC
		LIMIT ?`
)

// SQLiteStore is a Store backed by a local sqlite file.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore opens the database at path and creates the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, opts: newOptions(opts)}
	err = observe(ctx, s.opts.timeout, OpMigrate, func(ctx context.Context) error {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, sqliteSchema)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// InsertRun implements Store.
func (s *SQLiteStore) InsertRun(ctx context.Context, r model.RunRecord) (int64, error) {
	r = normalizeRun(r, s.opts.now)
	team, hasTeam, err := model.EncodeTeam(r.Team)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrUnavailable, OpInsertRun, err)
	}
	teamArg := sql.NullString{String: team, Valid: hasTeam}

	var id int64
	err = observe(ctx, s.opts.timeout, OpInsertRun, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, liteInsertRun,
			r.PlayerName, ranking.NormalizeName(r.PlayerName),
			r.DungeonTier, r.Wave, r.BossHPLeft, teamArg, r.CreatedAt.UnixNano(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// BestRuns implements Store.
func (s *SQLiteStore) BestRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	var out []model.RunRecord
	err := observe(ctx, s.opts.timeout, OpBestRuns, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, liteBestRuns, ranking.ReservedName, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r    model.RunRecord
				team sql.NullString
				at   int64
			)
			if err := rows.Scan(&r.ID, &r.PlayerName, &r.DungeonTier, &r.Wave, &r.BossHPLeft, &team, &at); err != nil {
				return err
			}
			if team.Valid {
				if r.Team, err = model.DecodeTeam(team.String); err != nil {
					return err
				}
			}
			r.CreatedAt = time.Unix(0, at).UTC()
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// UpsertHero implements Store.
func (s *SQLiteStore) UpsertHero(ctx context.Context, h model.HeroRecord) (bool, error) {
	h = normalizeHero(h, s.opts.now)
	var applied bool
	err := observe(ctx, s.opts.timeout, OpUpsertHero, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, liteUpsertHero,
			h.PlayerName, ranking.NormalizeName(h.PlayerName),
			h.HeroID, h.HeroLevel, h.RarestArtifactDefID, h.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		applied = n > 0
		return err
	})
	return applied, err
}

// Heroes implements Store.
func (s *SQLiteStore) Heroes(ctx context.Context, limit int) ([]model.HeroRecord, error) {
	var out []model.HeroRecord
	err := observe(ctx, s.opts.timeout, OpHeroes, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, liteHeroes, ranking.ReservedName, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				h  model.HeroRecord
				at int64
			)
			if err := rows.Scan(&h.PlayerName, &h.HeroID, &h.HeroLevel, &h.RarestArtifactDefID, &at); err != nil {
				return err
			}
			h.UpdatedAt = time.Unix(0, at).UTC()
			out = append(out, h)
		}
		return rows.Err()
	})
	return out, err
}

// CountRuns implements Store.
func (s *SQLiteStore) CountRuns(ctx context.Context) (int64, error) {
	return s.count(ctx, OpCountRuns, `SELECT COUNT(*) FROM leaderboard`)
}

// CountHeroes implements Store.
func (s *SQLiteStore) CountHeroes(ctx context.Context) (int64, error) {
	return s.count(ctx, OpCountHeroes, `SELECT COUNT(*) FROM leaderboard_hero`)
}

func (s *SQLiteStore) count(ctx context.Context, op, query string) (int64, error) {
	var n int64
	err := observe(ctx, s.opts.timeout, op, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query).Scan(&n)
	})
	return n, err
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return observe(ctx, s.opts.timeout, OpPing, s.db.PingContext)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
