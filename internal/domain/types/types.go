// Package types contains the read shapes returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/runboard/internal/domain/model"
)

// RunEntry is one row of GET /leaderboard.
type RunEntry struct {
	Rank        int         `json:"rank,omitempty"`
	PlayerName  string      `json:"player_name"`
	DungeonTier int         `json:"dungeon_tier"`
	Wave        int         `json:"wave"`
	BossHPLeft  int         `json:"boss_hp_left"`
	Team        *model.Team `json:"team_hero_ids,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// HeroEntry is one row of GET /leaderboard-hero.
type HeroEntry struct {
	Rank                int       `json:"rank,omitempty"`
	PlayerName          string    `json:"player_name"`
	HeroID              int       `json:"hero_id"`
	HeroLevel           int       `json:"hero_level"`
	RarestArtifactDefID int       `json:"rarest_artifact_def_id"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// FromRun builds the entry for r at 1-based rank. Rank 0 is omitted from
// the JSON, as on the live feed.
func FromRun(rank int, r model.RunRecord) RunEntry {
	e := RunEntry{
		Rank:        rank,
		PlayerName:  r.PlayerName,
		DungeonTier: r.DungeonTier,
		Wave:        r.Wave,
		BossHPLeft:  r.BossHPLeft,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if !r.Team.IsZero() {
		team := r.Team
		e.Team = &team
	}
	return e
}

// FromHero builds the entry for h at 1-based rank.
func FromHero(rank int, h model.HeroRecord) HeroEntry {
	return HeroEntry{
		Rank:                rank,
		PlayerName:          h.PlayerName,
		HeroID:              h.HeroID,
		HeroLevel:           h.HeroLevel,
		RarestArtifactDefID: h.RarestArtifactDefID,
		UpdatedAt:           h.UpdatedAt.UTC(),
	}
}
