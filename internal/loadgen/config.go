// Package loadgen drives a running runboard instance with concurrent run
// submissions and checks the served leaderboard against a local ranking.
package loadgen

import (
	"time"

	"github.com/okian/runboard/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Players       int           // Distinct players to simulate
	RunsPerPlayer int           // Runs submitted by each player
	TopN          int           // Leaderboard entries to fetch and verify
	Workers       int           // Concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	Verify        bool          // Compare the served board with the local ranking
	OutputFile    string        // Where generated submissions are written
	Verbose       bool          // Log every failed submission
}

// Submission is one generated run plus the client address it is sent from.
type Submission struct {
	ForwardedFor string `json:"forwarded_for"`
	PlayerName   string `json:"player_name"`
	DungeonTier  int    `json:"dungeon_tier"`
	Wave         int    `json:"wave"`
	BossHPLeft   int    `json:"boss_hp_left"`
	TeamHeroIDs  []int  `json:"team_hero_ids,omitempty"`
}

// record converts s to the domain record the ranking package orders.
func (s Submission) record(createdAt time.Time) model.RunRecord {
	return model.RunRecord{
		PlayerName:  s.PlayerName,
		DungeonTier: s.DungeonTier,
		Wave:        s.Wave,
		BossHPLeft:  s.BossHPLeft,
		CreatedAt:   createdAt,
	}
}

// Entry is one row of GET /leaderboard.
type Entry struct {
	Rank        int       `json:"rank"`
	PlayerName  string    `json:"player_name"`
	DungeonTier int       `json:"dungeon_tier"`
	Wave        int       `json:"wave"`
	BossHPLeft  int       `json:"boss_hp_left"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats holds load run statistics.
type Stats struct {
	Generated   int
	Submitted   int
	Created     int
	RateLimited int
	Rejected    int
	Failed      int
	Entries     int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
