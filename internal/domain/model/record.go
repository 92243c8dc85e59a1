// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RunRecord is one leaderboard entry for a completed or ongoing run.
// Records are append-only and never mutated after insert.
type RunRecord struct {
	ID          int64
	PlayerName  string
	DungeonTier int
	Wave        int
	BossHPLeft  int
	Team        Team
	CreatedAt   time.Time
}

// HeroRecord is the single hero-progression record kept per player name.
type HeroRecord struct {
	PlayerName          string
	HeroID              int
	HeroLevel           int
	RarestArtifactDefID int
	UpdatedAt           time.Time
}

// Team is the optional hero line-up of a run. Clients send either a list
// of hero ids or an opaque short code; at most one of IDs and Code is set.
type Team struct {
	IDs  []int
	Code string
}

// IsZero reports whether no team was supplied.
func (t Team) IsZero() bool {
	return t.IDs == nil && t.Code == ""
}

// MarshalJSON encodes the list, the code, or null.
func (t Team) MarshalJSON() ([]byte, error) {
	switch {
	case t.IDs != nil:
		return json.Marshal(t.IDs)
	case t.Code != "":
		return json.Marshal(t.Code)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a list of ints, a string, or null.
func (t *Team) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Team{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '[':
		ids := []int{}
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("team ids: %w", err)
		}
		t.IDs = ids
	case '"':
		if err := json.Unmarshal(data, &t.Code); err != nil {
			return fmt.Errorf("team code: %w", err)
		}
	default:
		return fmt.Errorf("team: unexpected json %q", data)
	}
	return nil
}

// EncodeTeam renders t for a nullable text column. ok is false for an empty team.
func EncodeTeam(t Team) (string, bool, error) {
	if t.IsZero() {
		return "", false, nil
	}
	b, err := t.MarshalJSON()
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// DecodeTeam parses a column value written by EncodeTeam.
func DecodeTeam(s string) (Team, error) {
	var t Team
	if s == "" {
		return t, nil
	}
	err := t.UnmarshalJSON([]byte(s))
	return t, err
}

// Event kinds carried by the live feed.
const (
	EventRun  = "run"
	EventHero = "hero"
)

// Event announces an accepted submission to live feed subscribers.
type Event struct {
	Kind string
	Run  *RunRecord
	Hero *HeroRecord
	At   time.Time
}
