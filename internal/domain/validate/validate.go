// Package validate turns untrusted submission payloads into normalized records.
//
// Run submissions are rejected when a required field is missing or a numeric
// field is out of range. Hero submissions are never rejected: every field is
// coerced and clamped into its range.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/finnbear/moderation"
	"github.com/okian/runboard/internal/domain/model"
)

// Payload is a decoded JSON object. Numbers are expected as json.Number but
// float64, int and numeric strings are accepted too.
type Payload map[string]any

// Field names of the submission bodies.
const (
	FieldPlayerName          = "player_name"
	FieldDungeonTier         = "dungeon_tier"
	FieldWave                = "wave"
	FieldBossHPLeft          = "boss_hp_left"
	FieldTeamHeroIDs         = "team_hero_ids"
	FieldHeroID              = "hero_id"
	FieldHeroLevel           = "hero_level"
	FieldRarestArtifactDefID = "rarest_artifact_def_id"
)

// Value ranges.
const (
	DefaultPlayerName = "Player"
	MaxNameLength     = 10
	MaxTeamSize       = 5
	MaxTeamCodeLength = 20
	EmptySlot         = -1

	MinDungeonTier = 0
	MaxDungeonTier = 10
	MinWave        = 1
	MaxWave        = 9999
	MinBossHPLeft  = 0
	MaxBossHPLeft  = 999999

	MinHeroID    = 0
	MaxHeroID    = 19
	MinHeroLevel = 1
	MaxHeroLevel = 80
	NoArtifact   = -1
)

// Option configures a Validator.
type Option func(*Validator)

// WithNameFilter installs a filter applied to player names after truncation.
// A filter result that is blank falls back to the default name.
func WithNameFilter(filter func(string) string) Option {
	return func(v *Validator) {
		v.nameFilter = filter
	}
}

// Validator validates submissions. The zero value applies no name filter.
type Validator struct {
	nameFilter func(string) string
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var plain = &Validator{}

// Run validates a run submission with no name filter.
func Run(p Payload) (model.RunRecord, error) { return plain.Run(p) }

// Hero validates a hero submission with no name filter.
func Hero(p Payload) (model.HeroRecord, error) { return plain.Hero(p) }

// Censor masks inappropriate words in name. It is a ready-made name filter.
func Censor(name string) string {
	out, _ := moderation.Censor(name, moderation.Inappropriate)
	return out
}

// Run validates a run submission. ID and CreatedAt are left for storage.
func (v *Validator) Run(p Payload) (model.RunRecord, error) {
	wave, err := requiredInt(p, FieldWave, MinWave, MaxWave)
	if err != nil {
		return model.RunRecord{}, err
	}
	hp, err := requiredInt(p, FieldBossHPLeft, MinBossHPLeft, MaxBossHPLeft)
	if err != nil {
		return model.RunRecord{}, err
	}
	tier := MinDungeonTier
	if raw, ok := present(p, FieldDungeonTier); ok {
		n, ok := toInt(raw)
		if !ok || n < MinDungeonTier || n > MaxDungeonTier {
			return model.RunRecord{}, outOfRange(FieldDungeonTier, MinDungeonTier, MaxDungeonTier)
		}
		tier = int(n)
	}

	return model.RunRecord{
		PlayerName:  v.name(p),
		DungeonTier: tier,
		Wave:        wave,
		BossHPLeft:  hp,
		Team:        team(p[FieldTeamHeroIDs]),
	}, nil
}

// Hero validates a hero submission. It never fails; the error is kept for
// symmetry with Run.
func (v *Validator) Hero(p Payload) (model.HeroRecord, error) {
	return model.HeroRecord{
		PlayerName:          v.name(p),
		HeroID:              clampedInt(p, FieldHeroID, MinHeroID, MinHeroID, MaxHeroID),
		HeroLevel:           clampedInt(p, FieldHeroLevel, MinHeroLevel, MinHeroLevel, MaxHeroLevel),
		RarestArtifactDefID: clampedInt(p, FieldRarestArtifactDefID, NoArtifact, NoArtifact, math.MaxInt32),
	}, nil
}

func (v *Validator) name(p Payload) string {
	var s string
	switch raw := p[FieldPlayerName].(type) {
	case string:
		s = raw
	case json.Number:
		s = raw.String()
	case float64:
		s = strconv.FormatFloat(raw, 'f', -1, 64)
	case int:
		s = strconv.Itoa(raw)
	case int64:
		s = strconv.FormatInt(raw, 10)
	case bool:
		s = strconv.FormatBool(raw)
	}
	s = strings.TrimSpace(truncate(strings.TrimSpace(s), MaxNameLength))
	if s != "" && v.nameFilter != nil {
		s = strings.TrimSpace(v.nameFilter(s))
	}
	if s == "" {
		return DefaultPlayerName
	}
	return s
}

func team(raw any) model.Team {
	switch t := raw.(type) {
	case []any:
		if len(t) == 0 {
			return model.Team{}
		}
		if len(t) > MaxTeamSize {
			t = t[:MaxTeamSize]
		}
		ids := make([]int, len(t))
		for i, el := range t {
			n, ok := toInt(el)
			if !ok || n < EmptySlot {
				n = EmptySlot
			}
			if n > math.MaxInt32 {
				n = math.MaxInt32
			}
			ids[i] = int(n)
		}
		return model.Team{IDs: ids}
	case string:
		return model.Team{Code: truncate(t, MaxTeamCodeLength)}
	default:
		return model.Team{}
	}
}

func present(p Payload, field string) (any, bool) {
	raw, ok := p[field]
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

func requiredInt(p Payload, field string, lo, hi int) (int, error) {
	raw, ok := present(p, field)
	if !ok {
		return 0, missing(field)
	}
	n, ok := toInt(raw)
	if !ok || n < int64(lo) || n > int64(hi) {
		return 0, outOfRange(field, lo, hi)
	}
	return int(n), nil
}

func clampedInt(p Payload, field string, def, lo, hi int) int {
	raw, ok := present(p, field)
	if !ok {
		return def
	}
	n, ok := toInt(raw)
	if !ok {
		return def
	}
	switch {
	case n < int64(lo):
		return lo
	case n > int64(hi):
		return hi
	}
	return int(n)
}

// toInt coerces raw to an integer. Integral floats and numeric strings are
// accepted; values beyond the int64 range saturate.
func toInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		return parseInt(v.String())
	case string:
		return parseInt(strings.TrimSpace(v))
	case float64:
		return floatToInt(v)
	case float32:
		return floatToInt(float64(v))
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case fmt.Stringer:
		return parseInt(strings.TrimSpace(v.String()))
	default:
		return 0, false
	}
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if f <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(f), true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
