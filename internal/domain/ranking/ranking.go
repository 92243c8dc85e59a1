// Package ranking defines the ordering of runs and heroes on the leaderboards.
//
// Runs rank by dungeon tier (higher first), then wave (higher first), then
// boss health left (lower first), then submission time (earlier first).
// Heroes rank by level (higher first), then update time (earlier first).
package ranking

import (
	"sort"
	"strings"

	"github.com/okian/runboard/internal/domain/model"
)

// Limits for the number of rows a leaderboard query returns.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ReservedName is the normalized player name hidden from every leaderboard.
const ReservedName = "dev"

// NormalizeName returns the grouping key of a player name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsReserved reports whether name normalizes to ReservedName.
func IsReserved(name string) bool {
	return NormalizeName(name) == ReservedName
}

// ClampLimit maps a requested row count into [1, MaxLimit].
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// CompareRuns returns a negative number when a ranks before b, positive when
// b ranks before a, and zero when they tie on every key.
func CompareRuns(a, b model.RunRecord) int {
	if c := cmpInt(b.DungeonTier, a.DungeonTier); c != 0 {
		return c
	}
	if c := cmpInt(b.Wave, a.Wave); c != 0 {
		return c
	}
	if c := cmpInt(a.BossHPLeft, b.BossHPLeft); c != 0 {
		return c
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

// CompareHeroes orders heroes by level descending, then earliest update.
func CompareHeroes(a, b model.HeroRecord) int {
	if c := cmpInt(b.HeroLevel, a.HeroLevel); c != 0 {
		return c
	}
	return a.UpdatedAt.Compare(b.UpdatedAt)
}

// BestPerPlayer keeps the best-ranked run of each player, dropping reserved
// names. Output keeps the order in which each player first appears.
// Applying it twice gives the same result as applying it once.
func BestPerPlayer(runs []model.RunRecord) []model.RunRecord {
	index := make(map[string]int, len(runs))
	out := make([]model.RunRecord, 0, len(runs))
	for _, r := range runs {
		key := NormalizeName(r.PlayerName)
		if key == ReservedName {
			continue
		}
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r)
			continue
		}
		if CompareRuns(r, out[i]) < 0 {
			out[i] = r
		}
	}
	return out
}

// SortRuns sorts runs in place by rank. Ties keep their input order.
func SortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		return CompareRuns(runs[i], runs[j]) < 0
	})
}

// TopRuns reduces runs to one per player, sorts them and returns at most
// ClampLimit(limit) entries. The input slice is not modified.
func TopRuns(runs []model.RunRecord, limit int) []model.RunRecord {
	best := BestPerPlayer(runs)
	SortRuns(best)
	if n := ClampLimit(limit); len(best) > n {
		best = best[:n]
	}
	return best
}

// TopHeroes drops reserved names, sorts and cuts to ClampLimit(limit).
func TopHeroes(heroes []model.HeroRecord, limit int) []model.HeroRecord {
	out := make([]model.HeroRecord, 0, len(heroes))
	for _, h := range heroes {
		if !IsReserved(h.PlayerName) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return CompareHeroes(out[i], out[j]) < 0
	})
	if n := ClampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
