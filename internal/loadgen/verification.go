package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
	"github.com/okian/runboard/pkg/logger"
)

// ErrMismatch reports a served leaderboard that disagrees with the local ranking.
var ErrMismatch = errors.New("leaderboard mismatch")

// fetchLeaderboard retrieves the top config.TopN runs.
func fetchLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.BaseURL, config.Timeout)
	var entries []Entry
	status, err := client.Get(ctx, "/leaderboard?limit="+strconv.Itoa(config.TopN), &entries)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("leaderboard returned status %d", status)
	}
	stats.Entries = len(entries)
	return entries, nil
}

// expectedLeaderboard ranks the accepted submissions locally and returns
// the top limit runs plus every player's best run. Creation times are
// unknown here, so ties on tier, wave and hp may be listed in either
// order; compare with sameRanking.
func expectedLeaderboard(accepted []Submission, limit int) ([]model.RunRecord, map[string]model.RunRecord) {
	runs := make([]model.RunRecord, len(accepted))
	var epoch time.Time
	for i, s := range accepted {
		runs[i] = s.record(epoch)
	}

	perPlayer := ranking.BestPerPlayer(runs)
	best := make(map[string]model.RunRecord, len(perPlayer))
	for _, r := range perPlayer {
		best[ranking.NormalizeName(r.PlayerName)] = r
	}
	return ranking.TopRuns(runs, limit), best
}

// sameRanking checks served against expected position by position on
// the ordering key, and that each served player's run is that player's
// best accepted run.
func sameRanking(expected []model.RunRecord, best map[string]model.RunRecord, served []Entry) error {
	if len(expected) != len(served) {
		return fmt.Errorf("%w: expected %d entries, got %d", ErrMismatch, len(expected), len(served))
	}

	for i, e := range served {
		want := expected[i]
		if e.Rank != i+1 {
			return fmt.Errorf("%w: position %d has rank %d", ErrMismatch, i+1, e.Rank)
		}
		if e.DungeonTier != want.DungeonTier || e.Wave != want.Wave || e.BossHPLeft != want.BossHPLeft {
			return fmt.Errorf("%w: position %d is tier %d wave %d hp %d, expected tier %d wave %d hp %d",
				ErrMismatch, i+1, e.DungeonTier, e.Wave, e.BossHPLeft, want.DungeonTier, want.Wave, want.BossHPLeft)
		}
		mine, ok := best[ranking.NormalizeName(e.PlayerName)]
		if !ok {
			return fmt.Errorf("%w: unexpected player %q at position %d", ErrMismatch, e.PlayerName, i+1)
		}
		if ranking.CompareRuns(mine, model.RunRecord{DungeonTier: e.DungeonTier, Wave: e.Wave, BossHPLeft: e.BossHPLeft}) != 0 {
			return fmt.Errorf("%w: player %q is not shown with its best run", ErrMismatch, e.PlayerName)
		}
	}
	return nil
}

// verifyResults compares the served leaderboard with the local ranking.
func verifyResults(ctx context.Context, config *Config, accepted []Submission, served []Entry) error {
	expected, best := expectedLeaderboard(accepted, config.TopN)
	if err := sameRanking(expected, best, served); err != nil {
		return err
	}
	if len(served) > 0 {
		top := served[0]
		logger.Get().Info(ctx, "leaderboard verified",
			logger.Int("entries", len(served)),
			logger.String("top", top.PlayerName),
			logger.Int("topTier", top.DungeonTier),
			logger.Int("topWave", top.Wave))
	}
	return nil
}
