package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/runboard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// percentageMultiplier turns a ratio into a percentage.
const percentageMultiplier = 100

// Run executes the complete load run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting runboard load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("runsPerPlayer", config.RunsPerPlayer),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	subs := generateSubmissions(ctx, config, stats)
	accepted := submitRuns(ctx, config, subs, stats)

	served, err := fetchLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if config.Verify {
		if err := verifyResults(ctx, config, accepted, served); err != nil {
			return fmt.Errorf("result verification failed: %w", err)
		}
	}

	if config.OutputFile != "" {
		if err := saveSubmissions(ctx, config.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Failed > 0 {
		return fmt.Errorf("%d submissions failed", stats.Failed)
	}
	log.Info(ctx, "load run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running and its storage reachable.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.BaseURL, config.Timeout)
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSubmissions writes the generated submissions as a JSON array.
func saveSubmissions(ctx context.Context, filename string, subs []Submission) error {
	if len(subs) == 0 {
		return errors.New("no submissions to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var createdRate, perSecond float64
	if stats.Submitted > 0 {
		createdRate = float64(stats.Created) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("leaderboardEntries", stats.Entries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("createdRate", createdRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
