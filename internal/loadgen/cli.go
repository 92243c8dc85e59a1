package loadgen

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/runboard/pkg/logger"
)

// SetupLogging initializes the logger, teeing output to logFile when set.
func SetupLogging(logFile string) error {
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, file))
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`runboard load generator
=======================

Submits runs for many simulated players concurrently, then checks that
GET /leaderboard matches a ranking computed from the accepted runs.

Each player posts from its own X-Forwarded-For address, so start the
server with RUNBOARD_TRUST_PROXY=true or the shared rate limit rejects
most submissions. Verification assumes the server board starts empty.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3000")
  -players int
        Distinct players to simulate (default 500)
  -runs int
        Runs per player, at most the server rate limit (default 10)
  -top int
        Leaderboard entries to fetch and verify (default 100)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -verify
        Verify the served leaderboard (default true)
  -output string
        Write generated submissions to this JSON file
  -log string
        Also write log output to this file
  -verbose
        Log every submission that was not stored
  -help
        Show this help message
`)
}
