package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/runboard/internal/loadgen"
)

// Default configuration constants.
const (
	defaultPlayers       = 500
	defaultRunsPerPlayer = 10
	defaultTopN          = 100
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:3000", "Base URL of the service")
		players  = flag.Int("players", defaultPlayers, "Distinct players to simulate")
		runs     = flag.Int("runs", defaultRunsPerPlayer, "Runs per player")
		topN     = flag.Int("top", defaultTopN, "Leaderboard entries to fetch and verify")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verify   = flag.Bool("verify", true, "Verify the served leaderboard")
		output   = flag.String("output", "", "Write generated submissions to this JSON file")
		logFile  = flag.String("log", "", "Also write log output to this file")
		verbose  = flag.Bool("verbose", false, "Log every submission that was not stored")
		showHelp = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *showHelp {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:       *baseURL,
		Players:       *players,
		RunsPerPlayer: *runs,
		TopN:          *topN,
		Workers:       max(*workers, 1),
		Timeout:       *timeout,
		Verify:        *verify,
		OutputFile:    *output,
		Verbose:       *verbose,
	}

	if err := loadgen.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
