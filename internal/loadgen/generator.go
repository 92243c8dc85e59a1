package loadgen

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/runboard/pkg/logger"
)

// Ranges of generated runs. They stay inside what the server accepts.
const (
	maxTier    = 10
	maxWave    = 200
	maxBossHP  = 50_000
	maxTeam    = 5
	maxHeroID  = 19
	nameLength = 8
)

// randInt returns a uniform value in [0, n) using crypto/rand.
func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generateSubmissions creates RunsPerPlayer runs for each of Players
// players. Every player gets its own forwarded address so the server's
// per-client limit applies per player.
func generateSubmissions(ctx context.Context, config *Config, stats *Stats) []Submission {
	out := make([]Submission, 0, config.Players*config.RunsPerPlayer)
	for p := 0; p < config.Players; p++ {
		name := playerName()
		addr := forwardedFor(p)
		for r := 0; r < config.RunsPerPlayer; r++ {
			out = append(out, generateRun(name, addr))
		}
	}

	stats.Generated = len(out)
	logger.Get().Info(ctx, "generated submissions",
		logger.Int("players", config.Players),
		logger.Int("count", len(out)))
	return out
}

// playerName derives a short unique name from a random uuid.
func playerName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:nameLength]
}

// forwardedFor maps a player index to a distinct private address.
func forwardedFor(i int) string {
	return "10." + strconv.Itoa((i>>16)&0xff) + "." + strconv.Itoa((i>>8)&0xff) + "." + strconv.Itoa(i&0xff)
}

// generateRun biases toward low tiers so tier ties are common.
func generateRun(name, addr string) Submission {
	s := Submission{
		ForwardedFor: addr,
		PlayerName:   name,
		DungeonTier:  randInt(randInt(maxTier) + 1),
		Wave:         1 + randInt(maxWave),
		BossHPLeft:   randInt(maxBossHP),
	}
	if randInt(2) == 0 {
		s.TeamHeroIDs = make([]int, 1+randInt(maxTeam))
		for i := range s.TeamHeroIDs {
			s.TeamHeroIDs[i] = randInt(maxHeroID + 1)
		}
	}
	return s
}
