package loadgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/runboard/internal/adapters/http/api"
	"github.com/okian/runboard/internal/adapters/repository"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(trustProxy bool) *httptest.Server {
	svc := service.New(repository.NewMemoryStore())
	server := api.NewServer(svc, api.WithTrustProxy(trustProxy))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return httptest.NewServer(server.Wrap(mux))
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:       url,
		Players:       20,
		RunsPerPlayer: 4,
		TopN:          10,
		Workers:       4,
		Timeout:       5 * time.Second,
		Verify:        true,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a server trusting forwarded addresses", t, func() {
		srv := newServer(true)
		defer srv.Close()
		config := testConfig(srv.URL)
		config.OutputFile = filepath.Join(t.TempDir(), "out", "subs.json")

		Convey("When a load run completes", func() {
			err := Run(context.Background(), config)

			Convey("Then the served leaderboard matches the local ranking", func() {
				So(err, ShouldBeNil)
			})

			Convey("And the submissions are written out", func() {
				data, err := os.ReadFile(config.OutputFile)
				So(err, ShouldBeNil)
				var subs []Submission
				So(json.Unmarshal(data, &subs), ShouldBeNil)
				So(len(subs), ShouldEqual, 80)
			})
		})
	})

	Convey("Given a server that ignores forwarded addresses", t, func() {
		srv := newServer(false)
		defer srv.Close()
		config := testConfig(srv.URL)
		config.Players = 5
		config.RunsPerPlayer = 5

		Convey("When the simulated players share one address", func() {
			stats := &Stats{}
			subs := generateSubmissions(context.Background(), config, stats)
			accepted := submitRuns(context.Background(), config, subs, stats)

			Convey("Then only the per-client budget is stored", func() {
				So(stats.Submitted, ShouldEqual, 25)
				So(stats.Created, ShouldEqual, 15)
				So(stats.RateLimited, ShouldEqual, 10)
				So(len(accepted), ShouldEqual, 15)
			})

			Convey("And the board still matches what was stored", func() {
				served, err := fetchLeaderboard(context.Background(), config, stats)
				So(err, ShouldBeNil)
				So(verifyResults(context.Background(), config, accepted, served), ShouldBeNil)
			})
		})
	})

	Convey("Given no server", t, func() {
		config := testConfig("http://127.0.0.1:1")
		config.Timeout = 200 * time.Millisecond

		Convey("Then the health check fails the run", func() {
			So(Run(context.Background(), config), ShouldNotBeNil)
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given generated submissions", t, func() {
		config := &Config{Players: 300, RunsPerPlayer: 2}
		subs := generateSubmissions(context.Background(), config, &Stats{})

		Convey("Then every run is within accepted ranges", func() {
			So(len(subs), ShouldEqual, 600)
			for _, s := range subs {
				So(len(s.PlayerName), ShouldEqual, nameLength)
				So(s.DungeonTier, ShouldBeBetweenOrEqual, 0, maxTier)
				So(s.Wave, ShouldBeBetweenOrEqual, 1, maxWave)
				So(s.BossHPLeft, ShouldBeBetweenOrEqual, 0, maxBossHP-1)
				So(len(s.TeamHeroIDs), ShouldBeLessThanOrEqualTo, maxTeam)
			}
		})

		Convey("And each player has its own address", func() {
			addrs := map[string]string{}
			for _, s := range subs {
				if prev, ok := addrs[s.ForwardedFor]; ok {
					So(prev, ShouldEqual, s.PlayerName)
				}
				addrs[s.ForwardedFor] = s.PlayerName
			}
			So(len(addrs), ShouldEqual, 300)
		})
	})

	Convey("Given player indexes past one octet", t, func() {
		So(forwardedFor(0), ShouldEqual, "10.0.0.0")
		So(forwardedFor(257), ShouldEqual, "10.0.1.1")
	})
}

func TestSameRanking(t *testing.T) {
	Convey("Given accepted submissions", t, func() {
		accepted := []Submission{
			{PlayerName: "ann", Wave: 5, BossHPLeft: 10},
			{PlayerName: "ann", Wave: 7, BossHPLeft: 10},
			{PlayerName: "bob", Wave: 7, BossHPLeft: 10},
			{PlayerName: "cid", DungeonTier: 1, Wave: 1},
		}
		expected, best := expectedLeaderboard(accepted, 10)

		Convey("When the served board agrees, ties in either order", func() {
			served := []Entry{
				{Rank: 1, PlayerName: "cid", DungeonTier: 1, Wave: 1},
				{Rank: 2, PlayerName: "bob", Wave: 7, BossHPLeft: 10},
				{Rank: 3, PlayerName: "ann", Wave: 7, BossHPLeft: 10},
			}
			So(sameRanking(expected, best, served), ShouldBeNil)
		})

		Convey("When a player is shown with a worse run", func() {
			served := []Entry{
				{Rank: 1, PlayerName: "cid", DungeonTier: 1, Wave: 1},
				{Rank: 2, PlayerName: "bob", Wave: 7, BossHPLeft: 10},
				{Rank: 3, PlayerName: "ann", Wave: 5, BossHPLeft: 10},
			}
			So(errors.Is(sameRanking(expected, best, served), ErrMismatch), ShouldBeTrue)
		})

		Convey("When an entry is missing", func() {
			served := []Entry{{Rank: 1, PlayerName: "cid", DungeonTier: 1, Wave: 1}}
			So(errors.Is(sameRanking(expected, best, served), ErrMismatch), ShouldBeTrue)
		})

		Convey("When an unknown player appears", func() {
			served := []Entry{
				{Rank: 1, PlayerName: "zed", DungeonTier: 1, Wave: 1},
				{Rank: 2, PlayerName: "bob", Wave: 7, BossHPLeft: 10},
				{Rank: 3, PlayerName: "ann", Wave: 7, BossHPLeft: 10},
			}
			So(errors.Is(sameRanking(expected, best, served), ErrMismatch), ShouldBeTrue)
		})

		Convey("Then records carry the ranking fields", func() {
			r := accepted[3].record(time.Time{})
			So(r, ShouldResemble, model.RunRecord{PlayerName: "cid", DungeonTier: 1, Wave: 1})
		})
	})
}
