package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/runboard/internal/adapters/http/api"
	"github.com/okian/runboard/internal/adapters/repository"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/domain/ratelimit"
	"github.com/okian/runboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// newHandler builds the full middleware-wrapped mux over a fresh memory store.
func newHandler(store repository.Store, limiter *ratelimit.Limiter, opts ...api.Option) http.Handler {
	svc := service.New(store, service.WithLimiter(limiter))
	server := api.NewServer(svc, opts...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return server.Wrap(mux)
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestRunsEndpoint(t *testing.T) {
	Convey("Given a server over an in-memory store", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New())

		Convey("When a valid run is posted", func() {
			w := do(h, http.MethodPost, "/leaderboard", `{"player_name":"Ann","wave":12,"boss_hp_left":300}`)

			Convey("Then it is created with an id", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				body := decode[map[string]int64](w)
				So(body["id"], ShouldBeGreaterThan, 0)
			})

			Convey("And it is listed by GET", func() {
				w := do(h, http.MethodGet, "/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				rows := decode[[]map[string]any](w)
				So(len(rows), ShouldEqual, 1)
				So(rows[0]["player_name"], ShouldEqual, "Ann")
				So(rows[0]["rank"], ShouldEqual, 1.0)
				So(rows[0]["wave"], ShouldEqual, 12.0)
				So(rows[0]["dungeon_tier"], ShouldEqual, 0.0)
			})
		})

		Convey("When the same routes are called under /api", func() {
			w := do(h, http.MethodPost, "/api/leaderboard", `{"wave":1,"boss_hp_left":0}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then both prefixes share one board", func() {
				rows := decode[[]map[string]any](do(h, http.MethodGet, "/leaderboard", ""))
				So(len(rows), ShouldEqual, 1)
				So(rows[0]["player_name"], ShouldEqual, "Player")
			})
		})

		Convey("When a required field is missing", func() {
			w := do(h, http.MethodPost, "/leaderboard", `{"player_name":"Ann","wave":12}`)

			Convey("Then the field is named in a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[map[string]string](w)["error"], ShouldEqual, "boss_hp_left is required")
			})
		})

		Convey("When a field is out of range", func() {
			w := do(h, http.MethodPost, "/leaderboard", `{"wave":10000,"boss_hp_left":0}`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[map[string]string](w)["error"], ShouldContainSubstring, "wave")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/leaderboard", `{"wave":`)

			Convey("Then a 400 with a generic message is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[map[string]string](w)["error"], ShouldEqual, "Invalid JSON body")
			})
		})

		Convey("When runs of several players are posted", func() {
			for _, body := range []string{
				`{"player_name":"Ann","wave":10,"boss_hp_left":50}`,
				`{"player_name":"Bob","wave":12,"boss_hp_left":900}`,
				`{"player_name":"ann ","wave":11,"boss_hp_left":0}`,
				`{"player_name":"Cid","wave":3,"boss_hp_left":0,"dungeon_tier":2}`,
				`{"player_name":"dev","wave":999,"boss_hp_left":0}`,
			} {
				So(do(h, http.MethodPost, "/leaderboard", body).Code, ShouldEqual, http.StatusCreated)
			}

			Convey("Then GET returns one best run per player in rank order", func() {
				rows := decode[[]map[string]any](do(h, http.MethodGet, "/leaderboard", ""))
				So(len(rows), ShouldEqual, 3)
				So(rows[0]["player_name"], ShouldEqual, "Cid")
				So(rows[1]["player_name"], ShouldEqual, "Bob")
				So(rows[2]["player_name"], ShouldEqual, "ann")
				So(rows[2]["wave"], ShouldEqual, 11.0)
			})

			Convey("And limit trims the result", func() {
				rows := decode[[]map[string]any](do(h, http.MethodGet, "/leaderboard?limit=2", ""))
				So(len(rows), ShouldEqual, 2)
			})

			Convey("And an unparsable limit falls back to the default", func() {
				w := do(h, http.MethodGet, "/leaderboard?limit=lots", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decode[[]map[string]any](w)), ShouldEqual, 3)
			})
		})

		Convey("When an unsupported method is used", func() {
			w := do(h, http.MethodDelete, "/leaderboard", "")

			Convey("Then 405 is returned with Allow", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldContainSubstring, "POST")
			})
		})
	})
}

func TestRateLimiting(t *testing.T) {
	Convey("Given a limiter admitting two submissions", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New(ratelimit.WithMax(2)))
		run := `{"wave":5,"boss_hp_left":1}`
		hero := `{"player_name":"Ann","hero_id":1,"hero_level":3}`

		Convey("When a client spends the budget across both boards", func() {
			So(do(h, http.MethodPost, "/leaderboard", run).Code, ShouldEqual, http.StatusCreated)
			So(do(h, http.MethodPost, "/leaderboard-hero", hero).Code, ShouldEqual, http.StatusCreated)
			w := do(h, http.MethodPost, "/leaderboard", run)

			Convey("Then the next submission is refused with 429", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode[map[string]string](w)["error"], ShouldEqual, "Too many submissions, try again later")
			})

			Convey("And reads are not limited", func() {
				So(do(h, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the proxy is not trusted", func() {
			for i := 0; i < 2; i++ {
				do(h, http.MethodPost, "/leaderboard", run, "X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
			}

			Convey("Then X-Forwarded-For does not split the budget", func() {
				w := do(h, http.MethodPost, "/leaderboard", run, "X-Forwarded-For", "10.0.0.9")
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})

	Convey("Given a server behind a trusted proxy", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New(ratelimit.WithMax(1)), api.WithTrustProxy(true))
		run := `{"wave":5,"boss_hp_left":1}`

		Convey("When two forwarded clients submit", func() {
			a := do(h, http.MethodPost, "/leaderboard", run, "X-Forwarded-For", "203.0.113.1, 10.0.0.1")
			b := do(h, http.MethodPost, "/leaderboard", run, "X-Forwarded-For", "203.0.113.2")

			Convey("Then each gets its own budget", func() {
				So(a.Code, ShouldEqual, http.StatusCreated)
				So(b.Code, ShouldEqual, http.StatusCreated)
			})

			Convey("And a repeat from the first client is refused", func() {
				w := do(h, http.MethodPost, "/leaderboard", run, "X-Forwarded-For", "203.0.113.1")
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})
}

func TestHeroesEndpoint(t *testing.T) {
	Convey("Given a server over an in-memory store", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New())

		Convey("When heroes are submitted", func() {
			w := do(h, http.MethodPost, "/api/leaderboard-hero", `{"player_name":"Ann","hero_id":4,"hero_level":30}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decode[map[string]bool](w)["ok"], ShouldBeTrue)

			So(do(h, http.MethodPost, "/leaderboard-hero", `{"player_name":"ann","hero_id":9,"hero_level":10}`).Code, ShouldEqual, http.StatusCreated)
			So(do(h, http.MethodPost, "/leaderboard-hero", `{"player_name":"Bob","hero_id":2,"hero_level":200}`).Code, ShouldEqual, http.StatusCreated)

			Convey("Then the highest level per player is kept and ranked", func() {
				rows := decode[[]map[string]any](do(h, http.MethodGet, "/leaderboard-hero", ""))
				So(len(rows), ShouldEqual, 2)
				So(rows[0]["player_name"], ShouldEqual, "Bob")
				So(rows[0]["hero_level"], ShouldEqual, 80.0)
				So(rows[1]["player_name"], ShouldEqual, "Ann")
				So(rows[1]["hero_id"], ShouldEqual, 4.0)
				So(rows[1]["rarest_artifact_def_id"], ShouldEqual, -1.0)
			})
		})

		Convey("When a hero body is empty", func() {
			w := do(h, http.MethodPost, "/leaderboard-hero", "")

			Convey("Then defaults are stored", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				rows := decode[[]map[string]any](do(h, http.MethodGet, "/leaderboard-hero", ""))
				So(len(rows), ShouldEqual, 1)
				So(rows[0]["player_name"], ShouldEqual, "Player")
				So(rows[0]["hero_level"], ShouldEqual, 1.0)
			})
		})
	})
}

func TestStorageFailures(t *testing.T) {
	Convey("Given a server whose store is down", t, func() {
		store := repository.NewMemoryStore()
		So(store.Close(), ShouldBeNil)
		h := newHandler(store, ratelimit.New())

		Convey("Then submissions fail with a generic 500", func() {
			w := do(h, http.MethodPost, "/leaderboard", `{"wave":1,"boss_hp_left":1}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[map[string]string](w)["error"], ShouldEqual, "Failed to save")
		})

		Convey("And reads fail with Failed to load", func() {
			w := do(h, http.MethodGet, "/leaderboard-hero", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[map[string]string](w)["error"], ShouldEqual, "Failed to load")
		})

		Convey("And health reports degraded", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode[map[string]string](w)["status"], ShouldEqual, "degraded")
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a healthy server", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New())

		Convey("Then /healthz is ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](w)["storage"], ShouldEqual, "ok")
		})

		Convey("Then /healthz refuses POST", func() {
			So(do(h, http.MethodPost, "/healthz", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then /stats reports the limiter settings", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["rate_limit_max"], ShouldEqual, 15.0)
			So(stats["rate_limit_window_ms"], ShouldEqual, 60000.0)
		})

		Convey("Then /metrics is served", func() {
			do(h, http.MethodGet, "/leaderboard", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown paths are 404", func() {
			So(do(h, http.MethodGet, "/nope", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given a server with the default CORS origin", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New())

		Convey("When a preflight request arrives", func() {
			w := do(h, http.MethodOptions, "/api/leaderboard", "")

			Convey("Then it is answered 200 with CORS headers", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				So(w.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "POST")
				So(w.Header().Get("Access-Control-Allow-Headers"), ShouldEqual, "Content-Type")
			})
		})

		Convey("When a request carries no id", func() {
			w := do(h, http.MethodGet, "/leaderboard", "")

			Convey("Then one is generated and echoed", func() {
				So(len(w.Header().Get(api.HeaderRequestID)), ShouldEqual, 36)
			})
		})

		Convey("When a request carries an id", func() {
			w := do(h, http.MethodGet, "/leaderboard", "", api.HeaderRequestID, "abc-123")

			Convey("Then it is echoed unchanged", func() {
				So(w.Header().Get(api.HeaderRequestID), ShouldEqual, "abc-123")
			})
		})

		Convey("When a request id is oversized", func() {
			w := do(h, http.MethodGet, "/leaderboard", "", api.HeaderRequestID, strings.Repeat("x", 200))

			Convey("Then it is replaced", func() {
				So(w.Header().Get(api.HeaderRequestID), ShouldNotContainSubstring, "xxx")
			})
		})
	})

	Convey("Given a server with a fixed CORS origin", t, func() {
		h := newHandler(repository.NewMemoryStore(), ratelimit.New(), api.WithCORSOrigin("https://game.example"))

		Convey("Then that origin is advertised", func() {
			w := do(h, http.MethodGet, "/leaderboard", "")
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://game.example")
		})
	})
}
