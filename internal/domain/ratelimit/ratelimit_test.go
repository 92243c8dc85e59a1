package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/runboard/internal/domain/ratelimit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLimiter(t *testing.T) {
	Convey("Given a limiter of 15 per 60s", t, func() {
		l := ratelimit.New()
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When a client submits exactly N times within the window", func() {
			var decisions []ratelimit.Decision
			for i := 0; i < ratelimit.DefaultMax; i++ {
				decisions = append(decisions, l.Admit("1.2.3.4", t0.Add(time.Duration(i)*time.Second)))
			}

			Convey("Then every submission is allowed", func() {
				for _, d := range decisions {
					So(d, ShouldEqual, ratelimit.Allowed)
				}
			})

			Convey("And the N+1th in the same window is denied", func() {
				So(l.Admit("1.2.3.4", t0.Add(30*time.Second)), ShouldEqual, ratelimit.Denied)
			})

			Convey("And a denial does not extend or consume the window", func() {
				So(l.Admit("1.2.3.4", t0.Add(40*time.Second)), ShouldEqual, ratelimit.Denied)
				So(l.Admit("1.2.3.4", t0.Add(50*time.Second)), ShouldEqual, ratelimit.Denied)
				So(l.Admit("1.2.3.4", t0.Add(60*time.Second+time.Millisecond)), ShouldEqual, ratelimit.Allowed)
			})

			Convey("And exactly W after the first is still inside the window", func() {
				So(l.Admit("1.2.3.4", t0.Add(60*time.Second)), ShouldEqual, ratelimit.Denied)
			})

			Convey("And one at W+epsilon succeeds and resets the window", func() {
				reset := t0.Add(60*time.Second + time.Nanosecond)
				So(l.Admit("1.2.3.4", reset), ShouldEqual, ratelimit.Allowed)

				for i := 1; i < ratelimit.DefaultMax; i++ {
					So(l.Admit("1.2.3.4", reset.Add(time.Second)), ShouldEqual, ratelimit.Allowed)
				}
				So(l.Admit("1.2.3.4", reset.Add(2*time.Second)), ShouldEqual, ratelimit.Denied)
			})

			Convey("And other clients are unaffected", func() {
				So(l.Admit("5.6.7.8", t0.Add(30*time.Second)), ShouldEqual, ratelimit.Allowed)
			})
		})
	})
}

func TestLimiterOptions(t *testing.T) {
	Convey("Given a limiter with custom options", t, func() {
		l := ratelimit.New(ratelimit.WithWindow(time.Second), ratelimit.WithMax(2))

		Convey("Then the options are applied", func() {
			So(l.Window(), ShouldEqual, time.Second)
			So(l.Max(), ShouldEqual, 2)
		})

		Convey("When invalid values are supplied", func() {
			d := ratelimit.New(ratelimit.WithWindow(-time.Second), ratelimit.WithMax(0), ratelimit.WithClock(nil))

			Convey("Then defaults are kept", func() {
				So(d.Window(), ShouldEqual, ratelimit.DefaultWindow)
				So(d.Max(), ShouldEqual, ratelimit.DefaultMax)
				So(d.Allow(context.Background(), "x"), ShouldBeNil)
			})
		})
	})
}

func TestLimiterAllow(t *testing.T) {
	Convey("Given a limiter driven by a fake clock", t, func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		l := ratelimit.New(
			ratelimit.WithMax(1),
			ratelimit.WithWindow(time.Minute),
			ratelimit.WithClock(func() time.Time { return now }),
		)
		ctx := context.Background()

		Convey("When the budget is spent", func() {
			So(l.Allow(ctx, "c"), ShouldBeNil)
			err := l.Allow(ctx, "c")

			Convey("Then ErrRateLimited is returned", func() {
				So(errors.Is(err, ratelimit.ErrRateLimited), ShouldBeTrue)
			})

			Convey("And advancing the clock past the window admits again", func() {
				now = now.Add(time.Minute + time.Second)
				So(l.Allow(ctx, "c"), ShouldBeNil)
			})
		})
	})
}

func TestLimiterEviction(t *testing.T) {
	Convey("Given several clients with windows", t, func() {
		l := ratelimit.New(ratelimit.WithWindow(10 * time.Second))
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			l.Admit(fmt.Sprintf("10.0.0.%d", i), t0)
		}
		So(l.Len(), ShouldEqual, 5)

		Convey("When another client arrives after the windows elapsed", func() {
			l.Admit("10.0.1.1", t0.Add(11*time.Second))

			Convey("Then the stale counters are swept", func() {
				So(l.Len(), ShouldEqual, 1)
			})
		})

		Convey("When a client arrives inside the windows", func() {
			l.Admit("10.0.1.1", t0.Add(5*time.Second))

			Convey("Then nothing is evicted", func() {
				So(l.Len(), ShouldEqual, 6)
			})
		})
	})
}

func TestLimiterConcurrency(t *testing.T) {
	Convey("Given many goroutines racing for one client", t, func() {
		l := ratelimit.New(ratelimit.WithMax(15))
		now := time.Now()
		var admitted atomic.Int64
		var wg sync.WaitGroup

		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Admit("same-client", now) == ratelimit.Allowed {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly the capacity is admitted", func() {
			So(admitted.Load(), ShouldEqual, 15)
		})
	})
}

func TestDecisionString(t *testing.T) {
	Convey("Given both decisions", t, func() {
		So(ratelimit.Allowed.String(), ShouldEqual, "allowed")
		So(ratelimit.Denied.String(), ShouldEqual, "denied")
	})
}
