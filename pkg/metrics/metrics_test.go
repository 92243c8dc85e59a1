package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then every collector is registered", func() {
				So(manager, ShouldNotBeNil)
				manager.submissions.WithLabelValues(KindRun, OutcomeAccepted).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names carry the namespace and subsystem", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				manager.rateLimitDenied.Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_test_subsystem_rate_limit_denied_total")
			})
		})

		Convey("When registering twice on the same registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording submissions", func() {
			before := testutil.ToFloat64(globalManager.submissions.WithLabelValues(KindHero, OutcomeRateLimited))
			RecordSubmission(KindHero, OutcomeRateLimited)

			Convey("Then the labelled counter increments", func() {
				after := testutil.ToFloat64(globalManager.submissions.WithLabelValues(KindHero, OutcomeRateLimited))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording hero upserts", func() {
			applied := testutil.ToFloat64(globalManager.heroUpserts.WithLabelValues("applied"))
			skipped := testutil.ToFloat64(globalManager.heroUpserts.WithLabelValues("skipped"))
			RecordHeroUpsert(true)
			RecordHeroUpsert(false)
			RecordHeroUpsert(false)

			Convey("Then applied and skipped are tracked separately", func() {
				So(testutil.ToFloat64(globalManager.heroUpserts.WithLabelValues("applied"))-applied, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.heroUpserts.WithLabelValues("skipped"))-skipped, ShouldEqual, 2)
			})
		})

		Convey("When updating gauges", func() {
			UpdateRateLimitClients(7)
			UpdateLiveSubscribers(3)
			UpdateFeedQueueSize(11)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.rateLimitClients), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.liveSubscribers), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.feedQueueSize), ShouldEqual, 11)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordValidationError("wave")
				RecordQuery(KindRun)
				RecordRateLimitDenied()
				RecordStorageLatency("insert_run", 1.5)
				RecordStorageError("insert_run")
				RecordHTTPRequest("leaderboard", "GET", "200")
				RecordHTTPRequestDuration("leaderboard", "GET", "200", 3)
				RecordFeedDropped()
				RecordFeedDelivered()
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
		})

		Convey("When gathering from the custom registry", func() {
			RecordSubmission(KindRun, OutcomeAccepted)
			families, err := GetRegistry().Gather()

			Convey("Then our series are exposed", func() {
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "runboard_leaderboard_submissions_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
