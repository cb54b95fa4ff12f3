package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a single-metric counter or gauge.
func value(c prometheus.Collector) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var d dto.Metric
	if err := (<-ch).Write(&d); err != nil {
		return -1
	}
	if d.Counter != nil {
		return d.Counter.GetValue()
	}
	return d.Gauge.GetValue()
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("ratings"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors are registered under the namespace", func() {
				m.runs.WithLabelValues("full", "success").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ratings_runs_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Run and anomaly counters increase", func() {
			before := value(globalManager.runs.WithLabelValues("delta-only", "failure"))
			RecordRun("delta-only", false)
			So(value(globalManager.runs.WithLabelValues("delta-only", "failure")), ShouldEqual, before+1)

			before = value(globalManager.anomalies.WithLabelValues("F22", "over_cap"))
			RecordAnomaly("F22", "over_cap")
			So(value(globalManager.anomalies.WithLabelValues("F22", "over_cap")), ShouldEqual, before+1)
		})

		Convey("Gauges hold the last value", func() {
			UpdateEntitiesRated(42)
			UpdateRecordsPublished(40)
			So(value(globalManager.entitiesRated), ShouldEqual, 42)
			So(value(globalManager.recordsPublished), ShouldEqual, 40)
		})

		Convey("Skipped captures do not count rows", func() {
			rows := value(globalManager.snapshotsCaptured)
			RecordSnapshotCapture(10, false)
			RecordSnapshotCapture(10, true)
			So(value(globalManager.snapshotsCaptured), ShouldEqual, rows+10)
		})

		Convey("Recording helpers never panic", func() {
			So(func() {
				RecordRunDuration(12)
				RecordPhaseDuration("evaluate", 3)
				UpdateLastPublish(1700000000)
				RecordFactorEvaluations(27)
				RecordMissingSource("likes")
				RecordStoreSwapDuration(4)
				RecordStoreQueryLatency(0.5)
				UpdateLeaderboardSize(3)
				UpdateWorkerActiveCount(2)
				RecordWorkerTaskLatency(0.2)
				RecordWorkerError()
				RecordNotification(true)
				RecordHTTPRequest("/leaderboard", "GET", 200)
				RecordHTTPRequestDuration("/leaderboard", "GET", 200, 1.5)
				RecordErrorByComponent("store", "publish")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("The registry exposes the rating namespace", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			So(strings.HasPrefix(families[0].GetName(), "rating_engine_"), ShouldBeTrue)
		})
	})
}
