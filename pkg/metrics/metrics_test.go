package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When applied to a manager", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("ns"),
				WithSubsystem("sub"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the fields are set", func() {
				So(m.namespace, ShouldEqual, "ns")
				So(m.subsystem, ShouldEqual, "sub")
				So(m.metricPrefix, ShouldEqual, "pre")
				So(m.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(m.refreshInterval, ShouldEqual, 5*time.Second)
				So(m.customLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When empty values are passed", func() {
			m := NewManager(WithNamespace(""), WithRefreshInterval(0), WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "attendance")
				So(m.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When a run is recorded", func() {
			m.RecordRun("success", 2*time.Second)
			m.RecordRun("error", time.Second)
			m.RecordRunRejected()

			Convey("Then the counters reflect it", func() {
				So(value(m.runsTotal.WithLabelValues("success")), ShouldEqual, 1)
				So(value(m.runsTotal.WithLabelValues("error")), ShouldEqual, 1)
				So(value(m.runsRejected), ShouldEqual, 1)
				So(value(m.lastRunTimestamp), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When punches and groups are recorded", func() {
			m.AddPunchesRetrieved(10)
			m.AddPunchesRetrieved(-1)
			m.AddPunchesCollapsed(2)
			m.RecordGroup("inserted")
			m.RecordGroup("inserted")
			m.RecordStatus("in", "")

			Convey("Then negative deltas are ignored", func() {
				So(value(m.punchesRetrieved), ShouldEqual, 10)
				So(value(m.punchesCollapsed), ShouldEqual, 2)
				So(value(m.groupsTotal.WithLabelValues("inserted")), ShouldEqual, 2)
				So(value(m.statusTotal.WithLabelValues("in", "none")), ShouldEqual, 1)
			})
		})

		Convey("When the run gauge flips", func() {
			m.SetRunActive(true)
			So(value(m.runActive), ShouldEqual, 1)
			m.SetRunActive(false)
			So(value(m.runActive), ShouldEqual, 0)
		})

		Convey("When notifications and triggers are recorded", func() {
			m.RecordNotification(true)
			m.RecordNotification(false)
			m.RecordSchedulerTrigger("skipped_busy")

			So(value(m.notifications.WithLabelValues("success")), ShouldEqual, 1)
			So(value(m.notifications.WithLabelValues("failure")), ShouldEqual, 1)
			So(value(m.schedulerTriggers.WithLabelValues("skipped_busy")), ShouldEqual, 1)
		})

		Convey("When system stats are sampled", func() {
			m.sampleSystem()

			So(value(m.systemGoroutineCount), ShouldBeGreaterThan, 0)
			So(value(m.systemMemoryUsage), ShouldBeGreaterThan, 0)
		})
	})
}

func TestDisabledManager(t *testing.T) {
	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("Then recording is a no-op", func() {
			m.RecordRun("success", time.Second)
			m.RecordGroup("skipped")
			m.UpdateQueue(3, 10)
			m.StartSystemCollector(context.Background())

			So(value(m.runsTotal.WithLabelValues("success")), ShouldEqual, 0)
			So(value(m.groupsTotal.WithLabelValues("skipped")), ShouldEqual, 0)
			So(value(m.queueSize), ShouldEqual, 0)
		})
	})
}

func TestGlobalRegistry(t *testing.T) {
	Convey("Given the global manager", t, func() {
		RecordHTTPRequest("/healthz", "GET", "200", 1.5)
		UpdateWorkerCount(4)

		Convey("Then the custom registry gathers its metrics", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make(map[string]bool)
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["attendance_sync_http_requests_total"], ShouldBeTrue)
			So(names["attendance_sync_worker_count"], ShouldBeTrue)
		})
	})
}

// value reads the single sample of a collector.
func value(c prometheus.Collector) float64 {
	ch := make(chan prometheus.Metric, 1)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	var out float64
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil {
			continue
		}
		switch {
		case pb.Counter != nil:
			out = pb.Counter.GetValue()
		case pb.Gauge != nil:
			out = pb.Gauge.GetValue()
		}
	}
	return out
}
