package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RunsTotal counts pipeline runs by result (completed, config_error, analysis_error, publish_error).
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediapress",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total number of pipeline runs, labeled by result.",
	}, []string{"result"})

	// StageDurationSeconds is the time spent in each pipeline stage.
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediapress",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in a pipeline stage (analyze, publish), labeled by stage and provider.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"stage", "provider"})

	// InFlight is the number of pipeline runs currently executing.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediapress",
		Subsystem: "pipeline",
		Name:      "in_flight",
		Help:      "Current number of pipeline runs in progress.",
	})

	// EventsDroppedTotal counts status events dropped because the event queue was full.
	EventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediapress",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Total number of task status events dropped because the queue was full.",
	})

	// ImageBytes records image sizes before and after optimization.
	ImageBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediapress",
		Subsystem: "optimizer",
		Name:      "image_bytes",
		Help:      "Image size in bytes, labeled by phase (original, processed).",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
	}, []string{"phase"})
)

// Register registers mediapress metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RunsTotal,
			StageDurationSeconds,
			InFlight,
			EventsDroppedTotal,
			ImageBytes,
		)
	})
}
