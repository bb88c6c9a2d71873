package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// BatchRunning is 1 while a batch run is in progress.
	BatchRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagger",
		Subsystem: "batch",
		Name:      "running",
		Help:      "Whether a batch tagging run is currently in progress.",
	})

	// ProcessedTotal counts processed images by outcome.
	ProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagger",
		Subsystem: "batch",
		Name:      "images_processed_total",
		Help:      "Total number of images handled by batch runs, labeled by result.",
	}, []string{"result"})

	// ProcessingDurationSeconds is end-to-end time per image, measured inside the run loop.
	ProcessingDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tagger",
		Subsystem: "batch",
		Name:      "image_processing_duration_seconds",
		Help:      "End-to-end time to tag a single image (decode + generate + save).",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120, 300},
	}, []string{"result"})

	// BatchesTotal counts batch runs that reached completion.
	BatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tagger",
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Total number of batch runs that reached completion.",
	})

	// LastBatchTimestampSeconds is a unix timestamp (seconds) of the last completed run.
	LastBatchTimestampSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagger",
		Subsystem: "batch",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last completed batch run.",
	})
)

// Register registers tagger metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			BatchRunning,
			ProcessedTotal,
			ProcessingDurationSeconds,
			BatchesTotal,
			LastBatchTimestampSeconds,
		)
	})
}

func NowUnixSeconds() float64 {
	return float64(time.Now().Unix())
}
