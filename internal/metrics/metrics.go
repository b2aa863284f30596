// Package metrics provides Prometheus metrics for monitoring renderd.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BatchesTotal counts completed batches by status.
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderd_batches_total",
			Help: "Total number of render batches processed",
		},
		[]string{"status"},
	)

	// BatchDuration tracks end-to-end batch duration.
	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renderd_batch_duration_seconds",
			Help:    "Batch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
		},
	)

	// PagesTotal counts rendered pages by status.
	PagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderd_pages_total",
			Help: "Total number of pages rendered",
		},
		[]string{"status"},
	)

	// PageDuration tracks per-page render duration.
	PageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renderd_page_duration_seconds",
			Help:    "Per-page render duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~50s
		},
	)

	// OpenPages shows currently open browser tabs.
	OpenPages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderd_open_pages",
			Help: "Currently open browser tabs",
		},
	)

	// GateRejections counts batches rejected because one was in flight.
	GateRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renderd_gate_rejections_total",
			Help: "Batches rejected while another batch was in flight",
		},
	)

	// BrowserLaunches counts browser process launches by outcome.
	BrowserLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderd_browser_launches_total",
			Help: "Browser process launches by outcome",
		},
		[]string{"outcome"},
	)

	// MemoryUsageBytes shows current memory usage.
	MemoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderd_memory_usage_bytes",
			Help: "Current memory usage in bytes (alloc)",
		},
	)

	// MemorySysBytes shows system memory obtained.
	MemorySysBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderd_memory_sys_bytes",
			Help: "Total memory obtained from system",
		},
	)

	// GoroutineCount shows current goroutine count.
	GoroutineCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderd_goroutines",
			Help: "Current number of goroutines",
		},
	)

	// BuildInfo provides build information as labels.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "renderd_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

func init() {
	prometheus.MustRegister(
		BatchesTotal,
		BatchDuration,
		PagesTotal,
		PageDuration,
		OpenPages,
		GateRejections,
		BrowserLaunches,
		MemoryUsageBytes,
		MemorySysBytes,
		GoroutineCount,
		BuildInfo,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// RecordBatch records metrics for a completed batch.
func RecordBatch(status string, duration time.Duration) {
	BatchesTotal.WithLabelValues(status).Inc()
	BatchDuration.Observe(duration.Seconds())
}

// RecordPage records metrics for a single rendered page.
func RecordPage(status string, duration time.Duration) {
	PagesTotal.WithLabelValues(status).Inc()
	PageDuration.Observe(duration.Seconds())
}

// StartMemoryCollector starts a goroutine that periodically updates memory metrics.
func StartMemoryCollector(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateMemoryMetrics()
		case <-stopCh:
			return
		}
	}
}

func updateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsageBytes.Set(float64(m.Alloc))
	MemorySysBytes.Set(float64(m.Sys))
	GoroutineCount.Set(float64(runtime.NumGoroutine()))
}
