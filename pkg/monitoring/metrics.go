// Package monitoring holds the Prometheus collectors for poimap runs. A CLI
// run has no scrape endpoint, so the registry is dumped to a node_exporter
// textfile when one is configured.
package monitoring

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NERVsystems/poimap/pkg/version"
)

const (
	// Service name for metrics
	ServiceName = "poimap"
)

var (
	// Command metrics
	CommandRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poimap_command_runs_total",
			Help: "Total number of CLI command runs",
		},
		[]string{"command", "status"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poimap_command_duration_seconds",
			Help:    "CLI command duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"command"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poimap_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poimap_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poimap_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Snapshot metrics
	ElementsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poimap_elements_parsed_total",
			Help: "Total number of elements parsed, by kind",
		},
		[]string{"kind"},
	)

	MalformedElements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poimap_malformed_elements_total",
			Help: "Total number of elements skipped as malformed",
		},
	)

	// Snapshot loader cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poimap_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poimap_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poimap_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poimap_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poimap_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poimap_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordCommand counts one finished command run.
func RecordCommand(command string, duration time.Duration, success bool) {
	CommandRunsTotal.WithLabelValues(command, status(success)).Inc()
	CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordElements counts the elements of one parsed snapshot.
func RecordElements(points, areas, malformed int) {
	ElementsParsed.WithLabelValues("point").Add(float64(points))
	ElementsParsed.WithLabelValues("area").Add(float64(areas))
	MalformedElements.Add(float64(malformed))
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMetrics sets the runtime and build gauges.
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsage.Set(float64(m.Alloc))
	GCRuns.Set(float64(m.NumGC))

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)
}

// WriteTextfile refreshes the system gauges and writes every metric from
// the default registry to path in the Prometheus text format. An empty path
// is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	UpdateSystemMetrics()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
