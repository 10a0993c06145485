package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	UploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_upload_bytes",
			Help:    "Size of uploaded source files in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8), // 64KiB .. 1GiB
		},
		[]string{"mode"},
	)
)

// Conversion job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_jobs_total",
			Help: "Total number of conversion jobs by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: succeeded, failed, abandoned
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_job_duration_seconds",
			Help:    "Conversion job duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode", "outcome"},
	)

	JobsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_jobs_in_progress",
			Help: "Number of conversion jobs currently in progress",
		},
		[]string{"mode"},
	)

	StaleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_stale_results_total",
			Help: "Late results of abandoned jobs that were discarded",
		},
		[]string{"mode"},
	)
)

// Engine metrics
var (
	EngineLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_engine_loads_total",
			Help: "Total number of video engine loads",
		},
		[]string{"status"},
	)

	EngineLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_converter_engine_load_duration_seconds",
			Help:    "Video engine load duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	EngineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_engine_state",
			Help: "Video engine state (0 = unloaded, 1 = loading, 2 = loaded)",
		},
	)
)

// Artifact and working storage metrics
var (
	ArtifactsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_artifacts_live",
			Help: "Number of converted outputs currently held in memory",
		},
	)

	ArtifactBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_artifact_bytes",
			Help: "Total size of converted outputs held in memory",
		},
	)

	WorkDirBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_workdir_bytes",
			Help: "Size of the engine working directory in bytes",
		},
	)

	WorkDirFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_workdir_files",
			Help: "Number of files in the engine working directory",
		},
	)
)

// Working storage retry metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_stale_errors_total",
			Help: "Transient working storage errors (ESTALE, EINTR, EAGAIN) by operation",
		},
		[]string{"operation"},
	)

	FilesystemRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retries_total",
			Help: "Retried working storage operations by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_paused",
			Help: "Whether new conversions are refused due to memory pressure (1 = refused)",
		},
	)

	MemoryRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_memory_rejections_total",
			Help: "Uploads refused while memory usage was critical",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "ffmpeg_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, ffmpegVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion, ffmpegVersion).Set(1)
}
