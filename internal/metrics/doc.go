// Package metrics provides Prometheus instrumentation for media-converter.
//
// All metrics are prefixed with "media_converter_" and registered through
// promauto at package init.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - UploadBytes: Histogram of uploaded source sizes by mode
//
// ## Conversion Metrics
//
//   - JobsTotal: Counter of jobs by mode and outcome (succeeded, failed, abandoned)
//   - JobDuration: Histogram of job duration by mode and outcome
//   - JobsInProgress: Gauge of active jobs by mode
//   - StaleResultsTotal: Counter of discarded late results by mode
//
// ## Engine Metrics
//
//   - EngineLoadsTotal: Counter of engine loads by status
//   - EngineLoadDuration: Histogram of load duration
//   - EngineState: Gauge (0 = unloaded, 1 = loading, 2 = loaded)
//
// ## Storage Metrics
//
//   - ArtifactsLive: Gauge of converted outputs held in memory
//   - ArtifactBytes: Gauge of their total size, sampled by Collector
//   - WorkDirBytes, WorkDirFiles: engine working directory usage, sampled by Collector
//   - FilesystemStaleErrors: transient working storage errors by operation
//   - FilesystemRetries: retried operations by operation and result
//
// ## Memory Metrics
//
//   - MemoryUsageRatio: heap allocation as a fraction of the limit
//   - MemoryPaused: 1 while new conversions are refused
//   - MemoryRejectionsTotal: uploads refused under memory pressure
//
// ## Application Info
//
//   - AppInfo: Gauge with version, commit, Go version and ffmpeg version labels
//
// # Usage
//
// Packages that must not import this one expose observer interfaces;
// the constructors here adapt them:
//
//	handle := engine.NewHandle(loader, metrics.NewEngineObserver())
//	store := artifact.NewStore(metrics.NewArtifactObserver())
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
