// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] layers configuration in this order: built-in defaults, an
// optional TOML file (path argument or CONFIG_FILE), then environment
// variables. The result is validated before use.
//
//   - LISTEN_ADDR: bridge listen address (default: 127.0.0.1:8080)
//   - WORK_DIR: ffmpeg working storage (default: $TMPDIR/media-converter)
//   - FFMPEG_PATH: ffmpeg executable (default: ffmpeg)
//   - LANGUAGE: message language, ko or en (default: ko)
//   - DEFAULT_MODE: image or video (default: image)
//   - ENGINE_WARMUP: load the engine when video mode is selected (default: true)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - MAX_UPLOAD_MB: upload size limit (default: 512)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: log health probe requests (default: false)
//
// The TOML keys use the same names in lower case, e.g.
//
//	listen_addr = "127.0.0.1:8080"
//	default_mode = "video"
//	max_upload_mb = 256
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
// Sectioned log output for the startup sequence: [LogImageInit],
// [LogEngineInit], [LogHTTPRoutes], [LogServerStarted], and the shutdown
// helpers.
package startup
