package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"media-converter/internal/logging"
)

var rule = strings.Repeat("-", 60)

// section starts a titled block in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

// LogImageInit logs the image pipeline backend.
func LogImageInit(vipsAvailable, heifSupported bool, workers int) {
	section("IMAGE CONVERTER INITIALIZATION")

	switch {
	case !vipsAvailable:
		logging.Warn("  libvips unavailable, using pure Go fallback")
		logging.Warn("  HEIC input will be rejected by the decoder")
	case !heifSupported:
		logging.Info("  [OK] libvips started (%d workers)", workers)
		logging.Warn("  libvips was built without HEIF support, HEIC conversions will fail")
	default:
		logging.Info("  [OK] libvips started (%d workers)", workers)
		logging.Info("  [OK] HEIF loader available")
	}
}

// LogEngineInit logs the ffmpeg probe result. The engine itself loads
// lazily on first use or on warm-up.
func LogEngineInit(version string, err error, warmup bool) {
	section("VIDEO ENGINE")

	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video conversion will fail until ffmpeg is available")
	} else {
		logging.Info("  [OK] %s", version)
	}

	when := "on first video conversion"
	if warmup {
		when = "when video mode is selected"
	}
	logging.Info("  Engine loads %s", when)
}

// ServerConfig holds what LogServerStarted prints.
type ServerConfig struct {
	ListenAddr      string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listen address and endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration.Round(time.Millisecond))
	logging.Info("  Bridge API:      http://%s/api/state", config.ListenAddr)
	logging.Info("  Health:          http://%s/health", config.ListenAddr)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://%s/metrics", config.ListenAddr)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step at debug level.
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs and exits with status 1.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	fmt.Printf("\n%s\n  MEDIA CONVERTER    HEIC -> JPG    MOV -> MP4\n%s\n", rule, rule)
	logging.Info("  Version %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")

	procs := runtime.GOMAXPROCS(0)
	logging.Info("  Go:              %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if procs < runtime.NumCPU() {
		logging.Info("  CPUs:            %d (GOMAXPROCS %d, container limit)", runtime.NumCPU(), procs)
	} else {
		logging.Info("  CPUs:            %d", runtime.NumCPU())
	}

	if logging.IsDebugEnabled() {
		wd, _ := os.Getwd()
		host, _ := os.Hostname()
		logging.Debug("  Working dir:     %s", wd)
		logging.Debug("  Hostname:        %s", host)
	}
}

// ensureDirectory creates path if missing and fails if it is not a
// directory.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", name, err)
		}
		logging.Info("  [OK] Created %s directory", name)
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat %s directory: %w", name, err)
	case !info.IsDir():
		return fmt.Errorf("%s path %s exists but is not a directory", name, path)
	}
	logging.Debug("  [OK] %s directory exists", name)
	return nil
}

func testWriteAccess(dir string) error {
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return err
	}
	if err := os.Remove(probe); err != nil {
		logging.Warn("failed to remove write test file %s: %v", probe, err)
	}
	return nil
}
