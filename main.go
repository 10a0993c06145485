package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"media-converter/internal/artifact"
	"media-converter/internal/conversion"
	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
	"media-converter/internal/handlers"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"
	"media-converter/internal/middleware"
	"media-converter/internal/startup"
	"media-converter/internal/transcoder"
	"media-converter/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig("")
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		filesystem.SetObserver(metrics.NewFilesystemObserver())
	}

	// Image pipeline
	vipsWorkers := workers.ForCPU(4)
	if err := media.InitVips(vipsWorkers); err != nil {
		logging.Warn("libvips init failed: %v", err)
	}
	defer media.ShutdownVips()
	startup.LogImageInit(media.IsVipsAvailable(), media.HEIFSupported(), vipsWorkers)

	// Video engine; loaded lazily, only probed here
	probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ffmpegVersion, probeErr := transcoder.Version(probeCtx, config.FFmpegPath)
	cancel()
	startup.LogEngineInit(ffmpegVersion, probeErr, config.EngineWarmup)
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion, ffmpegVersion)

	loader := transcoder.NewLoader(transcoder.Options{
		Binary:  config.FFmpegPath,
		WorkDir: config.WorkDir,
	})
	handle := engine.NewHandle(loader, metrics.NewEngineObserver())

	store := artifact.NewStore(metrics.NewArtifactObserver())
	orch, err := conversion.New(conversion.Options{
		Engine:        handle,
		Images:        media.NewConverter(),
		Artifacts:     store,
		Observer:      metrics.NewJobObserver(),
		Mode:          config.Mode,
		Language:      config.Language,
		WarmupOnVideo: config.EngineWarmup,
	})
	if err != nil {
		startup.LogFatal("Failed to create orchestrator: %v", err)
	}
	if config.Mode == mediatypes.ModeVideo && config.EngineWarmup {
		handle.Warmup()
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	collector := metrics.NewCollector(statsProvider(store, config.WorkDir), 30*time.Second)
	if config.MetricsEnabled {
		collector.Start()
	}

	h := handlers.New(orch, monitor, config)

	router := mux.NewRouter()
	if config.MetricsEnabled {
		router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	h.RegisterRoutes(router, config.MetricsEnabled)

	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and ?wait=true conversions can take minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go handleShutdown(srv, done, func() {
		startup.LogShutdownStep("Stopping collectors")
		collector.Stop()
		monitor.Stop()
		startup.LogShutdownStepComplete("Collectors stopped")

		startup.LogShutdownStep("Closing orchestrator")
		orch.Close()
		startup.LogShutdownStepComplete("Orchestrator closed")

		startup.LogShutdownStep("Unloading video engine")
		if err := handle.Unload(); err != nil {
			logging.Warn("Engine unload error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Video engine unloaded")
		}
	})

	startup.LogServerStarted(startup.ServerConfig{
		ListenAddr:      config.ListenAddr,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func handleShutdown(srv *http.Server, done chan<- struct{}, cleanup func()) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	cleanup()

	startup.LogShutdownComplete()
}

// statsProvider samples retained artifact bytes and the engine's working
// directory for the metrics collector.
func statsProvider(store *artifact.Store, workDir string) metrics.StatsProvider {
	return metrics.StatsProviderFunc(func() metrics.Stats {
		stats := metrics.Stats{ArtifactBytes: store.Bytes()}
		stats.WorkDirBytes, stats.WorkDirFiles = dirUsage(workDir)
		return stats
	})
}

// dirUsage returns the total size and count of regular files under dir.
// Unreadable entries and the engine lock file are skipped.
func dirUsage(dir string) (size int64, files int) {
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() || d.Name() == transcoder.LockFileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		files++
		return nil
	})
	return size, files
}
