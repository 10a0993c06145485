package media

import (
	"fmt"
	"sync"

	"media-converter/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsLog = logging.Component("vips")

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
	heifSupported   bool
)

// vipsLogSettings maps the application log level to a libvips verbosity and
// a handler that forwards libvips messages to our logger.
func vipsLogSettings(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	forward := func(min vips.LogLevel) func(string, vips.LogLevel, string) {
		return func(domain string, l vips.LogLevel, msg string) {
			if l < min {
				return
			}
			switch {
			case l >= vips.LogLevelError:
				vipsLog.Error("[%s] %s", domain, msg)
			case l == vips.LogLevelWarning:
				vipsLog.Warn("[%s] %s", domain, msg)
			default:
				vipsLog.Debug("[%s] %s", domain, msg)
			}
		}
	}

	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward(vips.LogLevelInfo)
	case logging.LevelInfo:
		return vips.LogLevelWarning, forward(vips.LogLevelWarning)
	case logging.LevelWarn:
		return vips.LogLevelError, forward(vips.LogLevelError)
	default:
		return vips.LogLevelCritical, forward(vips.LogLevelCritical)
	}
}

// InitVips starts libvips with the given thread pool size. It is safe to
// call more than once; only the first call has an effect.
func InitVips(concurrency int) error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	verbosity, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, verbosity)

	// One HEIC decode at a time is the normal load; keep the cache small.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	heifSupported = vips.IsTypeSupported(vips.ImageTypeHEIF)

	vipsLog.Info("libvips initialized (version: %s, threads: %d)", vips.Version, concurrency)
	if !heifSupported {
		vipsLog.Warn("libvips was built without HEIF support; HEIC conversion will fail")
	}
	return nil
}

// ShutdownVips releases libvips. libvips cannot be restarted afterwards in
// the same process.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsAvailable = false
		vipsLog.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// HEIFSupported reports whether the running libvips can decode HEIC/HEIF.
func HEIFSupported() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable && heifSupported
}

// jpegWithVips decodes any libvips-supported buffer, applies EXIF
// orientation and re-encodes it as JPEG.
func jpegWithVips(data []byte, quality int) ([]byte, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	params := vips.NewJpegExportParams()
	params.Quality = quality
	params.StripMetadata = false
	params.OptimizeCoding = true

	out, _, err := ref.ExportJpeg(params)
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}
