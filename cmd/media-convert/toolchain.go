package main

import (
	"context"

	"media-converter/internal/conversion"
	"media-converter/internal/engine"
	"media-converter/internal/media"
	"media-converter/internal/startup"
	"media-converter/internal/transcoder"
	"media-converter/internal/workers"
)

// toolchain holds the converters a run uses. Tests replace it with fakes.
type toolchain struct {
	// startImages prepares the image backend and returns its shutdown.
	startImages func() (shutdown func())
	images      conversion.ImageConverter
	loader      func(cfg *startup.Config) engine.Loader
	probe       func(ctx context.Context, binary string) (string, error)
	imageStatus func() (vips, heif bool)
}

func defaultToolchain() toolchain {
	return toolchain{
		startImages: func() func() {
			if err := media.InitVips(workers.ForCPU(4)); err != nil {
				log.Warn("libvips init failed: %v", err)
			}
			return media.ShutdownVips
		},
		images: media.NewConverter(),
		loader: func(cfg *startup.Config) engine.Loader {
			return transcoder.NewLoader(transcoder.Options{
				Binary:  cfg.FFmpegPath,
				WorkDir: cfg.WorkDir,
			})
		},
		probe: transcoder.Version,
		imageStatus: func() (bool, bool) {
			return media.IsVipsAvailable(), media.HEIFSupported()
		},
	}
}
