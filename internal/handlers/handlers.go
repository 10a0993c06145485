package handlers

import (
	"time"

	"media-converter/internal/conversion"
	"media-converter/internal/memory"
	"media-converter/internal/startup"
)

// Handlers serves the conversion bridge API.
type Handlers struct {
	orch      *conversion.Orchestrator
	memory    *memory.Monitor
	maxUpload int64
	startTime time.Time
}

// New creates the handlers. mem may be nil to disable memory admission.
func New(orch *conversion.Orchestrator, mem *memory.Monitor, config *startup.Config) *Handlers {
	return &Handlers{
		orch:      orch,
		memory:    mem,
		maxUpload: config.MaxUploadBytes(),
		startTime: time.Now(),
	}
}
