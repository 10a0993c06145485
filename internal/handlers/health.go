package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-converter/internal/media"
	"media-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	statusStopping = "stopping"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Conversion state
	Mode          string `json:"mode"`
	JobStatus     string `json:"jobStatus"`
	Engine        string `json:"engine"`
	ImageBackend  string `json:"imageBackend"`
	HEIFSupported bool   `json:"heifSupported"`
	LiveArtifacts int    `json:"liveArtifacts"`

	// Memory admission
	MemoryPaused bool    `json:"memoryPaused"`
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. It reports
// degraded when libvips cannot decode HEIF or when conversions are paused
// for memory.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	state := h.orch.State()
	ready := !h.orch.Closed()

	response := HealthResponse{
		Ready:         ready,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Mode:          string(state.Mode),
		JobStatus:     string(state.Job.Status),
		Engine:        state.Engine,
		ImageBackend:  "go",
		HEIFSupported: media.HEIFSupported(),
		LiveArtifacts: h.orch.Artifacts().Live(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if h.memory != nil {
		response.MemoryPaused = h.memory.IsPaused()
		_, _, response.MemoryUsage = h.memory.GetStats()
	}
	if media.IsVipsAvailable() {
		response.ImageBackend = "libvips"
	}

	switch {
	case !ready:
		response.Status = statusStopping
	case !response.HEIFSupported, response.MemoryPaused:
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, response, code)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 until the orchestrator is closed
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.orch.Closed() {
		writeJSONStatus(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, map[string]string{"status": "ready"}, http.StatusOK)
}
