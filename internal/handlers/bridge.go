package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"media-converter/internal/artifact"
	"media-converter/internal/conversion"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"

	"github.com/gorilla/mux"
)

const (
	// multipartMemory is the part of an upload kept in memory before the
	// multipart reader spills to temp files.
	multipartMemory = 32 << 20

	// maxEventWait bounds the long-poll wait on GET /api/events.
	maxEventWait = 30 * time.Second
)

// ModeRequest is the body of PUT /api/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// EventsResponse is returned by GET /api/events.
type EventsResponse struct {
	Events  []conversion.Event `json:"events"`
	LastSeq int64              `json:"lastSeq"`
}

// GetState returns the mode, UI text, current job and engine state.
// GET /api/state
func (h *Handlers) GetState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.orch.State())
}

// SetMode switches between image and video conversion.
// PUT /api/mode
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode, err := mediatypes.ParseMode(req.Mode)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.orch.SetMode(mode); err != nil {
		logging.Error("Failed to set mode %s: %v", mode, err)
		writeJSONError(w, "Failed to set mode", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.orch.State())
}

// Convert accepts a multipart upload in the "file" field and starts a job
// in the active mode. The job snapshot is returned right away with 202
// while it runs; with ?wait=true the request blocks until the job ends.
// POST /api/convert
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	if err := h.memory.Admit(); err != nil {
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, "Server is under memory pressure, try again later", http.StatusServiceUnavailable)
		return
	}
	if r.ContentLength > h.maxUpload {
		writeJSONError(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logging.Warn("Failed to remove multipart temp files: %v", err)
			}
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logging.Error("Failed to read upload %q: %v", header.Filename, err)
		writeJSONError(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	metrics.UploadBytes.WithLabelValues(string(h.orch.Mode())).Observe(float64(len(data)))

	src := conversion.SourceFile{
		Name: header.Filename,
		Type: header.Header.Get("Content-Type"),
		Data: data,
	}

	var job conversion.Job
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		job, err = h.orch.Convert(r.Context(), src)
	} else {
		job, err = h.orch.Submit(src)
	}

	switch {
	case errors.Is(err, conversion.ErrClosed):
		writeJSONError(w, "Converter is shutting down", http.StatusServiceUnavailable)
		return
	case err != nil && r.Context().Err() != nil:
		// Client went away while waiting.
		return
	case err != nil:
		logging.Error("Conversion of %q failed: %v", header.Filename, err)
		writeJSONError(w, "Conversion failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if job.Status.Active() {
		status = http.StatusAccepted
	}
	writeJSONStatus(w, job, status)
}

// Reset discards the current job and revokes its artifact.
// POST /api/reset
func (h *Handlers) Reset(w http.ResponseWriter, _ *http.Request) {
	h.orch.Reset()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.orch.State())
}

// GetEvents returns events after ?since=N. With ?wait=<duration> the
// request is held until at least one new event exists or the wait ends.
// GET /api/events
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var since int64
	if s := query.Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			writeJSONError(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		since = n
	}

	var wait time.Duration
	if s := query.Get("wait"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			writeJSONError(w, "Invalid wait parameter", http.StatusBadRequest)
			return
		}
		wait = min(d, maxEventWait)
	}

	events := h.orch.Events(since)
	if len(events) == 0 && wait > 0 {
		events = h.awaitEvents(r, since, wait)
	}

	resp := EventsResponse{Events: events, LastSeq: since}
	if n := len(events); n > 0 {
		resp.LastSeq = events[n-1].Seq
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}

func (h *Handlers) awaitEvents(r *http.Request, since int64, wait time.Duration) []conversion.Event {
	notify := make(chan struct{}, 1)
	unsubscribe := h.orch.Subscribe(func(conversion.Event) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// An event may have landed between the first read and Subscribe.
	if events := h.orch.Events(since); len(events) > 0 {
		return events
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-notify:
	case <-timer.C:
	case <-r.Context().Done():
	}
	return h.orch.Events(since)
}

// GetArtifact serves a converted output by identity. Revoked identities
// return 404.
// GET /api/artifacts/{id}
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	a, ok := h.orch.Artifacts().Lookup(id)
	if !ok {
		writeJSONError(w, "Artifact not found", http.StatusNotFound)
		return
	}

	content, err := a.Open()
	if errors.Is(err, artifact.ErrReleased) {
		writeJSONError(w, "Artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to open artifact %s: %v", id, err)
		writeJSONError(w, "Failed to open artifact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("ETag", `"`+a.Checksum+`"`)
	w.Header().Set("Cache-Control", "private, no-cache")

	http.ServeContent(w, r, a.Name, a.CreatedAt, content)
}

// RegisterRoutes adds the bridge, probe and version routes to r.
func (h *Handlers) RegisterRoutes(r *mux.Router, metricsEnabled bool) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.GetState).Methods("GET")
	api.HandleFunc("/mode", h.SetMode).Methods("PUT")
	api.HandleFunc("/convert", h.Convert).Methods("POST")
	api.HandleFunc("/reset", h.Reset).Methods("POST")
	api.HandleFunc("/events", h.GetEvents).Methods("GET")
	api.HandleFunc("/artifacts/{id}", h.GetArtifact).Methods("GET", "HEAD")
}
