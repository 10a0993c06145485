package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"media-converter/internal/conversion"
	"media-converter/internal/engine"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
	"media-converter/internal/startup"

	"github.com/gorilla/mux"
)

type prefixImages struct{}

func (prefixImages) ToJPEG(_ context.Context, data []byte, _ float64) ([]byte, error) {
	return append([]byte("jpeg:"), data...), nil
}

// memEngine keeps working storage in memory and "transcodes" by
// prefixing "mp4:".
type memEngine struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (e *memEngine) WriteFile(_ context.Context, name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = data
	return nil
}

func (e *memEngine) ReadFile(_ context.Context, name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (e *memEngine) DeleteFile(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.files, name)
	return nil
}

func (e *memEngine) Files(context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for name := range e.files {
		names = append(names, name)
	}
	return names, nil
}

func (e *memEngine) Exec(_ context.Context, args []string, progress engine.ProgressFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	input, ok := e.files[args[1]]
	if !ok {
		return fmt.Errorf("%s: %w", args[1], fs.ErrNotExist)
	}
	progress(0.5)
	e.files[args[2]] = append([]byte("mp4:"), input...)
	return nil
}

func (e *memEngine) Close() error { return nil }

type testServer struct {
	orch   *conversion.Orchestrator
	router *mux.Router
}

func newTestServer(t *testing.T, maxUploadMB int64) *testServer {
	t.Helper()

	handle := engine.NewHandle(engine.LoaderFunc(func(context.Context) (engine.Engine, error) {
		return &memEngine{files: make(map[string][]byte)}, nil
	}), nil)

	orch, err := conversion.New(conversion.Options{
		Engine:   handle,
		Images:   prefixImages{},
		Language: "en",
	})
	if err != nil {
		t.Fatalf("conversion.New: %v", err)
	}
	t.Cleanup(orch.Close)

	cfg := startup.DefaultConfig()
	cfg.MaxUploadMB = maxUploadMB

	router := mux.NewRouter()
	New(orch, nil, &cfg).RegisterRoutes(router, true)
	return &testServer{orch: orch, router: router}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, target, field, name, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, w.Body.String())
	}
	return v
}

func TestGetState(t *testing.T) {
	s := newTestServer(t, 16)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/state", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	state := decode[conversion.State](t, w)
	if state.Mode != mediatypes.ModeImage || state.Job.Status != conversion.StatusIdle {
		t.Errorf("unexpected state %+v", state)
	}
	if state.UI.DownloadLabel != "Download JPG" || state.UI.Accept != ".heic,.HEIC,.heif,.HEIF" {
		t.Errorf("unexpected UI profile %+v", state.UI)
	}
	if state.Engine != "unloaded" {
		t.Errorf("Engine = %q, want unloaded", state.Engine)
	}
}

func TestSetMode(t *testing.T) {
	s := newTestServer(t, 16)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"mode":"video"}`, http.StatusOK},
		{"case insensitive", `{"mode":"IMAGE"}`, http.StatusOK},
		{"unknown mode", `{"mode":"audio"}`, http.StatusBadRequest},
		{"bad json", `{"mode":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/mode", strings.NewReader(tt.body))
			w := s.do(req)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %q)", w.Code, tt.status, w.Body.String())
			}
		})
	}

	if s.orch.Mode() != mediatypes.ModeImage {
		t.Errorf("Mode = %s, want image after the last valid switch", s.orch.Mode())
	}
}

func TestSetModeReturnsState(t *testing.T) {
	s := newTestServer(t, 16)

	w := s.do(httptest.NewRequest(http.MethodPut, "/api/mode", strings.NewReader(`{"mode":"video"}`)))
	state := decode[conversion.State](t, w)
	if state.Mode != mediatypes.ModeVideo || state.UI.DownloadLabel != "Download MP4" {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestConvertImageAndDownload(t *testing.T) {
	s := newTestServer(t, 16)

	w := s.do(uploadRequest(t, "/api/convert?wait=true", "file", "IMG_0001.HEIC", "image/heic", []byte("pixels")))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", w.Code, w.Body.String())
	}
	job := decode[conversion.Job](t, w)
	if job.Status != conversion.StatusSucceeded || job.Artifact == nil {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Artifact.Name != "IMG_0001.jpg" || job.Artifact.MimeType != "image/jpeg" {
		t.Errorf("unexpected artifact %+v", job.Artifact)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/"+job.Artifact.ID, http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if got := w.Body.String(); got != "jpeg:pixels" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename=IMG_0001.jpg` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	etag := w.Header().Get("ETag")
	if etag != `"`+job.Artifact.Checksum+`"` {
		t.Errorf("ETag = %q, want checksum", etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/"+job.Artifact.ID, http.NoBody)
	req.Header.Set("If-None-Match", etag)
	if w := s.do(req); w.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", w.Code)
	}
}

func TestConvertNonASCIIName(t *testing.T) {
	s := newTestServer(t, 16)

	w := s.do(uploadRequest(t, "/api/convert?wait=true", "file", "사진.heic", "", []byte("x")))
	job := decode[conversion.Job](t, w)
	if job.Artifact == nil || job.Artifact.Name != "사진.jpg" {
		t.Fatalf("unexpected job %+v", job)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/"+job.Artifact.ID, http.NoBody))
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename*=utf-8''") {
		t.Errorf("Content-Disposition = %q, want RFC 2231 encoding", cd)
	}
}

func TestConvertAsync(t *testing.T) {
	s := newTestServer(t, 16)
	if err := s.orch.SetMode(mediatypes.ModeVideo); err != nil {
		t.Fatal(err)
	}

	w := s.do(uploadRequest(t, "/api/convert", "file", "clip.mov", "video/quicktime", []byte("frames")))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if job := decode[conversion.Job](t, w); job.Status != conversion.StatusValidating {
		t.Errorf("snapshot status = %s, want validating", job.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := s.orch.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.Status != conversion.StatusSucceeded || job.Artifact.Name != "clip.mp4" {
		t.Errorf("unexpected final job %+v", job)
	}
}

func TestConvertInvalidInput(t *testing.T) {
	s := newTestServer(t, 16)

	w := s.do(uploadRequest(t, "/api/convert", "file", "photo.png", "image/png", []byte("png")))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a synchronous rejection", w.Code)
	}
	job := decode[conversion.Job](t, w)
	if job.Status != conversion.StatusFailed || job.ErrorKind != conversion.KindInvalidInput {
		t.Errorf("unexpected job %+v", job)
	}
	if job.Message == "" {
		t.Error("expected a user-facing message")
	}
}

func TestConvertBadRequests(t *testing.T) {
	s := newTestServer(t, 1)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{
			name:   "wrong field",
			req:    uploadRequest(t, "/api/convert", "upload", "a.heic", "", []byte("x")),
			status: http.StatusBadRequest,
		},
		{
			name:   "not multipart",
			req:    httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader("raw")),
			status: http.StatusBadRequest,
		},
		{
			name:   "too large",
			req:    uploadRequest(t, "/api/convert", "file", "a.heic", "", bytes.Repeat([]byte("x"), 2<<20)),
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(tt.req); w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %q)", w.Code, tt.status, w.Body.String())
			}
		})
	}

	if job := s.orch.Current(); job.Status != conversion.StatusIdle {
		t.Errorf("rejected requests must not start a job, got %+v", job)
	}
}

func TestConvertAfterClose(t *testing.T) {
	s := newTestServer(t, 16)
	s.orch.Close()

	w := s.do(uploadRequest(t, "/api/convert", "file", "a.heic", "", []byte("x")))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestResetRevokesArtifact(t *testing.T) {
	s := newTestServer(t, 16)

	job := decode[conversion.Job](t, s.do(uploadRequest(t, "/api/convert?wait=true", "file", "a.heic", "", []byte("x"))))
	if job.Artifact == nil {
		t.Fatalf("no artifact: %+v", job)
	}

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/reset", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	if state := decode[conversion.State](t, w); state.Job.Status != conversion.StatusIdle {
		t.Errorf("job after reset = %+v", state.Job)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/"+job.Artifact.ID, http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("revoked artifact status = %d, want 404", w.Code)
	}
}

func TestGetArtifactUnknown(t *testing.T) {
	s := newTestServer(t, 16)
	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/blob:nope", http.NoBody)); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetEvents(t *testing.T) {
	s := newTestServer(t, 16)
	s.do(uploadRequest(t, "/api/convert?wait=true", "file", "a.heic", "", []byte("x")))

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/events?since=0", http.NoBody))
	resp := decode[EventsResponse](t, w)

	var types []conversion.EventType
	for _, e := range resp.Events {
		types = append(types, e.Type)
	}
	want := []conversion.EventType{conversion.EventValidating, conversion.EventRunning, conversion.EventSucceeded}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	if resp.LastSeq != resp.Events[2].Seq {
		t.Errorf("LastSeq = %d, want %d", resp.LastSeq, resp.Events[2].Seq)
	}
	if resp.Events[2].ArtifactID == "" || resp.Events[2].FileName != "a.jpg" {
		t.Errorf("succeeded event lacks artifact: %+v", resp.Events[2])
	}

	w = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/events?since=%d", resp.LastSeq), http.NoBody))
	empty := decode[EventsResponse](t, w)
	if len(empty.Events) != 0 || empty.LastSeq != resp.LastSeq {
		t.Errorf("unexpected incremental read %+v", empty)
	}
}

func TestGetEventsEmptyListIsArray(t *testing.T) {
	s := newTestServer(t, 16)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/events", http.NoBody))
	if !strings.Contains(w.Body.String(), `"events":[]`) {
		t.Errorf("body = %q, want an empty array", w.Body.String())
	}
}

func TestGetEventsInvalidParams(t *testing.T) {
	s := newTestServer(t, 16)
	for _, q := range []string{"since=abc", "since=-1", "wait=forever", "wait=-1s"} {
		if w := s.do(httptest.NewRequest(http.MethodGet, "/api/events?"+q, http.NoBody)); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestGetEventsLongPoll(t *testing.T) {
	s := newTestServer(t, 16)

	done := make(chan EventsResponse, 1)
	go func() {
		w := s.do(httptest.NewRequest(http.MethodGet, "/api/events?since=0&wait=5s", http.NoBody))
		var resp EventsResponse
		json.NewDecoder(w.Body).Decode(&resp)
		done <- resp
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.orch.SetMode(mediatypes.ModeVideo); err != nil {
		t.Fatal(err)
	}

	select {
	case resp := <-done:
		if len(resp.Events) != 1 || resp.Events[0].Type != conversion.EventMode {
			t.Errorf("events = %+v, want one mode event", resp.Events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not return after an event")
	}
}

func TestGetEventsLongPollTimesOut(t *testing.T) {
	s := newTestServer(t, 16)

	start := time.Now()
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/events?wait=30ms", http.NoBody))
	if time.Since(start) < 30*time.Millisecond {
		t.Error("returned before the wait elapsed")
	}
	if resp := decode[EventsResponse](t, w); len(resp.Events) != 0 {
		t.Errorf("events = %+v, want none", resp.Events)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, 16)
	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestMetricsRouteDisabled(t *testing.T) {
	s := newTestServer(t, 16)
	router := mux.NewRouter()
	cfg := startup.DefaultConfig()
	New(s.orch, nil, &cfg).RegisterRoutes(router, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConvertUnderMemoryPressure(t *testing.T) {
	s := newTestServer(t, 16)

	// Any live heap exceeds a one byte limit.
	monitor := memory.NewMonitor(memory.Config{
		MemoryLimitBytes:  1,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Minute,
	})
	monitor.Check()

	router := mux.NewRouter()
	cfg := startup.DefaultConfig()
	New(s.orch, monitor, &cfg).RegisterRoutes(router, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/convert", "file", "a.heic", "image/heic", []byte("x")))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if job := s.orch.Current(); job.Status != conversion.StatusIdle {
		t.Errorf("job status = %s, want idle", job.Status)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if resp := decode[HealthResponse](t, w); !resp.MemoryPaused || resp.Status != statusDegraded {
		t.Errorf("health = %+v", resp)
	}
}
