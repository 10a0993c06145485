package conversion

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"media-converter/internal/artifact"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"

	"github.com/google/uuid"
)

var log = logging.Component("conversion")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("orchestrator closed")

// Job outcomes reported to the Observer.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Observer receives job lifecycle notifications, typically for metrics.
type Observer interface {
	JobStarted(mode mediatypes.Mode)
	JobFinished(mode mediatypes.Mode, outcome string, duration time.Duration)
	StaleResult(mode mediatypes.Mode)
}

type noopObserver struct{}

func (noopObserver) JobStarted(mediatypes.Mode) {}

func (noopObserver) JobFinished(mediatypes.Mode, string, time.Duration) {}

func (noopObserver) StaleResult(mediatypes.Mode) {}

// Options configures an Orchestrator.
type Options struct {
	Engine    EngineHandle
	Images    ImageConverter
	Artifacts *artifact.Store
	Observer  Observer

	// Mode is the initial mode; defaults to image.
	Mode mediatypes.Mode
	// Language selects message text, e.g. "ko" or "en".
	Language string
	// WarmupOnVideo starts loading the engine when switching to video mode.
	WarmupOnVideo bool
	// MaxEvents bounds the event history kept for Events.
	MaxEvents int
}

// State is a point-in-time view for front ends.
type State struct {
	Mode    mediatypes.Mode `json:"mode"`
	UI      UIProfile       `json:"ui"`
	Job     Job             `json:"job"`
	Engine  string          `json:"engine"`
	LastSeq int64           `json:"lastSeq"`
}

// run tracks completion of one submitted job.
type run struct {
	done  chan struct{}
	final Job
}

// Orchestrator sequences conversions. At most one job is active; a new
// submission, a reset or a mode change discards the current one.
type Orchestrator struct {
	engine   EngineHandle
	images   ImageConverter
	store    *artifact.Store
	result   *artifact.Handle
	modes    *ModeContext
	msgs     Messages
	observer Observer
	bus      *EventBus
	warmup   bool
	video    videoPipeline

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	job    Job
	run    *run
	closed bool
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine handle is required")
	}
	if opts.Images == nil {
		return nil, errors.New("image converter is required")
	}
	if opts.Mode == "" {
		opts.Mode = mediatypes.ModeImage
	}
	modes, err := NewModeContext(opts.Mode)
	if err != nil {
		return nil, err
	}
	if opts.Artifacts == nil {
		opts.Artifacts = artifact.NewStore(nil)
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		engine:   opts.Engine,
		images:   opts.Images,
		store:    opts.Artifacts,
		result:   artifact.NewHandle(opts.Artifacts),
		modes:    modes,
		msgs:     NewMessages(opts.Language),
		observer: opts.Observer,
		bus:      NewEventBus(opts.MaxEvents),
		warmup:   opts.WarmupOnVideo,
		ctx:      ctx,
		cancel:   cancel,
		job:      Job{Mode: opts.Mode, Status: StatusIdle},
	}, nil
}

// Submit discards any current job and starts converting file in the
// active mode. Validation happens before Submit returns; the conversion
// continues in the background and reports through events.
func (o *Orchestrator) Submit(file SourceFile) (Job, error) {
	job, _, err := o.submit(file)
	return job, err
}

// Convert submits file and waits for the job to finish.
func (o *Orchestrator) Convert(ctx context.Context, file SourceFile) (Job, error) {
	job, r, err := o.submit(file)
	if err != nil || !job.Status.Active() {
		return job, err
	}
	return o.wait(ctx, r)
}

func (o *Orchestrator) submit(file SourceFile) (Job, *run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return Job{}, nil, ErrClosed
	}
	o.resetLocked()

	profile := o.modes.Profile()
	o.job = Job{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Mode:       profile.Mode,
		Status:     StatusValidating,
		SourceName: file.Name,
		SourceType: file.Type,
		SourceSize: int64(len(file.Data)),
		StartedAt:  time.Now().UTC(),
	}
	o.run = &run{done: make(chan struct{})}
	r := o.run

	log.Info("job %s: %s %q (%d bytes)", o.job.ID, profile.Mode, file.Name, len(file.Data))
	o.observer.JobStarted(profile.Mode)
	o.publishLocked(Event{Type: EventValidating})

	if !profile.Accepts(file.Name, file.Type) {
		log.Warn("job %s: rejected %q (%s) in %s mode", o.job.ID, file.Name, file.Type, profile.Mode)
		o.failLocked(KindInvalidInput, o.msgs.invalidInput(profile.Mode))
		return o.job, r, nil
	}

	o.wg.Add(1)
	go o.execute(o.job.ID, profile.Mode, file.Data)
	return o.job, r, nil
}

func (o *Orchestrator) execute(id string, mode mediatypes.Mode, data []byte) {
	defer o.wg.Done()

	if mode == mediatypes.ModeImage {
		if !o.advance(id, StatusRunning) {
			return
		}
		out, err := convertImage(o.ctx, o.images, data)
		if err != nil {
			o.fail(id, mode, KindTranscode, o.msgs.imageFailed(err.Error()), err)
			return
		}
		o.succeed(id, mode, out)
		return
	}

	if !o.advance(id, StatusPreparing) {
		return
	}
	eng, err := o.engine.EnsureLoaded(o.ctx)
	if err != nil {
		o.fail(id, mode, KindEngineInit, o.msgs.engineFailed(), err)
		return
	}
	// The job stays preparing while an abandoned job still holds the
	// working names.
	out, err := o.video.run(o.ctx, eng, data, func() bool {
		return o.advance(id, StatusRunning)
	}, func(ratio float64) {
		o.progress(id, ratio)
	})
	if errors.Is(err, errAbandoned) {
		return
	}
	if err != nil {
		o.fail(id, mode, KindTranscode, o.msgs.videoFailed(), err)
		return
	}
	o.succeed(id, mode, out)
}

// currentLocked reports whether id is the job still in flight.
func (o *Orchestrator) currentLocked(id string) bool {
	return o.job.ID == id && o.job.Status.Active()
}

func (o *Orchestrator) setStatusLocked(to Status) bool {
	if !validTransition(o.job.Status, to) {
		log.Error("job %s: invalid transition %s -> %s", o.job.ID, o.job.Status, to)
		return false
	}
	o.job.Status = to
	return true
}

func (o *Orchestrator) advance(id string, to Status) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(id) || !o.setStatusLocked(to) {
		return false
	}

	switch to {
	case StatusPreparing:
		o.publishLocked(Event{Type: EventPreparing, Message: o.msgs.preparingVideo()})
	case StatusRunning:
		if o.job.Mode == mediatypes.ModeVideo {
			zero := 0
			o.publishLocked(Event{Type: EventRunning, Progress: &zero, Message: o.msgs.encodingVideo(0)})
		} else {
			o.publishLocked(Event{Type: EventRunning, Message: o.msgs.converting()})
		}
	}
	return true
}

func (o *Orchestrator) progress(id string, ratio float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(id) || o.job.Status != StatusRunning {
		return
	}
	pct := int(math.Round(ratio * 100))
	o.job.Progress = pct
	o.publishLocked(Event{Type: EventRunning, Progress: &pct, Message: o.msgs.encodingVideo(pct)})
}

func (o *Orchestrator) succeed(id string, mode mediatypes.Mode, out []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(id) {
		o.discardLocked(id, mode)
		return
	}
	if !o.setStatusLocked(StatusSucceeded) {
		return
	}

	profile, _ := mediatypes.ProfileFor(o.job.Mode)
	a := o.result.Wrap(out, profile.OutputName(o.job.SourceName), profile.OutputMimeType)
	o.job.Artifact = a
	o.job.FinishedAt = time.Now().UTC()
	o.job.Message = o.msgs.download(profile.OutputExtension)

	log.Info("job %s: produced %s (%d bytes) in %s", id, a.Name, a.Size, o.job.FinishedAt.Sub(o.job.StartedAt).Round(time.Millisecond))
	o.publishLocked(Event{
		Type:       EventSucceeded,
		Message:    o.job.Message,
		ArtifactID: a.ID,
		FileName:   a.Name,
		MimeType:   a.MimeType,
		Size:       a.Size,
	})
	o.observer.JobFinished(o.job.Mode, OutcomeSucceeded, o.job.FinishedAt.Sub(o.job.StartedAt))
	o.finishRunLocked()
}

func (o *Orchestrator) fail(id string, mode mediatypes.Mode, kind ErrorKind, message string, cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(id) {
		o.discardLocked(id, mode)
		return
	}
	log.Warn("job %s failed (%s): %v", id, kind, cause)
	o.failLocked(kind, message)
}

func (o *Orchestrator) failLocked(kind ErrorKind, message string) {
	if !o.setStatusLocked(StatusFailed) {
		return
	}
	o.job.ErrorKind = kind
	o.job.Message = message
	o.job.FinishedAt = time.Now().UTC()

	o.publishLocked(Event{Type: EventFailed, ErrorKind: kind, Message: message})
	o.observer.JobFinished(o.job.Mode, OutcomeFailed, o.job.FinishedAt.Sub(o.job.StartedAt))
	o.finishRunLocked()
}

// discardLocked drops the late result of a job that is no longer current.
func (o *Orchestrator) discardLocked(id string, mode mediatypes.Mode) {
	log.Info("discarding late result of abandoned job %s", id)
	o.observer.StaleResult(mode)
}

func (o *Orchestrator) finishRunLocked() {
	if o.run == nil {
		return
	}
	o.run.final = o.job
	close(o.run.done)
	o.run = nil
}

// resetLocked releases the artifact and returns to idle. It emits a reset
// event only when a job was discarded.
func (o *Orchestrator) resetLocked() {
	o.result.Release()
	if o.job.Status == StatusIdle {
		return
	}

	if o.job.Status.Active() {
		log.Info("job %s: abandoned while %s", o.job.ID, o.job.Status)
		o.observer.JobFinished(o.job.Mode, OutcomeAbandoned, time.Since(o.job.StartedAt))
	}
	o.job.Status = StatusIdle
	o.finishRunLocked()
	o.publishLocked(Event{Type: EventReset})
	o.job = Job{Mode: o.modes.Mode(), Status: StatusIdle}
}

func (o *Orchestrator) publishLocked(e Event) {
	if e.JobID == "" {
		e.JobID = o.job.ID
	}
	if e.Mode == "" {
		e.Mode = o.job.Mode
	}
	o.bus.Publish(e)
}

// Reset discards the current job and its artifact. The engine stays
// loaded. Resetting an idle orchestrator does nothing.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

// SetMode switches the active pipeline. Switching to the current mode is
// a no-op; any other switch resets the current job.
func (o *Orchestrator) SetMode(m mediatypes.Mode) error {
	o.mu.Lock()
	changed, err := o.modes.Set(m)
	if err != nil || !changed {
		o.mu.Unlock()
		return err
	}
	o.resetLocked()
	o.job.Mode = m
	o.publishLocked(Event{Type: EventMode, Mode: m})
	o.mu.Unlock()

	log.Info("mode set to %s", m)
	if m == mediatypes.ModeVideo && o.warmup {
		o.engine.Warmup()
	}
	return nil
}

// Mode returns the active mode.
func (o *Orchestrator) Mode() mediatypes.Mode {
	return o.modes.Mode()
}

// UIProfile returns localized picker text for the active mode.
func (o *Orchestrator) UIProfile() UIProfile {
	return o.msgs.UIProfile(o.modes.Mode())
}

// Current returns a snapshot of the current job.
func (o *Orchestrator) Current() Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

// State returns the mode, job and engine state together.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	job := o.job
	o.mu.Unlock()

	return State{
		Mode:    job.Mode,
		UI:      o.msgs.UIProfile(job.Mode),
		Job:     job,
		Engine:  o.engine.State().String(),
		LastSeq: o.bus.LastSeq(),
	}
}

// Wait blocks until the current job leaves its active stages and returns
// its final snapshot. An abandoned job is returned with status idle.
func (o *Orchestrator) Wait(ctx context.Context) (Job, error) {
	o.mu.Lock()
	r, job := o.run, o.job
	o.mu.Unlock()

	if r == nil || !job.Status.Active() {
		return job, nil
	}
	return o.wait(ctx, r)
}

func (o *Orchestrator) wait(ctx context.Context, r *run) (Job, error) {
	select {
	case <-r.done:
		o.mu.Lock()
		defer o.mu.Unlock()
		return r.final, nil
	case <-ctx.Done():
		return o.Current(), ctx.Err()
	}
}

// Events returns buffered events with sequence greater than since.
func (o *Orchestrator) Events(since int64) []Event {
	return o.bus.Since(since)
}

// Subscribe delivers every future event to fn, in order.
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return o.bus.Subscribe(fn)
}

// Artifacts returns the store that resolves artifact identities.
func (o *Orchestrator) Artifacts() *artifact.Store {
	return o.store
}

// Closed reports whether Close has been called.
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Close discards the current job, waits for background work to stop and
// ends event delivery.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.resetLocked()
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	o.bus.Close()
}
