package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-converter/internal/logging"
)

var log = logging.Component("engine")

// ErrLoadInProgress is returned by Unload while a load is still pending.
var ErrLoadInProgress = errors.New("engine load in progress")

// State is the lifecycle state of the codec engine.
type State int

const (
	// StateUnloaded means no engine instance exists.
	StateUnloaded State = iota
	// StateLoading means exactly one load is in flight.
	StateLoading
	// StateLoaded means the engine is ready for use.
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProgressFunc receives transcode progress as a ratio in [0,1].
type ProgressFunc func(ratio float64)

// Engine is a loaded transcoding engine with its own working storage
// namespace. Names passed to the storage methods are plain file names.
type Engine interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	DeleteFile(ctx context.Context, name string) error
	// Files lists the entries currently present in working storage.
	Files(ctx context.Context) ([]string, error)
	// Exec runs a transcode command. progress may be nil.
	Exec(ctx context.Context, args []string, progress ProgressFunc) error
	Close() error
}

// Loader performs the slow engine load.
type Loader interface {
	Load(ctx context.Context) (Engine, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Engine, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (Engine, error) {
	return f(ctx)
}

// Observer records engine lifecycle metrics.
type Observer interface {
	ObserveLoad(duration time.Duration, err error)
	ObserveState(state State)
}

// loadCall is the single in-flight load all waiters attach to.
type loadCall struct {
	done chan struct{}
	err  error
}

// Handle owns the engine lifecycle: load once, share the pending load
// between concurrent callers, unload on demand.
type Handle struct {
	loader   Loader
	observer Observer

	mu      sync.Mutex
	state   State
	engine  Engine
	pending *loadCall
}

// NewHandle creates a handle in the Unloaded state. observer may be nil.
func NewHandle(loader Loader, observer Observer) *Handle {
	return &Handle{
		loader:   loader,
		observer: observer,
	}
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Loaded reports whether the engine is ready without triggering a load.
func (h *Handle) Loaded() bool {
	return h.State() == StateLoaded
}

// EnsureLoaded returns the loaded engine, loading it first if needed.
//
// Concurrent callers share one load. The load runs detached from the
// caller's context, so a caller giving up does not fail the other waiters.
// On failure the handle returns to Unloaded and every waiter receives the
// error; the next call starts a fresh load.
func (h *Handle) EnsureLoaded(ctx context.Context) (Engine, error) {
	h.mu.Lock()
	switch h.state {
	case StateLoaded:
		eng := h.engine
		h.mu.Unlock()
		return eng, nil
	case StateUnloaded:
		h.startLoadLocked(ctx)
	}
	call := h.pending
	h.mu.Unlock()

	select {
	case <-call.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if call.err != nil {
		return nil, call.err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return nil, fmt.Errorf("engine unloaded after load completed")
	}
	return h.engine, nil
}

// Warmup starts a background load if the engine is Unloaded. Failures are
// logged only; they surface again when a job calls EnsureLoaded.
func (h *Handle) Warmup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateUnloaded {
		return
	}
	call := h.startLoadLocked(context.Background())
	go func() {
		<-call.done
		if call.err != nil {
			log.Warn("warm-up failed: %v", call.err)
		}
	}()
}

// Unload tears the engine down. It is a no-op when already unloaded and
// returns ErrLoadInProgress while a load is pending.
func (h *Handle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateLoading:
		return ErrLoadInProgress
	case StateUnloaded:
		return nil
	}

	err := h.engine.Close()
	h.engine = nil
	h.setStateLocked(StateUnloaded)
	log.Info("unloaded")
	return err
}

func (h *Handle) startLoadLocked(ctx context.Context) *loadCall {
	call := &loadCall{done: make(chan struct{})}
	h.pending = call
	h.setStateLocked(StateLoading)

	loadCtx := context.WithoutCancel(ctx)
	go h.load(loadCtx, call)
	return call
}

func (h *Handle) load(ctx context.Context, call *loadCall) {
	start := time.Now()
	log.Info("loading")

	eng, err := h.loader.Load(ctx)
	duration := time.Since(start)

	h.mu.Lock()
	if err != nil {
		call.err = fmt.Errorf("load engine: %w", err)
		h.setStateLocked(StateUnloaded)
		log.Error("load failed after %v: %v", duration, err)
	} else {
		h.engine = eng
		h.setStateLocked(StateLoaded)
		log.Info("loaded in %v", duration)
	}
	h.pending = nil
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.ObserveLoad(duration, err)
	}
	close(call.done)
}

func (h *Handle) setStateLocked(s State) {
	h.state = s
	if h.observer != nil {
		h.observer.ObserveState(s)
	}
}
