package conversion

import (
	"sync"
	"time"

	"media-converter/internal/mediatypes"
)

// EventType classifies lifecycle events.
type EventType string

const (
	EventValidating EventType = "validating"
	EventPreparing  EventType = "preparing"
	EventRunning    EventType = "running"
	EventSucceeded  EventType = "succeeded"
	EventFailed     EventType = "failed"
	EventReset      EventType = "reset"
	EventMode       EventType = "mode"
)

// Event is a sequenced lifecycle notification.
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	JobID     string          `json:"jobId,omitempty"`
	Type      EventType       `json:"type"`
	Mode      mediatypes.Mode `json:"mode"`
	Progress  *int            `json:"progress,omitempty"`
	Message   string          `json:"message,omitempty"`

	ArtifactID string `json:"artifactId,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Size       int64  `json:"size,omitempty"`

	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}

// EventBus stores recent events for incremental reads and fans them out
// to subscribers. Each subscriber receives events in publish order on its
// own goroutine, so a slow subscriber never blocks Publish.
type EventBus struct {
	mu          sync.RWMutex
	nextSeq     int64
	maxEvents   int
	events      []Event
	subscribers map[int]*subscriber
	nextSubID   int
	closed      bool
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventBus{
		maxEvents:   maxEvents,
		events:      make([]Event, 0, maxEvents),
		subscribers: make(map[int]*subscriber),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// Reslice from the front; append reallocates when capacity runs out.
	b.events = append(b.events, event)
	if trim := len(b.events) - b.maxEvents; trim > 0 {
		clear(b.events[:trim])
		b.events = b.events[trim:]
	}

	if !b.closed {
		for _, s := range b.subscribers {
			s.push(event)
		}
	}
	return event
}

// Since returns buffered events with sequence greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.events))
	for _, e := range b.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// LastSeq returns the sequence number of the most recent event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Subscribe registers fn for every event published from now on. The
// returned function unsubscribes; events already queued are dropped.
func (b *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	s := &subscriber{
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = s
	b.mu.Unlock()

	go s.run()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
		s.stop()
	}
}

// Close stops delivery to all subscribers. Buffered events stay readable
// through Since.
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

type subscriber struct {
	fn     func(Event)
	notify chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	queue    []Event
	stopOnce sync.Once
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(e)
		}
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
