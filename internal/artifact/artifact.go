package artifact

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"media-converter/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var log = logging.Component("artifact")

// ErrReleased is returned when reading an artifact whose reference was
// revoked.
var ErrReleased = errors.New("artifact released")

// IDPrefix marks artifact identities the same way browser object URLs do.
const IDPrefix = "blob:"

// Artifact is a converted output blob with a revocable identity.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`

	mu       sync.RWMutex
	data     []byte
	released bool
}

// Bytes returns the artifact payload.
func (a *Artifact) Bytes() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.released {
		return nil, ErrReleased
	}
	return a.data, nil
}

// Open returns a reader over the payload. The reader stays valid after
// the artifact is released.
func (a *Artifact) Open() (io.ReadSeeker, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Released reports whether the artifact's reference has been revoked.
func (a *Artifact) Released() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.released
}

func (a *Artifact) release() {
	a.mu.Lock()
	a.released = true
	a.data = nil
	a.mu.Unlock()
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Observer is notified when the number of live artifacts changes.
type Observer interface {
	ObserveLive(count int)
}

// Store holds the live artifacts and resolves their identities.
type Store struct {
	mu       sync.RWMutex
	live     map[string]*Artifact
	observer Observer
}

// NewStore creates an empty store. observer may be nil.
func NewStore(observer Observer) *Store {
	return &Store{
		live:     make(map[string]*Artifact),
		observer: observer,
	}
}

// Register creates a live artifact for data.
func (s *Store) Register(data []byte, name, mimeType string) *Artifact {
	a := &Artifact{
		ID:        IDPrefix + uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Checksum:  Checksum(data),
		CreatedAt: time.Now().UTC(),
		data:      data,
	}

	s.mu.Lock()
	s.live[a.ID] = a
	n := len(s.live)
	s.mu.Unlock()

	log.Debug("registered %s (%s, %d bytes)", a.ID, a.Name, a.Size)
	s.notify(n)
	return a
}

// Lookup returns the live artifact with the given ID.
func (s *Store) Lookup(id string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.live[id]
	return a, ok
}

// Revoke releases the artifact with the given ID. Revoking an unknown ID
// is a no-op and returns false.
func (s *Store) Revoke(id string) bool {
	s.mu.Lock()
	a, ok := s.live[id]
	if ok {
		delete(s.live, id)
	}
	n := len(s.live)
	s.mu.Unlock()

	if !ok {
		return false
	}
	a.release()
	log.Debug("revoked %s", id)
	s.notify(n)
	return true
}

// Live returns the number of unreleased artifacts.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// Bytes returns the total size of unreleased artifacts.
func (s *Store) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, a := range s.live {
		total += a.Size
	}
	return total
}

func (s *Store) notify(n int) {
	if s.observer != nil {
		s.observer.ObserveLive(n)
	}
}

// Handle owns at most one live artifact at a time.
type Handle struct {
	store *Store

	mu      sync.Mutex
	current *Artifact
}

// NewHandle creates a handle backed by store.
func NewHandle(store *Store) *Handle {
	return &Handle{store: store}
}

// Wrap revokes the artifact the handle currently owns, then registers data
// as the new one.
func (h *Handle) Wrap(data []byte, name, mimeType string) *Artifact {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLocked()
	h.current = h.store.Register(data, name, mimeType)
	return h.current
}

// Release revokes the owned artifact, if any.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
}

// Current returns the owned artifact, or nil.
func (h *Handle) Current() *Artifact {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Handle) releaseLocked() {
	if h.current == nil {
		return
	}
	h.store.Revoke(h.current.ID)
	h.current = nil
}
