package conversion

import (
	"sync"

	"media-converter/internal/mediatypes"
)

// ModeContext tracks the active conversion pipeline and the file rules
// that come with it.
type ModeContext struct {
	mu      sync.RWMutex
	profile mediatypes.Profile
}

// NewModeContext starts in mode m.
func NewModeContext(m mediatypes.Mode) (*ModeContext, error) {
	p, ok := mediatypes.ProfileFor(m)
	if !ok {
		return nil, mediatypes.ErrUnknownMode
	}
	return &ModeContext{profile: p}, nil
}

// Mode returns the active mode.
func (c *ModeContext) Mode() mediatypes.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile.Mode
}

// Profile returns the file rules of the active mode.
func (c *ModeContext) Profile() mediatypes.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// Set switches to mode m and reports whether anything changed.
func (c *ModeContext) Set(m mediatypes.Mode) (bool, error) {
	p, ok := mediatypes.ProfileFor(m)
	if !ok {
		return false, mediatypes.ErrUnknownMode
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile.Mode == m {
		return false, nil
	}
	c.profile = p
	return true, nil
}
