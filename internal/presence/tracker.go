// Package presence tracks which conversation the user is looking at.
package presence

import (
	"sync"

	"github.com/matheus3301/lnchat/internal/bus"
)

// Change is published as a presence.changed payload when focus or
// visibility changes.
type Change struct {
	Focused string
	Visible bool
}

// Tracker holds the focused conversation and whether a client is showing
// it. A fresh tracker has no focus and is not visible.
type Tracker struct {
	mu      sync.RWMutex
	focused string
	visible bool
	bus     *bus.Bus
}

// NewTracker creates a tracker. b may be nil.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{bus: b}
}

// Focus marks pubkey as the open conversation. An empty pubkey clears it.
func (t *Tracker) Focus(pubkey string) {
	t.mu.Lock()
	t.focused = pubkey
	c := Change{Focused: t.focused, Visible: t.visible}
	t.mu.Unlock()
	t.bus.Emit(bus.KindPresenceChanged, c)
}

// SetVisible records whether a client is in the foreground.
func (t *Tracker) SetVisible(visible bool) {
	t.mu.Lock()
	t.visible = visible
	c := Change{Focused: t.focused, Visible: t.visible}
	t.mu.Unlock()
	t.bus.Emit(bus.KindPresenceChanged, c)
}

// Focused returns the focused conversation, or "".
func (t *Tracker) Focused() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.focused
}

// Visible reports whether a client is in the foreground.
func (t *Tracker) Visible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visible
}

// IsActive reports whether pubkey is focused in a visible client.
func (t *Tracker) IsActive(pubkey string) bool {
	if pubkey == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visible && t.focused == pubkey
}
