// Package chord turns a stream of key-down/key-up tokens into binding
// activations.
//
// A binding activates the instant its chord becomes a subset of the pressed
// keys and re-arms once any of its keys is released. Overlapping chords are
// not disambiguated: when "ctrl+a" and "ctrl+shift+a" are both satisfied,
// both activate.
package chord

import (
	"sync"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
)

// Entry is one registered chord.
type Entry struct {
	ID    string
	Chord keys.Chord
}

type slot struct {
	id     string
	chord  keys.Chord
	active bool
}

// Matcher tracks pressed keys and per-binding activation state.
// It is safe for concurrent use; every call is O(registered bindings).
type Matcher struct {
	mu      sync.Mutex
	pressed map[keys.Token]struct{}
	slots   []*slot
}

func NewMatcher() *Matcher {
	return &Matcher{pressed: make(map[keys.Token]struct{})}
}

// Register replaces the whole binding set at once. A binding whose id and
// chord are unchanged keeps its activation state, so a chord held across an
// edit does not fire again; every other binding starts inactive.
func (m *Matcher) Register(entries []Entry) {
	slots := make([]*slot, 0, len(entries))
	for _, e := range entries {
		slots = append(slots, &slot{id: e.ID, chord: e.Chord})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := make(map[string]*slot, len(m.slots))
	for _, s := range m.slots {
		prev[s.id] = s
	}
	for _, s := range slots {
		if old, ok := prev[s.id]; ok && old.chord.Equal(s.chord) {
			s.active = old.active
		}
	}
	m.slots = slots
}

// OnKeyDown records tok as pressed and returns the ids of every inactive
// binding whose chord is now fully held, marking them active.
func (m *Matcher) OnKeyDown(tok keys.Token) []string {
	if tok.IsNone() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pressed[tok] = struct{}{}

	var fired []string
	for _, s := range m.slots {
		if s.active || !s.chord.SatisfiedBy(m.pressed) {
			continue
		}
		s.active = true
		fired = append(fired, s.id)
	}
	return fired
}

// OnKeyUp records tok as released and re-arms every binding containing it.
func (m *Matcher) OnKeyUp(tok keys.Token) {
	if tok.IsNone() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pressed, tok)
	for _, s := range m.slots {
		if s.active && s.chord.Contains(tok) {
			s.active = false
		}
	}
}

// Reset forgets pressed keys and re-arms every binding. Used when the key
// source restarts and key-up events may have been lost.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.pressed)
	for _, s := range m.slots {
		s.active = false
	}
}

// Pressed returns the currently held tokens in sorted order.
func (m *Matcher) Pressed() keys.Chord {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := make([]keys.Token, 0, len(m.pressed))
	for t := range m.pressed {
		tokens = append(tokens, t)
	}
	return keys.NewChord(tokens...)
}

// Active reports whether the binding id is currently latched.
func (m *Matcher) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if s.id == id {
			return s.active
		}
	}
	return false
}

// Len returns the number of registered bindings.
func (m *Matcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
