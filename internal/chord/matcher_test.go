package chord

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
)

const (
	ctrl  keys.Token = "key:ctrl_l"
	shift keys.Token = "key:shift_l"
	keyA  keys.Token = "vk:65"
	keyB  keys.Token = "vk:66"
)

func newMatcher(entries ...Entry) *Matcher {
	m := NewMatcher()
	m.Register(entries)
	return m
}

func TestActivatesOnceWhileHeld(t *testing.T) {
	m := newMatcher(Entry{ID: "ctrl+A", Chord: keys.NewChord(ctrl, keyA)})

	assert.Empty(t, m.OnKeyDown(ctrl))
	assert.Equal(t, []string{"ctrl+A"}, m.OnKeyDown(keyA))

	// Auto-repeat and unrelated keys must not re-trigger.
	assert.Empty(t, m.OnKeyDown(keyA))
	assert.Empty(t, m.OnKeyDown(keyB))
	assert.True(t, m.Active("ctrl+A"))

	m.OnKeyUp(keyA)
	assert.False(t, m.Active("ctrl+A"))
	assert.Equal(t, []string{"ctrl+A"}, m.OnKeyDown(keyA))
}

func TestReleasingUnrelatedKeyDoesNotRearm(t *testing.T) {
	m := newMatcher(Entry{ID: "x", Chord: keys.NewChord(ctrl, keyA)})
	m.OnKeyDown(ctrl)
	m.OnKeyDown(keyA)
	m.OnKeyDown(keyB)
	m.OnKeyUp(keyB)
	assert.Empty(t, m.OnKeyDown(keyB))
	assert.True(t, m.Active("x"))
}

func TestOrderOfPressDoesNotMatter(t *testing.T) {
	m := newMatcher(Entry{ID: "x", Chord: keys.NewChord(ctrl, keyA)})
	assert.Empty(t, m.OnKeyDown(keyA))
	assert.Equal(t, []string{"x"}, m.OnKeyDown(ctrl))
}

func TestNoneTokenIgnored(t *testing.T) {
	m := newMatcher(Entry{ID: "x", Chord: keys.NewChord(keyA)})
	assert.Empty(t, m.OnKeyDown(keys.None))
	m.OnKeyUp(keys.None)
	assert.Empty(t, m.Pressed())
}

func TestEmptyChordNeverActivates(t *testing.T) {
	m := newMatcher(Entry{ID: "broken", Chord: nil})
	assert.Empty(t, m.OnKeyDown(ctrl))
	assert.Empty(t, m.OnKeyDown(keyA))
}

func TestOverlappingChordsBothActivate(t *testing.T) {
	m := newMatcher(
		Entry{ID: "ctrl+A", Chord: keys.NewChord(ctrl, keyA)},
		Entry{ID: "ctrl+shift+A", Chord: keys.NewChord(ctrl, shift, keyA)},
	)

	m.OnKeyDown(ctrl)
	m.OnKeyDown(shift)
	assert.ElementsMatch(t, []string{"ctrl+A", "ctrl+shift+A"}, m.OnKeyDown(keyA))

	// Releasing shift re-arms only the larger chord.
	m.OnKeyUp(shift)
	assert.True(t, m.Active("ctrl+A"))
	assert.Equal(t, []string{"ctrl+shift+A"}, m.OnKeyDown(shift))
}

func TestSubsetFiresFirstWhenPressedIncrementally(t *testing.T) {
	m := newMatcher(
		Entry{ID: "ctrl+A", Chord: keys.NewChord(ctrl, keyA)},
		Entry{ID: "ctrl+shift+A", Chord: keys.NewChord(ctrl, shift, keyA)},
	)
	m.OnKeyDown(ctrl)
	assert.Equal(t, []string{"ctrl+A"}, m.OnKeyDown(keyA))
	assert.Equal(t, []string{"ctrl+shift+A"}, m.OnKeyDown(shift))
}

func TestRegisterKeepsLatchForUnchangedBinding(t *testing.T) {
	chordA := keys.NewChord(ctrl, keyA)
	m := newMatcher(Entry{ID: "x", Chord: chordA})
	m.OnKeyDown(ctrl)
	m.OnKeyDown(keyA)

	m.Register([]Entry{{ID: "x", Chord: chordA}, {ID: "y", Chord: keys.NewChord(keyB)}})
	assert.True(t, m.Active("x"))
	assert.Empty(t, m.OnKeyDown(ctrl), "held chord must not re-fire after an edit")
	assert.Equal(t, 2, m.Len())
}

func TestRegisterResetsChangedBinding(t *testing.T) {
	m := newMatcher(Entry{ID: "x", Chord: keys.NewChord(ctrl, keyA)})
	m.OnKeyDown(ctrl)
	m.OnKeyDown(keyA)

	m.Register([]Entry{{ID: "x", Chord: keys.NewChord(keyA)}})
	assert.False(t, m.Active("x"))
	assert.Equal(t, []string{"x"}, m.OnKeyDown(keyA))
}

func TestRegisterDropsRemovedBindings(t *testing.T) {
	m := newMatcher(Entry{ID: "x", Chord: keys.NewChord(keyA)})
	m.Register(nil)
	assert.Empty(t, m.OnKeyDown(keyA))
	assert.False(t, m.Active("x"))
}

func TestReset(t *testing.T) {
	m := newMatcher(Entry{ID: "x", Chord: keys.NewChord(keyA)})
	m.OnKeyDown(keyA)
	m.Reset()
	assert.Empty(t, m.Pressed())
	assert.Equal(t, []string{"x"}, m.OnKeyDown(keyA))
}

// For random press/release sequences, a binding fires at most once per
// continuous hold of its full chord.
func TestAtMostOncePerHold(t *testing.T) {
	pool := []keys.Token{ctrl, shift, keyA, keyB}
	chordAB := keys.NewChord(keyA, keyB)
	rng := rand.New(rand.NewPCG(5, 8))

	for run := 0; run < 50; run++ {
		m := newMatcher(Entry{ID: "ab", Chord: chordAB})
		held := map[keys.Token]bool{}
		armed := true

		for step := 0; step < 200; step++ {
			tok := pool[rng.IntN(len(pool))]
			if held[tok] && rng.IntN(2) == 0 {
				held[tok] = false
				m.OnKeyUp(tok)
				if chordAB.Contains(tok) {
					armed = true
				}
				continue
			}
			held[tok] = true
			fired := m.OnKeyDown(tok)
			full := held[keyA] && held[keyB]
			if full && armed {
				require.Equal(t, []string{"ab"}, fired, "run %d step %d", run, step)
				armed = false
			} else {
				require.Empty(t, fired, "run %d step %d", run, step)
			}
		}
	}
}
