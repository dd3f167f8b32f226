package keys

import (
	"fmt"
	"slices"
	"strings"
)

// Chord is a set of tokens that must all be held at once.
// It is kept sorted and free of duplicates and None.
type Chord []Token

// NewChord builds a chord from tokens, dropping None and duplicates.
func NewChord(tokens ...Token) Chord {
	c := make(Chord, 0, len(tokens))
	for _, t := range tokens {
		if t.IsNone() {
			continue
		}
		c = append(c, t)
	}
	slices.Sort(c)
	return slices.Compact(c)
}

// ParseChord parses token strings (canonical or shorthand) into a chord.
func (n Normalizer) ParseChord(items []string) (Chord, error) {
	tokens := make([]Token, 0, len(items))
	for _, item := range items {
		t, err := n.Parse(item)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return NewChord(tokens...), nil
}

// ParseChord parses items keeping modifier sides distinct.
func ParseChord(items []string) (Chord, error) {
	return Normalizer{}.ParseChord(items)
}

// ParseCombo parses a "+"-separated combination such as "ctrl_l+shift_l+a".
func (n Normalizer) ParseCombo(combo string) (Chord, error) {
	parts := strings.Split(combo, "+")
	if len(parts) == 1 && strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("empty key combination")
	}
	return n.ParseChord(parts)
}

// Empty reports whether the chord has no tokens. An empty chord never fires.
func (c Chord) Empty() bool { return len(c) == 0 }

// Contains reports whether t is part of the chord.
func (c Chord) Contains(t Token) bool {
	_, found := slices.BinarySearch(c, t)
	return found
}

// SatisfiedBy reports whether every token of a non-empty chord is in pressed.
func (c Chord) SatisfiedBy(pressed map[Token]struct{}) bool {
	if len(c) == 0 {
		return false
	}
	for _, t := range c {
		if _, ok := pressed[t]; !ok {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every token of c is also in other.
func (c Chord) SubsetOf(other Chord) bool {
	for _, t := range c {
		if !other.Contains(t) {
			return false
		}
	}
	return true
}

// Equal reports whether both chords hold the same tokens.
func (c Chord) Equal(other Chord) bool {
	return slices.Equal(c, other)
}

// Strings returns the canonical token strings, in order.
func (c Chord) Strings() []string {
	out := make([]string, len(c))
	for i, t := range c {
		out[i] = string(t)
	}
	return out
}

func (c Chord) String() string {
	return strings.Join(c.Strings(), "+")
}

// Label renders a display name like "ctrl+shift+A": modifiers first, sorted
// by label, then the remaining keys.
func (c Chord) Label() string {
	var mods, rest []string
	for _, t := range c {
		if t.IsModifier() {
			mods = append(mods, t.Label())
		} else {
			rest = append(rest, t.Label())
		}
	}
	slices.Sort(mods)
	mods = slices.Compact(mods)
	return strings.Join(append(mods, rest...), "+")
}
