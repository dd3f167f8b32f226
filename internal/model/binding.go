// Package model holds the binding definition shared by the engine, the
// store and the preset codec, plus the error taxonomy of the core.
package model

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
)

// SupportedExts lists the file extensions a binding may reference.
var SupportedExts = []string{".wav", ".ogg", ".mp3", ".flac", ".aac", ".m4a"}

// Binding maps one chord to a pool of audio files. Hotkey is its identity.
// Cursor is the persisted selection state the binding starts from when it
// is registered; the live cursor is owned by the engine.
type Binding struct {
	Hotkey       string
	Chord        keys.Chord
	Files        []string
	Mode         selection.Mode
	Volume       float64
	AllowOverlap bool
	Device       string
	Cursor       selection.Cursor
}

// NewBinding returns a binding with the defaults of a freshly created
// mapping: random mode, full volume, overlap allowed.
func NewBinding(hotkey string, chord keys.Chord, files ...string) Binding {
	return Binding{
		Hotkey:       hotkey,
		Chord:        chord,
		Files:        files,
		Mode:         selection.Random,
		Volume:       1.0,
		AllowOverlap: true,
	}
}

func (b Binding) ID() string { return b.Hotkey }

// Clone returns a copy that shares no slices with b.
func (b Binding) Clone() Binding {
	b.Chord = slices.Clone(b.Chord)
	b.Files = slices.Clone(b.Files)
	b.Cursor = b.Cursor.Clone()
	return b
}

// Validate checks the invariants the runtime relies on.
func (b Binding) Validate() error {
	invalid := func(field, reason string) error {
		return &ValidationError{Hotkey: b.Hotkey, Field: field, Reason: reason}
	}

	if strings.TrimSpace(b.Hotkey) == "" {
		return invalid("hotkey", "label is empty")
	}
	if b.Chord.Empty() {
		return invalid("key_combination", "no keys captured")
	}
	if len(b.Files) == 0 {
		return invalid("files", "at least one audio file is required")
	}
	for _, f := range b.Files {
		if strings.TrimSpace(f) == "" {
			return invalid("files", "empty path")
		}
		if !IsSupportedFile(f) {
			return invalid("files", fmt.Sprintf("unsupported file type %q", filepath.Ext(f)))
		}
	}
	if !b.Mode.Valid() {
		return invalid("mode", fmt.Sprintf("unknown mode %d", int(b.Mode)))
	}
	if math.IsNaN(b.Volume) || b.Volume < 0 || b.Volume > 1 {
		return invalid("volume", fmt.Sprintf("%v is outside [0, 1]", b.Volume))
	}
	return nil
}

// IsSupportedFile reports whether path has one of SupportedExts.
func IsSupportedFile(path string) bool {
	return slices.Contains(SupportedExts, strings.ToLower(filepath.Ext(path)))
}

// ValidateSet validates every binding and rejects duplicate hotkeys.
func ValidateSet(bindings []Binding) error {
	seen := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, dup := seen[b.Hotkey]; dup {
			return &ValidationError{Hotkey: b.Hotkey, Field: "hotkey", Reason: "already in use"}
		}
		seen[b.Hotkey] = struct{}{}
	}
	return nil
}

// Overlap names two bindings where Inner's chord is contained in Outer's.
// Pressing Outer's chord activates both.
type Overlap struct {
	Inner string
	Outer string
}

// FindOverlaps lists chord containments between bindings so editors can
// warn about them. Identical chords are reported once.
func FindOverlaps(bindings []Binding) []Overlap {
	var out []Overlap
	for i, a := range bindings {
		for j, b := range bindings {
			if i == j || a.Chord.Empty() {
				continue
			}
			if !a.Chord.SubsetOf(b.Chord) {
				continue
			}
			if a.Chord.Equal(b.Chord) && i > j {
				continue
			}
			out = append(out, Overlap{Inner: a.Hotkey, Outer: b.Hotkey})
		}
	}
	return out
}
