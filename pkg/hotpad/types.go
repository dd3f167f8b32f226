package hotpad

import (
	"fmt"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
)

// Binding is a hotkey mapping as seen by callers of the service.
type Binding struct {
	Hotkey       string   // Display label and identity; derived from Keys when empty
	Keys         []string // Canonical tokens ("key:ctrl_l", "vk:49") or shorthand ("ctrl_l", "1")
	Files        []string // Audio files, absolute paths preferred
	Mode         string   // "random", "round_robin" or "shuffle"
	Volume       float64  // 0.0 - 1.0
	AllowOverlap bool
	Device       string // Output device override, "" for the selected device

	// Filled in by ListBindings.
	KeyLabel string
	RRIndex  int
	Queued   int // shuffle picks left before the next reshuffle
}

// NewBinding returns a binding with the defaults of a new mapping.
func NewBinding(hotkey string, keyList []string, files ...string) Binding {
	return Binding{
		Hotkey:       hotkey,
		Keys:         keyList,
		Files:        files,
		Mode:         selection.Random.String(),
		Volume:       1.0,
		AllowOverlap: true,
	}
}

func (b Binding) toModel(norm keys.Normalizer) (model.Binding, error) {
	chord, err := norm.ParseChord(b.Keys)
	if err != nil {
		return model.Binding{}, &model.ValidationError{Hotkey: b.Hotkey, Field: "key_combination", Reason: err.Error()}
	}
	mode, err := selection.ParseMode(b.Mode)
	if err != nil {
		return model.Binding{}, &model.ValidationError{Hotkey: b.Hotkey, Field: "mode", Reason: err.Error()}
	}

	hotkey := b.Hotkey
	if hotkey == "" {
		hotkey = chord.Label()
	}

	m := model.NewBinding(hotkey, chord, b.Files...)
	m.Mode = mode
	m.Volume = b.Volume
	m.AllowOverlap = b.AllowOverlap
	m.Device = b.Device
	return m, m.Validate()
}

func fromModel(m model.Binding) Binding {
	return Binding{
		Hotkey:       m.Hotkey,
		Keys:         m.Chord.Strings(),
		Files:        m.Files,
		Mode:         m.Mode.String(),
		Volume:       m.Volume,
		AllowOverlap: m.AllowOverlap,
		Device:       m.Device,
		KeyLabel:     m.Chord.Label(),
		RRIndex:      m.Cursor.RRIndex,
		Queued:       len(m.Cursor.Remaining()),
	}
}

func (b Binding) String() string {
	return fmt.Sprintf("%s [%s] %s, %d file(s)", b.Hotkey, b.KeyLabel, b.Mode, len(b.Files))
}
