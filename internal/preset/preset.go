// Package preset reads and writes the JSON preset file:
//
//	{
//	  "selected_device": "Speakers",
//	  "mappings": {
//	    "Ctrl + 1": {"hotkey": "Ctrl + 1", "files": [...], "mode": "round_robin", ...}
//	  }
//	}
//
// Mapping order in the file is preserved on both read and write.
package preset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
	"github.com/himanishpuri/HotRandomPad/pkg/utils"
)

type Preset struct {
	SelectedDevice string
	Bindings       []model.Binding
	// Warnings lists mappings that were skipped or repaired while decoding.
	Warnings []error
}

type mapping struct {
	Hotkey             string   `json:"hotkey"`
	Files              []string `json:"files"`
	Volume             *float64 `json:"volume,omitempty"`
	AllowOverlap       *bool    `json:"allow_overlap,omitempty"`
	Mode               string   `json:"mode,omitempty"`
	KeyCombination     []string `json:"key_combination"`
	Device             string   `json:"device,omitempty"`
	SavedRRIndex       int      `json:"saved_rr_index"`
	SavedShuffledFiles []string `json:"saved_shuffled_files"`
	SavedShuffledIndex int      `json:"saved_shuffled_index"`
}

type document struct {
	SelectedDevice *string         `json:"selected_device"`
	Mappings       json.RawMessage `json:"mappings"`
}

// Decode parses a preset. Mappings that cannot become a valid binding are
// dropped and reported in Preset.Warnings; only a malformed document is an error.
func Decode(r io.Reader, norm keys.Normalizer) (*Preset, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing preset: %w", err)
	}

	p := &Preset{}
	if doc.SelectedDevice != nil {
		p.SelectedDevice = *doc.SelectedDevice
	}
	if len(doc.Mappings) == 0 || string(doc.Mappings) == "null" {
		return p, nil
	}

	names, raws, err := orderedObject(doc.Mappings)
	if err != nil {
		return nil, fmt.Errorf("parsing mappings: %w", err)
	}

	seen := make(map[string]bool, len(names))
	for i, name := range names {
		var m mapping
		if err := json.Unmarshal(raws[i], &m); err != nil {
			p.Warnings = append(p.Warnings, fmt.Errorf("mapping %q: %w", name, err))
			continue
		}
		b, warn := m.toBinding(name, norm)
		if warn != nil {
			p.Warnings = append(p.Warnings, warn)
		}
		if err := b.Validate(); err != nil {
			p.Warnings = append(p.Warnings, err)
			continue
		}
		if seen[b.Hotkey] {
			p.Warnings = append(p.Warnings, &model.ValidationError{Hotkey: b.Hotkey, Field: "hotkey", Reason: "duplicate label"})
			continue
		}
		seen[b.Hotkey] = true
		p.Bindings = append(p.Bindings, b)
	}
	return p, nil
}

func (m mapping) toBinding(key string, norm keys.Normalizer) (model.Binding, error) {
	hotkey := m.Hotkey
	if hotkey == "" {
		hotkey = key
	}

	var warn error
	chord, err := norm.ParseChord(m.KeyCombination)
	if err != nil {
		warn = &model.ValidationError{Hotkey: hotkey, Field: "key_combination", Reason: err.Error()}
		chord = nil
	}

	b := model.NewBinding(hotkey, chord, m.Files...)
	if m.Mode != "" {
		mode, err := selection.ParseMode(m.Mode)
		if err != nil {
			warn = errors.Join(warn, fmt.Errorf("mapping %q: %w, using random", hotkey, err))
		} else {
			b.Mode = mode
		}
	}
	if m.Volume != nil {
		b.Volume = *m.Volume
	}
	if m.AllowOverlap != nil {
		b.AllowOverlap = *m.AllowOverlap
	}
	b.Device = m.Device
	b.Cursor = selection.Cursor{
		RRIndex: m.SavedRRIndex,
		Queue:   m.SavedShuffledFiles,
		Pos:     m.SavedShuffledIndex,
	}
	return b, warn
}

// orderedObject splits a JSON object into its keys and raw values in
// document order.
func orderedObject(data []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected an object")
	}

	var (
		names []string
		raws  []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		raws = append(raws, raw)
	}
	return names, raws, nil
}

// orderedMappings marshals as an object whose keys follow slice order.
type orderedMappings []mapping

func (om orderedMappings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range om {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Hotkey)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode writes p as indented JSON, including each binding's cursor.
func Encode(w io.Writer, p *Preset) error {
	out := struct {
		SelectedDevice *string         `json:"selected_device"`
		Mappings       orderedMappings `json:"mappings"`
	}{Mappings: orderedMappings{}}

	if p.SelectedDevice != "" {
		dev := p.SelectedDevice
		out.SelectedDevice = &dev
	}
	for _, b := range p.Bindings {
		out.Mappings = append(out.Mappings, fromBinding(b))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding preset: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func fromBinding(b model.Binding) mapping {
	vol := b.Volume
	overlap := b.AllowOverlap
	queue := b.Cursor.Queue
	if queue == nil {
		queue = []string{}
	}
	combo := b.Chord.Strings()
	if combo == nil {
		combo = []string{}
	}
	return mapping{
		Hotkey:             b.Hotkey,
		Files:              b.Files,
		Volume:             &vol,
		AllowOverlap:       &overlap,
		Mode:               b.Mode.String(),
		KeyCombination:     combo,
		Device:             b.Device,
		SavedRRIndex:       b.Cursor.RRIndex,
		SavedShuffledFiles: queue,
		SavedShuffledIndex: b.Cursor.Pos,
	}
}

// ReadFile decodes the preset at path.
func ReadFile(path string, norm keys.Normalizer) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, norm)
}

// WriteFile encodes p to path, replacing it atomically.
func WriteFile(path string, p *Preset) error {
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".preset-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, p); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return utils.MoveFile(tmp.Name(), path)
}
