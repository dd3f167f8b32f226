package preset

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
)

const legacyPreset = `{
  "selected_device": "Speakers (Realtek)",
  "mappings": {
    "Ctrl + 1": {
      "hotkey": "Ctrl + 1",
      "files": ["C:/sfx/a.wav", "C:/sfx/b.mp3"],
      "volume": 0.8,
      "allow_overlap": false,
      "mode": "round_robin",
      "key_combination": ["key:ctrl_l", "vk:49"],
      "saved_rr_index": 3,
      "saved_shuffled_files": [],
      "saved_shuffled_index": 0
    },
    "Alt + Num0": {
      "files": ["C:/sfx/c.ogg"],
      "key_combination": ["key:alt_l", "vk:96"]
    },
    "Broken": {
      "files": [],
      "key_combination": ["key:f1"]
    }
  }
}`

func TestDecodeLegacyPreset(t *testing.T) {
	p, err := Decode(strings.NewReader(legacyPreset), keys.Normalizer{})
	require.NoError(t, err)

	assert.Equal(t, "Speakers (Realtek)", p.SelectedDevice)
	require.Len(t, p.Bindings, 2)

	first := p.Bindings[0]
	assert.Equal(t, "Ctrl + 1", first.Hotkey)
	assert.Equal(t, selection.RoundRobin, first.Mode)
	assert.Equal(t, 0.8, first.Volume)
	assert.False(t, first.AllowOverlap)
	assert.Equal(t, 3, first.Cursor.RRIndex)
	assert.Equal(t, []string{"key:ctrl_l", "vk:49"}, first.Chord.Strings())

	// Missing fields take the defaults of a new mapping.
	second := p.Bindings[1]
	assert.Equal(t, "Alt + Num0", second.Hotkey)
	assert.Equal(t, selection.Random, second.Mode)
	assert.Equal(t, 1.0, second.Volume)
	assert.True(t, second.AllowOverlap)

	require.Len(t, p.Warnings, 1)
	assert.ErrorIs(t, p.Warnings[0], model.ErrValidation)
}

func TestDecodeUnknownModeFallsBackToRandom(t *testing.T) {
	doc := `{"mappings": {"x": {"files": ["a.wav"], "mode": "chaos", "key_combination": ["key:f2"]}}}`
	p, err := Decode(strings.NewReader(doc), keys.Normalizer{})
	require.NoError(t, err)
	require.Len(t, p.Bindings, 1)
	assert.Equal(t, selection.Random, p.Bindings[0].Mode)
	assert.Len(t, p.Warnings, 1)
}

func TestDecodeEmptyAndNull(t *testing.T) {
	p, err := Decode(strings.NewReader(`{"selected_device": null}`), keys.Normalizer{})
	require.NoError(t, err)
	assert.Empty(t, p.SelectedDevice)
	assert.Empty(t, p.Bindings)

	_, err = Decode(strings.NewReader(`{"mappings": [1, 2]}`), keys.Normalizer{})
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`not json`), keys.Normalizer{})
	assert.Error(t, err)
}

func TestEncodeKeepsOrderAndCursor(t *testing.T) {
	p, err := Decode(strings.NewReader(legacyPreset), keys.Normalizer{})
	require.NoError(t, err)
	p.Bindings[1].Mode = selection.Shuffle
	p.Bindings[1].Cursor = selection.Cursor{Queue: []string{"C:/sfx/c.ogg"}, Pos: 1}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, p))

	out := buf.String()
	assert.Less(t, strings.Index(out, `"Ctrl + 1"`), strings.Index(out, `"Alt + Num0"`))
	assert.Contains(t, out, `"saved_shuffled_files": [`)
	assert.Contains(t, out, `"mode": "shuffle"`)

	again, err := Decode(&buf, keys.Normalizer{})
	require.NoError(t, err)
	require.Len(t, again.Bindings, 2)
	assert.Equal(t, p.SelectedDevice, again.SelectedDevice)
	assert.Equal(t, "Ctrl + 1", again.Bindings[0].Hotkey)
	assert.Equal(t, p.Bindings[1].Cursor, again.Bindings[1].Cursor)
	assert.Equal(t, selection.Shuffle, again.Bindings[1].Mode)
	assert.Empty(t, again.Warnings)
}

func TestEncodeNoDevice(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Preset{}))
	assert.Contains(t, buf.String(), `"selected_device": null`)
	assert.Contains(t, buf.String(), `"mappings": {}`)
}

func TestWriteAndReadFile(t *testing.T) {
	chord, err := keys.ParseChord([]string{"key:f9"})
	require.NoError(t, err)
	p := &Preset{Bindings: []model.Binding{model.NewBinding("F9", chord, "/x.wav")}}

	path := filepath.Join(t.TempDir(), "nested", "preset.json")
	require.NoError(t, WriteFile(path, p))

	got, err := ReadFile(path, keys.Normalizer{})
	require.NoError(t, err)
	require.Len(t, got.Bindings, 1)
	assert.Equal(t, "F9", got.Bindings[0].Hotkey)
}
