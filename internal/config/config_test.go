package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	m, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Config()
	assert.Equal(t, "null", cfg.Audio.Backend)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 512, cfg.Audio.BufferFrames)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Keys.FoldSides)
	assert.Equal(t, "hotrandompad.sqlite3", filepath.Base(cfg.Database.Path))
	assert.Contains(t, cfg.Database.Path, AppName)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
database:
  path: /tmp/pad.db
audio:
  backend: PortAudio
  device: Speakers
  sample_rate: 48000
keys:
  fold_sides: true
preset:
  path: /tmp/preset.json
  watch: true
`), 0o644))
	t.Setenv("HOTPAD_AUDIO_DEVICE", "Headphones")
	t.Setenv("HOTPAD_LOG_LEVEL", "debug")

	m, err := NewManager(file)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Config()
	assert.Equal(t, file, m.File())
	assert.Equal(t, "/tmp/pad.db", cfg.Database.Path)
	assert.Equal(t, "portaudio", cfg.Audio.Backend)
	assert.Equal(t, "Headphones", cfg.Audio.Device)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.True(t, cfg.Keys.FoldSides)
	assert.True(t, cfg.Preset.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDBPathShortEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOTPAD_DB_PATH", "/srv/pad.sqlite3")

	m, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, "/srv/pad.sqlite3", m.Config().Database.Path)
}

func TestValidationErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
audio:
  backend: wasapi
  sample_rate: 10
logging:
  level: loud
preset:
  watch: true
`), 0o644))

	m, err := NewManager(file)
	require.NoError(t, err)
	err = m.Load()
	require.Error(t, err)
	for _, want := range []string{"audio.backend", "audio.sample_rate", "logging.level", "preset.watch"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestMalformedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("audio: [unterminated"), 0o644))

	m, err := NewManager(file)
	require.NoError(t, err)
	assert.Error(t, m.Load())
}

func TestExplicitMissingFileIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.NoError(t, m.Load())
}

func TestWatchNotifiesOnEdit(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("audio:\n  device: Speakers\n"), 0o644))

	m, err := NewManager(file)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	require.Equal(t, "Speakers", m.Config().Audio.Device)

	changed := make(chan string, 16)
	m.OnConfigChange(func(cfg *Config) {
		select {
		case changed <- cfg.Audio.Device:
		default:
		}
	})
	m.Watch()

	require.NoError(t, os.WriteFile(file, []byte("audio:\n  device: Headset\n"), 0o644))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case device := <-changed:
			if device == "Headset" {
				assert.Equal(t, "Headset", m.Config().Audio.Device)
				return
			}
		case <-timeout:
			t.Fatal("no change notification for the edited device")
		}
	}
}
