package output

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HotRandomPad/internal/audio"
)

func constBuffer(frames, channels, rate int, v float32) *audio.Buffer {
	s := make([]float32, frames*channels)
	for i := range s {
		s[i] = v
	}
	return &audio.Buffer{Samples: s, Channels: channels, SampleRate: rate}
}

func TestMixerPlaysToCompletion(t *testing.T) {
	m := NewMixer(8000, 2)
	v := m.Play(constBuffer(4, 1, 8000, 0.25), 1.0)
	require.True(t, v.Busy())
	assert.NotEmpty(t, v.ID())

	out := make([]float32, 2*2)
	m.Render(out)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, out)
	assert.True(t, v.Busy())

	m.Render(out)
	assert.False(t, v.Busy())
	assert.Zero(t, m.Active())

	select {
	case <-v.Done():
	default:
		t.Fatal("Done not closed after voice finished")
	}
}

func TestMixerSumsAndClips(t *testing.T) {
	m := NewMixer(8000, 1)
	m.Play(constBuffer(16, 1, 8000, 0.75), 1.0)
	m.Play(constBuffer(16, 1, 8000, 0.75), 1.0)

	out := make([]float32, 4)
	m.Render(out)
	for _, s := range out {
		assert.Equal(t, float32(1), s)
	}
	assert.Equal(t, 2, m.Active())
}

func TestMixerGainClamp(t *testing.T) {
	m := NewMixer(8000, 1)
	m.Play(constBuffer(8, 1, 8000, 0.1), 10)
	out := make([]float32, 1)
	m.Render(out)
	assert.InDelta(t, 0.2, out[0], 1e-6)

	m.StopAll()
	m.Play(constBuffer(8, 1, 8000, 0.5), -3)
	m.Render(out)
	assert.Zero(t, out[0])
}

func TestMixerResamples(t *testing.T) {
	// 4 source frames at 4 kHz last 8 frames at 8 kHz.
	m := NewMixer(8000, 1)
	v := m.Play(&audio.Buffer{Samples: []float32{0, 0.5, 1, 1}, Channels: 1, SampleRate: 4000}, 1)

	out := make([]float32, 8)
	m.Render(out)
	assert.InDelta(t, 0.25, out[1], 1e-6)
	assert.InDelta(t, 0.5, out[2], 1e-6)
	assert.False(t, v.Busy())
}

func TestMixerDownmixesToMono(t *testing.T) {
	m := NewMixer(8000, 1)
	m.Play(&audio.Buffer{Samples: []float32{0.2, 0.6, 0.2, 0.6}, Channels: 2, SampleRate: 8000}, 1)
	out := make([]float32, 1)
	m.Render(out)
	assert.InDelta(t, 0.4, out[0], 1e-6)
}

func TestMixerStopAll(t *testing.T) {
	m := NewMixer(8000, 2)
	a := m.Play(constBuffer(1000, 2, 8000, 0.1), 1)
	b := m.Play(constBuffer(1000, 2, 8000, 0.1), 1)

	assert.Equal(t, 2, m.StopAll())
	assert.False(t, a.Busy())
	assert.False(t, b.Busy())
	assert.Zero(t, m.Active())
}

func TestVoiceStop(t *testing.T) {
	m := NewMixer(8000, 1)
	v := m.Play(constBuffer(1000, 1, 8000, 0.3), 1)
	v.Stop()
	assert.False(t, v.Busy())

	out := make([]float32, 4)
	m.Render(out)
	assert.Equal(t, []float32{0, 0, 0, 0}, out)
	assert.Zero(t, m.Active())
}

func TestEmptyBufferIsDone(t *testing.T) {
	m := NewMixer(8000, 1)
	v := m.Play(&audio.Buffer{Channels: 1, SampleRate: 8000}, 1)
	assert.False(t, v.Busy())
	assert.Zero(t, m.Active())
}

func TestNullBackendDevices(t *testing.T) {
	b := &NullBackend{DeviceNames: []string{"Speakers"}}
	names, err := b.Devices()
	require.NoError(t, err)
	assert.Equal(t, []string{"null", "Speakers"}, names)

	s, err := b.Open("Speakers", StreamConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Speakers", s.Device())
	assert.Equal(t, DefaultSampleRate, s.Mixer().SampleRate())
	require.NoError(t, s.Close())

	_, err = b.Open("Headphones", StreamConfig{})
	assert.True(t, errors.Is(err, ErrUnknownDevice))
}

func TestNullSinkDrainsInRealTime(t *testing.T) {
	b := &NullBackend{}
	s, err := b.Open(DefaultDevice, StreamConfig{SampleRate: 8000, Channels: 1, BufferFrames: 80})
	require.NoError(t, err)
	defer s.Close()

	// 40 ms of audio.
	v := s.Mixer().Play(constBuffer(320, 1, 8000, 0.1), 1)
	assert.True(t, v.Busy())

	select {
	case <-v.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("voice never finished on null sink")
	}
}

func TestNullSinkCloseStopsVoices(t *testing.T) {
	s, err := (&NullBackend{Manual: true}).Open(DefaultDevice, StreamConfig{})
	require.NoError(t, err)

	v := s.Mixer().Play(constBuffer(100, 2, 44100, 0.1), 1)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, v.Busy())
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("")
	require.NoError(t, err)
	assert.Equal(t, "null", b.Name())

	_, err = NewBackend("alsa-direct")
	assert.Error(t, err)
}
