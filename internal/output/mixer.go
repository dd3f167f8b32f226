package output

import (
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/HotRandomPad/internal/audio"
	"github.com/himanishpuri/HotRandomPad/pkg/utils"
)

// MaxGain caps per-voice gain.
const MaxGain = 2.0

// Voice is one buffer being played on a Mixer. It is the handle returned to
// callers that need to know whether a sound is still audible.
type Voice struct {
	id   string
	buf  *audio.Buffer
	gain float32
	step float64 // source frames per output frame
	pos  float64

	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func (v *Voice) ID() string { return v.id }

// Busy reports whether the voice is still producing sound.
func (v *Voice) Busy() bool {
	select {
	case <-v.done:
		return false
	default:
		return true
	}
}

// Stop silences the voice. The mixer drops it on its next render.
func (v *Voice) Stop() {
	v.stopped.Store(true)
	v.finish()
}

// Done is closed once the voice has finished or been stopped.
func (v *Voice) Done() <-chan struct{} { return v.done }

func (v *Voice) finish() {
	v.once.Do(func() { close(v.done) })
}

// Mixer sums any number of voices into one interleaved float32 stream at a
// fixed rate and channel count.
type Mixer struct {
	rate     int
	channels int

	mu     sync.Mutex
	voices []*Voice
}

func NewMixer(sampleRate, channels int) *Mixer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &Mixer{rate: sampleRate, channels: channels}
}

func (m *Mixer) SampleRate() int { return m.rate }
func (m *Mixer) Channels() int   { return m.channels }

// Play starts buf at the given gain (clamped to [0, MaxGain]) and returns
// its voice. An empty buffer yields a voice that is already done.
func (m *Mixer) Play(buf *audio.Buffer, gain float64) *Voice {
	v := &Voice{
		id:   utils.GenerateUUID(),
		buf:  buf,
		gain: float32(clampGain(gain)),
		done: make(chan struct{}),
	}
	if buf.Frames() == 0 {
		v.finish()
		return v
	}
	v.step = float64(buf.SampleRate) / float64(m.rate)

	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()
	return v
}

// Render mixes the next len(out)/Channels() frames into out, overwriting it.
func (m *Mixer) Render(out []float32) {
	clear(out)
	frames := len(out) / m.channels

	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.voices[:0]
	for _, v := range m.voices {
		if v.stopped.Load() {
			continue
		}
		if m.mix(v, out, frames) {
			live = append(live, v)
		} else {
			v.finish()
		}
	}
	clear(m.voices[len(live):])
	m.voices = live

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}
}

// mix adds v into out and reports whether it has more to play.
func (m *Mixer) mix(v *Voice, out []float32, frames int) bool {
	total := v.buf.Frames()
	for f := 0; f < frames; f++ {
		idx := int(v.pos)
		if idx >= total {
			return false
		}
		frac := float32(v.pos - float64(idx))
		next := idx + 1
		if next >= total {
			next = idx
		}
		for ch := 0; ch < m.channels; ch++ {
			a := m.sample(v.buf, idx, ch)
			b := m.sample(v.buf, next, ch)
			out[f*m.channels+ch] += (a + (b-a)*frac) * v.gain
		}
		v.pos += v.step
	}
	return int(v.pos) < total
}

// sample maps a source frame onto output channel ch. Multi-channel sources
// played on a mono output are averaged.
func (m *Mixer) sample(buf *audio.Buffer, i, ch int) float32 {
	if m.channels == 1 && buf.Channels > 1 {
		var sum float32
		for c := 0; c < buf.Channels; c++ {
			sum += buf.Samples[i*buf.Channels+c]
		}
		return sum / float32(buf.Channels)
	}
	return buf.Frame(i, ch)
}

// StopAll stops every voice and reports how many were playing.
func (m *Mixer) StopAll() int {
	m.mu.Lock()
	voices := m.voices
	m.voices = nil
	m.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	return len(voices)
}

// Active returns the number of voices still queued for rendering.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

func clampGain(g float64) float64 {
	if g != g || g < 0 {
		return 0
	}
	if g > MaxGain {
		return MaxGain
	}
	return g
}
