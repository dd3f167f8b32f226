package audio

import "time"

// Buffer is a fully decoded sound: interleaved float32 samples in [-1, 1]
// at the file's own rate and channel count. Buffers are device independent
// and never modified after decoding, so one Buffer may back many voices.
type Buffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length at the buffer's own rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Frame returns channel ch of frame i, mapping mono to every channel.
func (b *Buffer) Frame(i, ch int) float32 {
	if b.Channels == 1 {
		return b.Samples[i]
	}
	if ch >= b.Channels {
		ch = b.Channels - 1
	}
	return b.Samples[i*b.Channels+ch]
}
