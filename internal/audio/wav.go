package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// ErrUnsupportedWAV marks WAV files the native decoder cannot read
// (IEEE float, A-law, ADPCM...). The Decoder hands those to ffmpeg.
var ErrUnsupportedWAV = errors.New("unsupported WAV encoding")

// DecodeWAV reads a PCM WAV stream into a Buffer.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a WAV/RIFF file")
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, d.WavAudioFormat)
	}
	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, d.BitDepth)
	}
	if d.NumChans == 0 {
		return nil, errors.New("WAV header declares zero channels")
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, errors.New("WAV file has no samples")
	}

	return &Buffer{
		Samples:    intToFloat(pcm, int(d.BitDepth)),
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
	}, nil
}

// intToFloat normalizes integer PCM to [-1, 1]. 8-bit WAV is unsigned.
func intToFloat(pcm *goaudio.IntBuffer, bitDepth int) []float32 {
	out := make([]float32, len(pcm.Data))
	if bitDepth == 8 {
		for i, v := range pcm.Data {
			out[i] = float32(v-128) / 128
		}
		return out
	}
	scale := float32(int64(1) << uint(bitDepth-1))
	for i, v := range pcm.Data {
		out[i] = float32(v) / scale
	}
	return out
}
