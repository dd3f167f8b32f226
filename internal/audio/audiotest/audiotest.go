// Package audiotest writes small WAV fixtures for tests.
package audiotest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes 16-bit PCM samples (interleaved) to dir/name and returns
// the full path.
func WriteWAV(t testing.TB, dir, name string, sampleRate, channels int, samples []int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to encode fixture %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to finalize fixture %s: %v", path, err)
	}
	return path
}

// WriteTone writes a mono sine tone of the given length.
func WriteTone(t testing.TB, dir, name string, sampleRate int, freq float64, frames int) string {
	t.Helper()

	samples := make([]int, frames)
	for i := range samples {
		samples[i] = int(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * 16000)
	}
	return WriteWAV(t, dir, name, sampleRate, 1, samples)
}

// WriteGarbage writes a file that is not decodable audio.
func WriteGarbage(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}
