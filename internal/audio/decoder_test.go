package audio

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HotRandomPad/internal/audio/audiotest"
)

func TestDecodeWAVMono(t *testing.T) {
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "mono.wav", 8000, 1, []int{0, 16384, -16384, 32767})

	buf, err := (&Decoder{FFmpeg: "-"}).Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, buf.Channels)
	assert.Equal(t, 8000, buf.SampleRate)
	assert.Equal(t, 4, buf.Frames())
	assert.InDelta(t, 0.0, buf.Samples[0], 1e-6)
	assert.InDelta(t, 0.5, buf.Samples[1], 1e-4)
	assert.InDelta(t, -0.5, buf.Samples[2], 1e-4)
	assert.InDelta(t, 1.0, buf.Samples[3], 1e-3)
}

func TestDecodeWAVStereo(t *testing.T) {
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "stereo.WAV", 44100, 2, []int{100, -100, 200, -200})

	buf, err := (&Decoder{FFmpeg: "-"}).Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Channels)
	assert.Equal(t, 2, buf.Frames())
	assert.Greater(t, buf.Frame(1, 0), float32(0))
	assert.Less(t, buf.Frame(1, 1), float32(0))
}

func TestDecodeWAVInvalidFile(t *testing.T) {
	path := audiotest.WriteGarbage(t, t.TempDir(), "broken.wav")

	_, err := (&Decoder{FFmpeg: "-"}).Decode(context.Background(), path)
	assert.Error(t, err)
}

func TestDecodeWAVReader(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("RIFF....WAVEjunk")))
	assert.Error(t, err)
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := (&Decoder{}).Decode(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestDecodeWithoutConverter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))

	_, err := (&Decoder{FFmpeg: "-"}).Decode(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoConverter)

	_, err = (&Decoder{FFmpeg: "definitely-not-ffmpeg-here"}).Decode(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoConverter)
}

func TestDecodeViaFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	src := audiotest.WriteTone(t, dir, "tone.wav", 8000, 440, 800)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := ConvertToWAV(ctx, src, dir, ConvertWAVConfig{SampleRate: 16000, Channels: 2})
	require.NoError(t, err)
	defer os.Remove(out)

	buf, err := decodeWAVFile(out)
	require.NoError(t, err)
	assert.Equal(t, 16000, buf.SampleRate)
	assert.Equal(t, 2, buf.Channels)
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{Samples: make([]float32, 8000*2), Channels: 2, SampleRate: 8000}
	assert.Equal(t, 8000, buf.Frames())
	assert.Equal(t, time.Second, buf.Duration())

	var empty *Buffer
	assert.Zero(t, empty.Frames())
	assert.Zero(t, empty.Duration())
}
