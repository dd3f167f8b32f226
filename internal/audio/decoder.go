// Package audio decodes sound files into device-independent sample buffers.
//
// WAV (PCM) is decoded natively with go-audio/wav. Every other supported
// format, and WAV encodings the native path rejects, is converted to a
// temporary PCM WAV with ffmpeg first.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/HotRandomPad/pkg/utils"
)

// Decoder turns files into Buffers. The zero value decodes WAV natively and
// uses "ffmpeg" from PATH for the rest.
type Decoder struct {
	// FFmpeg is the converter binary. "-" disables conversion.
	FFmpeg string
	// TempDir receives intermediate WAV files; os.TempDir() when empty.
	TempDir string
	// Timeout bounds one conversion.
	Timeout time.Duration
}

// ErrNoConverter is returned for non-WAV files when ffmpeg is disabled or
// missing.
var ErrNoConverter = errors.New("no converter available for this format")

// Decode reads path completely into memory.
func (d *Decoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := decodeWAVFile(path)
		if err == nil || !errors.Is(err, ErrUnsupportedWAV) {
			return buf, err
		}
		// Fall through to ffmpeg for float/compressed WAV.
	}
	return d.convertAndDecode(ctx, path)
}

func decodeWAVFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

func (d *Decoder) convertAndDecode(ctx context.Context, path string) (*Buffer, error) {
	ffmpeg, err := d.converter()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Ext(path), err)
	}

	tempDir := d.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	wavPath, err := ConvertToWAV(ctx, path, tempDir, ConvertWAVConfig{
		FFmpeg:  ffmpeg,
		Timeout: d.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer utils.DeleteFile(wavPath)

	return decodeWAVFile(wavPath)
}

func (d *Decoder) converter() (string, error) {
	name := d.FFmpeg
	if name == "-" {
		return "", ErrNoConverter
	}
	if name == "" {
		name = "ffmpeg"
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoConverter, err)
	}
	return resolved, nil
}
