// Package output owns the audio device side: a software mixer and the
// backends that drain it into a device.
package output

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultSampleRate   = 44100
	DefaultChannels     = 2
	DefaultBufferFrames = 512

	// DefaultDevice names the system default output device.
	DefaultDevice = ""
)

// ErrUnknownDevice is returned by Open when the backend has no device by that name.
var ErrUnknownDevice = errors.New("unknown output device")

// StreamConfig describes the stream a Sink should open.
type StreamConfig struct {
	SampleRate   int
	Channels     int
	BufferFrames int
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = DefaultBufferFrames
	}
	return c
}

// Sink is an open output stream fed by its Mixer.
type Sink interface {
	Device() string
	Mixer() *Mixer
	Close() error
}

// Backend enumerates and opens output devices.
type Backend interface {
	Name() string
	Devices() ([]string, error)
	Open(device string, cfg StreamConfig) (Sink, error)
	Close() error
}

// NewBackend returns the backend registered under name. "" means null.
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "null", "none":
		return &NullBackend{}, nil
	case "portaudio":
		return newPortAudio()
	default:
		return nil, fmt.Errorf("unknown audio backend %q (want null or portaudio)", name)
	}
}
