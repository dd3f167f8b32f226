package hotpad

import (
	"time"

	"github.com/himanishpuri/HotRandomPad/internal/output"
	"github.com/himanishpuri/HotRandomPad/pkg/logger"
)

type Config struct {
	DBPath        string
	Backend       string
	Device        string
	SampleRate    int
	BufferFrames  int
	FFmpeg        string
	TempDir       string
	DecodeTimeout time.Duration
	FoldSides     bool
	Seed          *[2]uint64
	Logger        *logger.Logger
	Storage       Storage
	OutputDriver  output.Backend
	OnWarning     func(error)
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithBackend selects the audio backend by name ("null" or "portaudio").
func WithBackend(name string) Option {
	return func(c *Config) {
		c.Backend = name
	}
}

// WithOutput supplies an already constructed backend, overriding WithBackend.
func WithOutput(b output.Backend) Option {
	return func(c *Config) {
		c.OutputDriver = b
	}
}

// WithDevice overrides the device stored as the user's selection.
func WithDevice(name string) Option {
	return func(c *Config) {
		c.Device = name
	}
}

func WithStream(sampleRate, bufferFrames int) Option {
	return func(c *Config) {
		c.SampleRate = sampleRate
		c.BufferFrames = bufferFrames
	}
}

func WithFFmpeg(path string) Option {
	return func(c *Config) {
		c.FFmpeg = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithFoldSides(fold bool) Option {
	return func(c *Config) {
		c.FoldSides = fold
	}
}

// WithSeed makes Random and Shuffle picks reproducible.
func WithSeed(s1, s2 uint64) Option {
	return func(c *Config) {
		c.Seed = &[2]uint64{s1, s2}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithOnWarning receives every non-fatal error: device fallback, decode
// failures, missing files, skipped bindings.
func WithOnWarning(fn func(error)) Option {
	return func(c *Config) {
		c.OnWarning = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        "hotrandompad.sqlite3",
		Backend:       "null",
		SampleRate:    output.DefaultSampleRate,
		BufferFrames:  output.DefaultBufferFrames,
		FFmpeg:        "ffmpeg",
		DecodeTimeout: 30 * time.Second,
	}
}
