package model

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation  = errors.New("invalid binding")
	ErrDevice      = errors.New("audio device unavailable")
	ErrDecode      = errors.New("audio decode failed")
	ErrMissingFile = errors.New("audio file not found")
)

// ValidationError rejects a binding before it reaches the runtime.
type ValidationError struct {
	Hotkey string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Hotkey == "" {
		return fmt.Sprintf("invalid binding: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid binding %q: %s: %s", e.Hotkey, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DeviceError reports an output device that could not be opened.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	name := e.Device
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("audio device %q: %v", name, e.Err)
}

func (e *DeviceError) Unwrap() error       { return e.Err }
func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

// DecodeError reports a file that could not be decoded. Only the Play call
// that hit it is abandoned.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error       { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// MissingFileError reports a selected file that no longer exists.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("audio file not found: %s", e.Path)
}

func (e *MissingFileError) Is(target error) bool { return target == ErrMissingFile }
