//go:build !portaudio

package output

import "errors"

func newPortAudio() (Backend, error) {
	return nil, errors.New("portaudio backend not compiled in (rebuild with -tags portaudio)")
}
