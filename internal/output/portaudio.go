//go:build portaudio

package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

type portAudioBackend struct {
	mu     sync.Mutex
	closed bool
}

func newPortAudio() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (b *portAudioBackend) Name() string { return "portaudio" }

// Devices lists devices with at least one output channel.
func (b *portAudioBackend) Devices() ([]string, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.MaxOutputChannels > 0 {
			names = append(names, info.Name)
		}
	}
	return names, nil
}

func (b *portAudioBackend) lookup(device string) (*portaudio.DeviceInfo, error) {
	if device == DefaultDevice {
		return portaudio.DefaultOutputDevice()
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Name == device && info.MaxOutputChannels > 0 {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
}

func (b *portAudioBackend) Open(device string, cfg StreamConfig) (Sink, error) {
	cfg = cfg.withDefaults()

	info, err := b.lookup(device)
	if err != nil {
		return nil, err
	}
	if info.MaxOutputChannels < cfg.Channels {
		cfg.Channels = info.MaxOutputChannels
	}

	params := portaudio.LowLatencyParameters(nil, info)
	params.Output.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferFrames

	s := &portAudioSink{
		device: device,
		mixer:  NewMixer(cfg.SampleRate, cfg.Channels),
	}
	stream, err := portaudio.OpenStream(params, s.mixer.Render)
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream on %q: %w", info.Name, err)
	}
	s.stream = stream
	return s, nil
}

func (b *portAudioBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return portaudio.Terminate()
}

type portAudioSink struct {
	device string
	mixer  *Mixer
	stream *portaudio.Stream
	once   sync.Once
}

func (s *portAudioSink) Device() string { return s.device }
func (s *portAudioSink) Mixer() *Mixer  { return s.mixer }

func (s *portAudioSink) Close() error {
	var err error
	s.once.Do(func() {
		s.mixer.StopAll()
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
