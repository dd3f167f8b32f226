package output

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// NullBackend discards audio. Its sinks drain their mixer in real time, so
// voices stay busy for as long as the sound would be audible.
type NullBackend struct {
	// DeviceNames lists the devices Open accepts besides the default.
	DeviceNames []string
	// Manual sinks never render on their own; tests drive Mixer().Render.
	Manual bool
}

func (b *NullBackend) Name() string { return "null" }

func (b *NullBackend) Devices() ([]string, error) {
	return append([]string{"null"}, b.DeviceNames...), nil
}

func (b *NullBackend) Open(device string, cfg StreamConfig) (Sink, error) {
	if device != DefaultDevice && device != "null" && !slices.Contains(b.DeviceNames, device) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
	cfg = cfg.withDefaults()

	s := &nullSink{
		device: device,
		mixer:  NewMixer(cfg.SampleRate, cfg.Channels),
		stop:   make(chan struct{}),
	}
	if !b.Manual {
		period := time.Duration(cfg.BufferFrames) * time.Second / time.Duration(cfg.SampleRate)
		s.wg.Add(1)
		go s.run(period, make([]float32, cfg.BufferFrames*cfg.Channels))
	}
	return s, nil
}

func (b *NullBackend) Close() error { return nil }

type nullSink struct {
	device string
	mixer  *Mixer
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func (s *nullSink) Device() string { return s.device }
func (s *nullSink) Mixer() *Mixer  { return s.mixer }

func (s *nullSink) run(period time.Duration, scratch []float32) {
	defer s.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mixer.Render(scratch)
		}
	}
}

func (s *nullSink) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.mixer.StopAll()
	})
	return nil
}
