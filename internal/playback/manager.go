// Package playback turns "play this file for this binding" requests into
// voices on an output device. It owns the decoded-buffer cache, the current
// device and the per-binding handles used for overlap suppression.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/himanishpuri/HotRandomPad/internal/audio"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/output"
	"github.com/himanishpuri/HotRandomPad/pkg/logger"
	"github.com/himanishpuri/HotRandomPad/pkg/utils"
)

var errClosed = errors.New("playback manager closed")

// Decoder loads a file into memory.
type Decoder interface {
	Decode(ctx context.Context, path string) (*audio.Buffer, error)
}

// Request is one activation's worth of playback.
type Request struct {
	BindingID    string
	Path         string
	Gain         float64
	AllowOverlap bool
	// Device overrides the manager's current device for this request.
	Device string
}

type Config struct {
	Backend output.Backend
	Stream  output.StreamConfig
	Decoder Decoder
	// Device is opened first; the backend default is used if it fails.
	Device string
	Logger *logger.Logger
	// OnWarning receives every non-fatal error (device fallback, decode
	// failure, missing file).
	OnWarning func(error)
	// PreloadWorkers bounds concurrent decodes in Preload.
	PreloadWorkers int
}

type Manager struct {
	backend output.Backend
	stream  output.StreamConfig
	decoder Decoder
	log     *logger.Logger
	onWarn  func(error)
	workers int

	ctx     context.Context
	cancel  context.CancelFunc
	group   singleflight.Group
	opening singleflight.Group
	wg      sync.WaitGroup

	// devMu serializes device switches. Play never takes it, and m.mu is
	// never held while a device opens or closes.
	devMu sync.Mutex

	mu         sync.Mutex
	sink       output.Sink
	deviceName string
	named      map[string]output.Sink
	cache      map[string]*audio.Buffer
	handles    map[string]*output.Voice
	lanes      map[string]chan struct{}
	closed     bool
}

// NewManager opens cfg.Device (falling back to the default device) and
// returns a ready manager. It fails only when no device can be opened.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Backend == nil {
		return nil, errors.New("playback: backend is required")
	}
	if cfg.Decoder == nil {
		cfg.Decoder = &audio.Decoder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().With("playback")
	}
	if cfg.PreloadWorkers <= 0 {
		cfg.PreloadWorkers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		backend: cfg.Backend,
		stream:  cfg.Stream,
		decoder: cfg.Decoder,
		log:     cfg.Logger,
		onWarn:  cfg.OnWarning,
		workers: cfg.PreloadWorkers,
		ctx:     ctx,
		cancel:  cancel,
		named:   make(map[string]output.Sink),
		cache:   make(map[string]*audio.Buffer),
		handles: make(map[string]*output.Voice),
		lanes:   make(map[string]chan struct{}),
	}

	if err := m.SetDevice(cfg.Device); err != nil {
		if m.sink == nil {
			cancel()
			return nil, err
		}
		m.warn(err)
	}
	return m, nil
}

// Device returns the name of the current output device ("" for default).
func (m *Manager) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceName
}

// SetDevice switches output to name. Current playback is stopped; the
// decode cache is kept. If name cannot be opened the default device is
// opened instead and a DeviceError is returned. The previous device stays
// current until its replacement is open.
func (m *Manager) SetDevice(name string) error {
	m.devMu.Lock()
	defer m.devMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errClosed
	}
	if m.sink != nil && m.deviceName == name {
		m.mu.Unlock()
		return nil
	}
	old, oldName := m.sink, m.deviceName
	reuse, reused := m.named[name]
	playing := m.sinks()
	m.mu.Unlock()

	for _, s := range playing {
		s.Mixer().StopAll()
	}

	sink, device, openErr := reuse, name, error(nil)
	if !reused {
		var err error
		sink, err = m.backend.Open(name, m.stream)
		switch {
		case err == nil:
			m.log.Infof("Output device: %s", displayName(name))
		case name == output.DefaultDevice:
			return &model.DeviceError{Device: name, Err: err}
		default:
			fallback, ferr := m.backend.Open(output.DefaultDevice, m.stream)
			if ferr != nil {
				return &model.DeviceError{Device: name, Err: errors.Join(err, ferr)}
			}
			m.log.Warnf("Device %q unavailable, using default output", name)
			sink, device = fallback, output.DefaultDevice
			openErr = &model.DeviceError{Device: name, Err: err}
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sink.Close()
		return errClosed
	}
	if reused && m.named[name] == reuse {
		delete(m.named, name)
	}
	m.sink, m.deviceName = sink, device
	clear(m.handles)
	m.mu.Unlock()

	if old != nil && old != sink {
		if err := old.Close(); err != nil {
			m.log.Warnf("closing device %q: %v", oldName, err)
		}
	}
	return openErr
}

// Play queues req and returns immediately. Requests for the same binding run
// in call order; requests for different bindings run concurrently.
func (m *Manager) Play(req Request) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.lanes[req.BindingID]
	if prev == nil && !req.AllowOverlap {
		if h := m.handles[req.BindingID]; h != nil && h.Busy() {
			m.mu.Unlock()
			m.log.Debugf("%s still playing, trigger dropped", req.BindingID)
			return
		}
	}
	done := make(chan struct{})
	m.lanes[req.BindingID] = done
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(req, prev, done)
}

func (m *Manager) run(req Request, prev, done chan struct{}) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		if m.lanes[req.BindingID] == done {
			delete(m.lanes, req.BindingID)
		}
		m.mu.Unlock()
		close(done)
	}()
	defer func() {
		if r := recover(); r != nil {
			m.warn(fmt.Errorf("playback of %s panicked: %v", req.Path, r))
		}
	}()

	if prev != nil {
		<-prev
	}
	if err := m.play(req); err != nil {
		m.warn(err)
	}
}

func (m *Manager) play(req Request) error {
	if !req.AllowOverlap && m.busy(req.BindingID) {
		m.log.Debugf("%s still playing, trigger dropped", req.BindingID)
		return nil
	}

	path, err := utils.ResolvePath(req.Path)
	if err != nil {
		return &model.DecodeError{Path: req.Path, Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &model.MissingFileError{Path: req.Path}
		}
		return &model.DecodeError{Path: req.Path, Err: err}
	}

	buf, err := m.load(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	sink := m.sink
	override := req.Device != "" && req.Device != m.deviceName
	if s, ok := m.named[req.Device]; ok && override {
		sink, override = s, false
	}
	m.mu.Unlock()

	var devErr error
	if override {
		s, err := m.openNamed(req.Device)
		switch {
		case errors.Is(err, errClosed):
			return nil
		case err != nil:
			devErr = err
		default:
			sink = s
		}
	}
	if sink == nil {
		return &model.DeviceError{Device: req.Device, Err: errors.New("no output device open")}
	}

	v := sink.Mixer().Play(buf, req.Gain)

	// The device may have been switched or closed while the voice was
	// being queued; a voice on a retired sink would never finish.
	m.mu.Lock()
	live := !m.closed && (sink == m.sink || (req.Device != "" && m.named[req.Device] == sink))
	if live {
		m.handles[req.BindingID] = v
	}
	m.mu.Unlock()

	if !live {
		v.Stop()
		m.log.Debugf("Output changed while starting %s for %s, dropped", req.Path, req.BindingID)
		return devErr
	}
	m.log.Debugf("Playing %s for %s (voice %s)", req.Path, req.BindingID, v.ID())
	return devErr
}

func (m *Manager) busy(bindingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.handles[bindingID]
	return h != nil && h.Busy()
}

// openNamed opens a per-request device override once, however many
// requests race for it, and caches the sink.
func (m *Manager) openNamed(device string) (output.Sink, error) {
	v, err, _ := m.opening.Do(device, func() (any, error) {
		m.mu.Lock()
		if s, ok := m.named[device]; ok {
			m.mu.Unlock()
			return s, nil
		}
		m.mu.Unlock()

		s, err := m.backend.Open(device, m.stream)
		if err != nil {
			return nil, &model.DeviceError{Device: device, Err: err}
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			s.Close()
			return nil, errClosed
		}
		m.named[device] = s
		m.mu.Unlock()
		m.log.Infof("Opened %s for per-binding output", displayName(device))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(output.Sink), nil
}

// load returns the decoded buffer for an absolute path, decoding at most
// once no matter how many callers race on a cold cache.
func (m *Manager) load(path string) (*audio.Buffer, error) {
	m.mu.Lock()
	buf, ok := m.cache[path]
	m.mu.Unlock()
	if ok {
		return buf, nil
	}

	v, err, _ := m.group.Do(path, func() (any, error) {
		m.mu.Lock()
		buf, ok := m.cache[path]
		m.mu.Unlock()
		if ok {
			return buf, nil
		}

		buf, err := m.decoder.Decode(m.ctx, path)
		if err != nil {
			return nil, &model.DecodeError{Path: path, Err: err}
		}

		m.mu.Lock()
		m.cache[path] = buf
		m.mu.Unlock()
		m.log.Debugf("Decoded %s (%d frames, %d Hz)", path, buf.Frames(), buf.SampleRate)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*audio.Buffer), nil
}

// Preload decodes paths into the cache ahead of first use. Missing and
// undecodable files are reported through the returned error.
func (m *Manager) Preload(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	var (
		errMu sync.Mutex
		errs  []error
	)
	for _, p := range paths {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			path, err := utils.ResolvePath(p)
			if err == nil {
				if !utils.FileExists(path) {
					err = &model.MissingFileError{Path: p}
				} else {
					_, err = m.load(path)
				}
			}
			if err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// StopAll halts every sounding voice on every open device. The cache is kept.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	sinks := m.sinks()
	m.mu.Unlock()

	n := 0
	for _, s := range sinks {
		n += s.Mixer().StopAll()
	}
	m.log.Debugf("Stopped %d voices", n)
	return n
}

// Active returns the number of voices currently queued on all devices.
func (m *Manager) Active() int {
	m.mu.Lock()
	sinks := m.sinks()
	m.mu.Unlock()

	n := 0
	for _, s := range sinks {
		n += s.Mixer().Active()
	}
	return n
}

// Cached returns the number of decoded buffers held.
func (m *Manager) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// Busy reports whether the binding's last voice is still audible.
func (m *Manager) Busy(bindingID string) bool {
	return m.busy(bindingID)
}

// Wait blocks until every queued request has been handled.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops playback and releases all devices. The backend itself is
// left open for its owner to close.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	sinks := m.sinks()
	m.sink = nil
	clear(m.named)
	m.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sinks must be called with m.mu held.
func (m *Manager) sinks() []output.Sink {
	out := make([]output.Sink, 0, 1+len(m.named))
	if m.sink != nil {
		out = append(out, m.sink)
	}
	for _, s := range m.named {
		out = append(out, s)
	}
	return out
}

func (m *Manager) warn(err error) {
	m.log.Warnf("%v", err)
	if m.onWarn != nil {
		m.onWarn(err)
	}
}

func displayName(device string) string {
	if device == output.DefaultDevice {
		return "default"
	}
	return device
}
