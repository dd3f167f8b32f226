package hotpad

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/himanishpuri/HotRandomPad/internal/audio"
	"github.com/himanishpuri/HotRandomPad/internal/engine"
	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/output"
	"github.com/himanishpuri/HotRandomPad/internal/playback"
	"github.com/himanishpuri/HotRandomPad/internal/preset"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
	"github.com/himanishpuri/HotRandomPad/internal/storage"
	"github.com/himanishpuri/HotRandomPad/internal/watcher"
	"github.com/himanishpuri/HotRandomPad/pkg/logger"
)

type (
	Hook     = engine.Hook
	KeyEvent = engine.KeyEvent
)

var (
	ErrUnknownBinding = engine.ErrUnknownBinding
	ErrValidation     = model.ErrValidation
	ErrDevice         = model.ErrDevice
	ErrDecode         = model.ErrDecode
	ErrMissingFile    = model.ErrMissingFile
)

// hotpadService is the default implementation of the Service interface.
type hotpadService struct {
	storage    Storage
	ownStorage bool
	backend    output.Backend
	ownBackend bool
	player     *playback.Manager
	engine     *engine.Engine
	norm       keys.Normalizer
	log        *logger.Logger
	config     *Config

	mu      sync.Mutex
	watcher *watcher.FileWatcher
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	s := &hotpadService{
		norm:   keys.Normalizer{FoldSides: cfg.FoldSides},
		log:    cfg.Logger,
		config: cfg,
	}

	if cfg.Storage != nil {
		s.storage = cfg.Storage
	} else {
		stor, err := NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		s.storage = stor
		s.ownStorage = true
	}

	if cfg.OutputDriver != nil {
		s.backend = cfg.OutputDriver
	} else {
		b, err := output.NewBackend(cfg.Backend)
		if err != nil {
			s.closeStorage()
			return nil, err
		}
		s.backend = b
		s.ownBackend = true
	}

	device := cfg.Device
	if device == "" {
		saved, err := s.storage.SelectedDevice()
		if err != nil {
			s.log.Warnf("reading selected device: %v", err)
		}
		device = saved
	}

	player, err := playback.NewManager(playback.Config{
		Backend: s.backend,
		Stream: output.StreamConfig{
			SampleRate:   cfg.SampleRate,
			BufferFrames: cfg.BufferFrames,
		},
		Decoder: &audio.Decoder{
			FFmpeg:  cfg.FFmpeg,
			TempDir: cfg.TempDir,
			Timeout: cfg.DecodeTimeout,
		},
		Device:    device,
		Logger:    s.log.With("playback"),
		OnWarning: s.warn,
	})
	if err != nil {
		s.closeBackend()
		s.closeStorage()
		return nil, err
	}
	s.player = player

	sel := selection.New()
	if cfg.Seed != nil {
		sel = selection.NewSeeded(cfg.Seed[0], cfg.Seed[1])
	}

	eng, err := engine.New(engine.Options{
		Store:      s.storage,
		Player:     player,
		Selector:   sel,
		Normalizer: s.norm,
		Logger:     s.log.With("engine"),
		OnWarning:  s.warn,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = eng

	if err := eng.Load(); err != nil {
		s.Close()
		return nil, err
	}
	s.log.Debugf("Loaded %d bindings, output %q", len(eng.Hotkeys()), player.Device())
	return s, nil
}

// AddBinding validates b, stores it (replacing a binding with the same
// hotkey) and makes it live.
func (s *hotpadService) AddBinding(b Binding) error {
	m, err := b.toModel(s.norm)
	if err != nil {
		return err
	}
	if existing, err := s.storage.GetBinding(m.Hotkey); err == nil {
		m.Cursor = existing.Cursor
	} else if !errors.Is(err, storage.ErrBindingNotFound) {
		return err
	}

	if err := s.storage.SaveBinding(m); err != nil {
		return err
	}
	s.log.Infof("Saved binding %q (%s)", m.Hotkey, m.Chord.Label())
	return s.Reload()
}

func (s *hotpadService) RemoveBinding(hotkey string) error {
	if err := s.storage.DeleteBinding(hotkey); err != nil {
		return err
	}
	s.log.Infof("Removed binding %q", hotkey)
	return s.Reload()
}

// ListBindings returns the live bindings with their current cursors.
func (s *hotpadService) ListBindings() []Binding {
	live := s.engine.Bindings()
	out := make([]Binding, 0, len(live))
	for _, b := range live {
		out = append(out, fromModel(b))
	}
	return out
}

// Reload re-reads bindings from storage into the engine.
func (s *hotpadService) Reload() error {
	s.engine.Flush()
	return s.engine.Load()
}

func (s *hotpadService) Trigger(hotkey string) error {
	return s.engine.Trigger(hotkey)
}

func (s *hotpadService) KeyDown(key string) ([]string, error) {
	tok, err := s.norm.Parse(key)
	if err != nil {
		return nil, err
	}
	return s.engine.OnKeyDown(tok), nil
}

func (s *hotpadService) KeyUp(key string) error {
	tok, err := s.norm.Parse(key)
	if err != nil {
		return err
	}
	s.engine.OnKeyUp(tok)
	return nil
}

// Listen feeds events from hook into the engine until ctx is done or the
// hook runs out of events.
func (s *hotpadService) Listen(ctx context.Context, hook Hook) error {
	if err := s.engine.Start(ctx, hook); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.engine.Done():
	}
	return s.engine.Stop()
}

// SetDevice switches output and remembers the choice. When the device
// cannot be opened output falls back to the default and the error is
// returned; the choice is not remembered.
func (s *hotpadService) SetDevice(name string) error {
	if err := s.engine.SetDevice(name); err != nil {
		return err
	}
	return s.storage.SetSelectedDevice(name)
}

func (s *hotpadService) Device() string {
	return s.player.Device()
}

func (s *hotpadService) Devices() ([]string, error) {
	return s.backend.Devices()
}

func (s *hotpadService) StopAll() int {
	return s.engine.StopAll()
}

// Preload decodes every file referenced by a live binding.
func (s *hotpadService) Preload(ctx context.Context) error {
	var paths []string
	seen := make(map[string]bool)
	for _, b := range s.engine.Bindings() {
		for _, f := range b.Files {
			if !seen[f] {
				seen[f] = true
				paths = append(paths, f)
			}
		}
	}
	return s.player.Preload(ctx, paths)
}

// ImportPreset replaces every binding with the preset's. Mappings that fail
// validation are skipped and returned as warnings.
func (s *hotpadService) ImportPreset(path string) ([]error, error) {
	p, err := preset.ReadFile(path, s.norm)
	if err != nil {
		return nil, err
	}
	warnings := p.Warnings

	// Pending cursor writes target the old rows; land them first.
	s.engine.Flush()
	if err := s.storage.ReplaceBindings(p.Bindings); err != nil {
		return warnings, err
	}
	if p.SelectedDevice != "" && p.SelectedDevice != s.player.Device() {
		if err := s.SetDevice(p.SelectedDevice); err != nil {
			warnings = append(warnings, err)
		}
	}
	s.log.Infof("Imported %d bindings from %s", len(p.Bindings), path)
	return warnings, s.engine.Restore()
}

// ExportPreset writes the live bindings, including selection progress.
func (s *hotpadService) ExportPreset(path string) error {
	device, err := s.storage.SelectedDevice()
	if err != nil {
		return err
	}
	p := &preset.Preset{
		SelectedDevice: device,
		Bindings:       s.engine.Bindings(),
	}
	if err := preset.WriteFile(path, p); err != nil {
		return err
	}
	s.log.Infof("Exported %d bindings to %s", len(p.Bindings), path)
	return nil
}

// WatchPreset re-imports path whenever it changes on disk.
func (s *hotpadService) WatchPreset(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return errors.New("already watching a preset")
	}

	w, err := watcher.New(path, func(p string) {
		warnings, err := s.ImportPreset(p)
		for _, w := range warnings {
			s.warn(w)
		}
		if err != nil {
			s.warn(fmt.Errorf("reloading preset %s: %w", p, err))
		}
	}, watcher.WithLogger(s.log.With("watcher")))
	if err != nil {
		return err
	}
	s.watcher = w
	s.log.Infof("Watching preset %s", w.Path())
	return nil
}

// Wait blocks until queued playback has started and cursors are stored.
func (s *hotpadService) Wait() {
	s.player.Wait()
	s.engine.Flush()
}

func (s *hotpadService) Close() error {
	var errs []error

	s.mu.Lock()
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
		s.watcher = nil
	}
	s.mu.Unlock()

	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	if s.player != nil {
		errs = append(errs, s.player.Close())
	}
	errs = append(errs, s.closeBackend(), s.closeStorage())
	return errors.Join(errs...)
}

func (s *hotpadService) closeBackend() error {
	if s.ownBackend && s.backend != nil {
		return s.backend.Close()
	}
	return nil
}

func (s *hotpadService) closeStorage() error {
	if s.ownStorage && s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

func (s *hotpadService) warn(err error) {
	if s.config.OnWarning != nil {
		s.config.OnWarning(err)
	}
}
