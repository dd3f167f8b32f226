// Package engine wires the hotkey pipeline together:
//
//	key events -> chord.Matcher -> selection.Selector -> playback.Manager
//
// Matching and selection run synchronously on the caller's goroutine and
// never block on I/O. Playback and cursor persistence are handed off.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/himanishpuri/HotRandomPad/internal/chord"
	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/playback"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
	"github.com/himanishpuri/HotRandomPad/pkg/logger"
)

var ErrUnknownBinding = errors.New("unknown binding")

// BindingStore supplies bindings and keeps selection progress across restarts.
type BindingStore interface {
	ListBindings() ([]model.Binding, error)
	PersistCursor(bindingID string, cur selection.Cursor) error
}

// Player is the playback side the engine drives.
type Player interface {
	Play(req playback.Request)
	SetDevice(name string) error
	StopAll() int
}

type Options struct {
	Store      BindingStore
	Player     Player
	Selector   *selection.Selector
	Normalizer keys.Normalizer
	Logger     *logger.Logger
	// OnWarning receives non-fatal errors raised by the engine itself
	// (skipped bindings, failed cursor writes, device fallback).
	OnWarning func(error)
}

// slot is one registered binding plus its live cursor.
type slot struct {
	mu      sync.Mutex
	binding model.Binding
	cursor  selection.Cursor
}

type Engine struct {
	store   BindingStore
	player  Player
	sel     *selection.Selector
	norm    keys.Normalizer
	log     *logger.Logger
	onWarn  func(error)
	matcher *chord.Matcher
	persist *persister

	mu    sync.RWMutex
	slots map[string]*slot
	order []string

	runMu  sync.Mutex
	hook   Hook
	cancel context.CancelFunc
	loop   chan struct{}
}

func New(opts Options) (*Engine, error) {
	if opts.Player == nil {
		return nil, errors.New("engine: player is required")
	}
	if opts.Selector == nil {
		opts.Selector = selection.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger().With("engine")
	}

	e := &Engine{
		store:   opts.Store,
		player:  opts.Player,
		sel:     opts.Selector,
		norm:    opts.Normalizer,
		log:     opts.Logger,
		onWarn:  opts.OnWarning,
		matcher: chord.NewMatcher(),
		slots:   make(map[string]*slot),
	}
	e.persist = newPersister(opts.Store, e.warn)
	return e, nil
}

// Load registers every valid binding from the store. Invalid ones are
// skipped with a warning instead of failing the whole set.
func (e *Engine) Load() error {
	valid, err := e.loadValid()
	if err != nil {
		return err
	}
	return e.RegisterBindings(valid)
}

// Restore is Load for a store whose contents were replaced wholesale, as
// after a preset import: every binding takes its stored cursor, not the
// live one.
func (e *Engine) Restore() error {
	valid, err := e.loadValid()
	if err != nil {
		return err
	}
	return e.ReplaceBindings(valid)
}

func (e *Engine) loadValid() ([]model.Binding, error) {
	if e.store == nil {
		return nil, errors.New("engine: no binding store")
	}
	bindings, err := e.store.ListBindings()
	if err != nil {
		return nil, fmt.Errorf("loading bindings: %w", err)
	}

	valid := bindings[:0:0]
	seen := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			e.warn(err)
			continue
		}
		if seen[b.Hotkey] {
			e.warn(&model.ValidationError{Hotkey: b.Hotkey, Field: "hotkey", Reason: "duplicate label"})
			continue
		}
		seen[b.Hotkey] = true
		valid = append(valid, b)
	}
	return valid, nil
}

// RegisterBindings replaces the active binding set atomically. If any
// binding is invalid nothing changes. A binding keeping its hotkey keeps
// its live cursor; the matcher keeps its activation state when the chord is
// unchanged too.
func (e *Engine) RegisterBindings(bindings []model.Binding) error {
	return e.register(bindings, true)
}

// ReplaceBindings is RegisterBindings with every cursor taken from the
// incoming bindings. Cursor writes still queued for the old set are
// dropped so they cannot overwrite the new ones.
func (e *Engine) ReplaceBindings(bindings []model.Binding) error {
	if err := e.register(bindings, false); err != nil {
		return err
	}
	e.persist.discard()
	return nil
}

func (e *Engine) register(bindings []model.Binding, keepLive bool) error {
	if err := model.ValidateSet(bindings); err != nil {
		return err
	}

	next := make(map[string]*slot, len(bindings))
	order := make([]string, 0, len(bindings))
	entries := make([]chord.Entry, 0, len(bindings))

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, b := range bindings {
		b = b.Clone()
		b.Chord = e.foldChord(b.Chord)

		s := &slot{binding: b, cursor: b.Cursor.Clone()}
		if old, ok := e.slots[b.Hotkey]; ok && keepLive {
			old.mu.Lock()
			s.cursor = old.cursor.Clone()
			old.mu.Unlock()
		}
		next[b.Hotkey] = s
		order = append(order, b.Hotkey)
		entries = append(entries, chord.Entry{ID: b.Hotkey, Chord: b.Chord})
	}

	e.slots = next
	e.order = order
	e.matcher.Register(entries)

	for _, o := range model.FindOverlaps(bindings) {
		e.log.Infof("%q is contained in %q; pressing %q fires both", o.Inner, o.Outer, o.Outer)
	}
	e.log.Debugf("Registered %d bindings", len(bindings))
	return nil
}

func (e *Engine) foldChord(c keys.Chord) keys.Chord {
	if !e.norm.FoldSides {
		return c
	}
	folded := make([]keys.Token, len(c))
	for i, t := range c {
		folded[i] = e.norm.Fold(t)
	}
	return keys.NewChord(folded...)
}

// Bindings returns the registered bindings in registration order, each
// carrying its live cursor.
func (e *Engine) Bindings() []model.Binding {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.Binding, 0, len(e.order))
	for _, id := range e.order {
		s := e.slots[id]
		s.mu.Lock()
		b := s.binding.Clone()
		b.Cursor = s.cursor.Clone()
		s.mu.Unlock()
		out = append(out, b)
	}
	return out
}

// OnKeyDown feeds one key press and returns the ids of bindings it activated.
func (e *Engine) OnKeyDown(tok keys.Token) []string {
	if tok.IsNone() {
		return nil
	}
	tok = e.norm.Fold(tok)

	e.mu.RLock()
	ids := e.matcher.OnKeyDown(tok)
	slots := make([]*slot, 0, len(ids))
	for _, id := range ids {
		if s, ok := e.slots[id]; ok {
			slots = append(slots, s)
		}
	}
	e.mu.RUnlock()

	for _, s := range slots {
		e.activate(s)
	}
	return ids
}

// OnKeyUp feeds one key release. It never plays anything.
func (e *Engine) OnKeyUp(tok keys.Token) {
	if tok.IsNone() {
		return
	}
	e.matcher.OnKeyUp(e.norm.Fold(tok))
}

// Trigger activates a binding as if its chord had been pressed.
func (e *Engine) Trigger(bindingID string) error {
	e.mu.RLock()
	s, ok := e.slots[bindingID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBinding, bindingID)
	}
	e.activate(s)
	return nil
}

func (e *Engine) activate(s *slot) {
	s.mu.Lock()
	b := s.binding
	file, ok := e.sel.Next(b.Mode, b.Files, &s.cursor)
	cur := s.cursor.Clone()
	s.mu.Unlock()

	if !ok {
		e.log.Debugf("%s: nothing to play", b.Hotkey)
		return
	}
	e.persist.enqueue(b.Hotkey, cur)

	e.log.Debugf("%s -> %s", b.Hotkey, file)
	e.player.Play(playback.Request{
		BindingID:    b.Hotkey,
		Path:         file,
		Gain:         b.Volume,
		AllowOverlap: b.AllowOverlap,
		Device:       b.Device,
	})
}

// SetDevice switches the global output device. On failure the player has
// already fallen back to the default device; the error is also reported
// as a warning.
func (e *Engine) SetDevice(name string) error {
	if err := e.player.SetDevice(name); err != nil {
		e.warn(err)
		return err
	}
	return nil
}

func (e *Engine) StopAll() int {
	return e.player.StopAll()
}

// Start consumes events from hook until ctx ends, Stop is called or the hook
// closes its channel.
func (e *Engine) Start(ctx context.Context, hook Hook) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if hook == nil {
		return errors.New("engine: hook is required")
	}
	if e.hook != nil {
		return errors.New("engine already started")
	}

	events, err := hook.Start()
	if err != nil {
		return fmt.Errorf("starting key hook: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.hook = hook
	e.cancel = cancel
	e.loop = make(chan struct{})
	e.matcher.Reset()

	go e.run(ctx, events, e.loop)
	return nil
}

func (e *Engine) run(ctx context.Context, events <-chan KeyEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.dispatch(ev)
		}
	}
}

func (e *Engine) dispatch(ev KeyEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.warn(fmt.Errorf("key event %s %s: panic: %v", ev.Kind, ev.Token, r))
		}
	}()
	switch ev.Kind {
	case KeyDown:
		e.OnKeyDown(ev.Token)
	case KeyUp:
		e.OnKeyUp(ev.Token)
	}
}

// Done is closed when the event loop started by Start exits. It is nil
// before Start.
func (e *Engine) Done() <-chan struct{} {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.loop
}

// Stop ends the event loop and releases the hook.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.hook == nil {
		return nil
	}

	e.cancel()
	err := e.hook.Stop()
	<-e.loop
	e.hook = nil
	e.matcher.Reset()
	return err
}

// Flush waits for queued cursor writes.
func (e *Engine) Flush() {
	e.persist.Flush()
}

// Close stops the event loop and writes pending cursors.
func (e *Engine) Close() error {
	err := e.Stop()
	e.persist.Close()
	return err
}

// Hotkeys returns the registered hotkey labels, sorted.
func (e *Engine) Hotkeys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := slices.Clone(e.order)
	slices.Sort(out)
	return out
}

func (e *Engine) warn(err error) {
	e.log.Warnf("%v", err)
	if e.onWarn != nil {
		e.onWarn(err)
	}
}
