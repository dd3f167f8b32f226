package hotpad

import (
	"context"

	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
)

type Service interface {
	AddBinding(b Binding) error
	RemoveBinding(hotkey string) error
	ListBindings() []Binding
	Reload() error

	Trigger(hotkey string) error
	KeyDown(key string) ([]string, error)
	KeyUp(key string) error
	Listen(ctx context.Context, hook Hook) error

	SetDevice(name string) error
	Device() string
	Devices() ([]string, error)
	StopAll() int
	Preload(ctx context.Context) error

	ImportPreset(path string) ([]error, error)
	ExportPreset(path string) error
	WatchPreset(path string) error

	Wait()
	Close() error
}

// Storage is the persistence the service needs: bindings, selection
// cursors and the selected output device.
type Storage interface {
	ListBindings() ([]model.Binding, error)
	GetBinding(hotkey string) (model.Binding, error)
	SaveBinding(b model.Binding) error
	ReplaceBindings(bs []model.Binding) error
	DeleteBinding(hotkey string) error
	PersistCursor(hotkey string, cur selection.Cursor) error
	SelectedDevice() (string, error)
	SetSelectedDevice(name string) error
	Close() error
}
