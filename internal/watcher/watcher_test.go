package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	var calls atomic.Int32
	changed := make(chan string, 8)
	w, err := New(path, func(p string) {
		calls.Add(1)
		changed <- p
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"mappings":{}}`), 0o644))
	}

	select {
	case got := <-changed:
		assert.Equal(t, w.Path(), got)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.json")

	changed := make(chan string, 1)
	w, err := New(path, func(p string) { changed <- p }, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))

	select {
	case <-changed:
		t.Fatal("sibling file change reported")
	case <-time.After(200 * time.Millisecond):
	}

	// The watched file may not exist when watching starts.
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("creation of watched file not reported")
	}
}

func TestFileWatcherMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "preset.json"), func(string) {})
	assert.Error(t, err)
}

func TestFileWatcherCloseTwice(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "p.json"), func(string) {})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
