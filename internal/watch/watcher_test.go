package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lwi/internal/classify"
)

func TestWatcherDeliversClassifiedEvents(t *testing.T) {
	dir := t.TempDir()

	applier := newScriptedApplier()
	agg := NewAggregator(applier, 50*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	w, err := NewWatcher(agg, dir, nil, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "Widget.cs")
	require.NoError(t, os.WriteFile(path, []byte("class Widget {}"), 0o644))

	waitSignal(t, done)
	batches := applier.applied()
	require.Len(t, batches, 1)
	assert.Equal(t, classify.CategoryUnit, batches[0][path])
}

func TestWatcherIgnoresExcludedAndUntrackedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "obj"), 0o755))

	applier := newScriptedApplier()
	agg := NewAggregator(applier, 50*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	w, err := NewWatcher(agg, dir, []string{"obj/**"}, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "obj", "Gen.cs"), []byte("class Gen {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o644))
	tracked := filepath.Join(dir, "Real.cs")
	require.NoError(t, os.WriteFile(tracked, []byte("class Real {}"), 0o644))

	waitSignal(t, done)
	batches := applier.applied()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Contains(t, batches[0], tracked)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()

	applier := newScriptedApplier()
	agg := NewAggregator(applier, 50*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	w, err := NewWatcher(agg, dir, nil, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	sub := filepath.Join(dir, "Models")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher a moment to register the new directory before
	// writing into it.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "User.cs")
	require.NoError(t, os.WriteFile(path, []byte("class User {}"), 0o644))

	waitSignal(t, done)
	found := false
	for _, b := range applier.applied() {
		if _, ok := b[path]; ok {
			found = true
		}
	}
	assert.True(t, found)
}
