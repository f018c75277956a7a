package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/lwi/internal/classify"
	"github.com/standardbeagle/lwi/internal/debug"
	"github.com/standardbeagle/lwi/internal/types"
)

// Watcher monitors the workspace tree and feeds classified events into
// the aggregator. Directories are watched recursively; new directories
// pick up watches as they appear.
type Watcher struct {
	watcher     *fsnotify.Watcher
	aggregator  *Aggregator
	root        string
	excludes    []string
	maxFileSize int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over root. excludes are doublestar
// patterns matched against slash-separated paths relative to root.
// maxFileSize zero selects the default oversized-file cutoff.
func NewWatcher(aggregator *Aggregator, root string, excludes []string, maxFileSize int64) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if maxFileSize <= 0 {
		maxFileSize = types.DefaultMaxFileSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:     fsw,
		aggregator:  aggregator,
		root:        filepath.Clean(root),
		excludes:    excludes,
		maxFileSize: maxFileSize,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start adds recursive watches under the root and begins dispatching
// events.
func (w *Watcher) Start() error {
	debug.LogWatch("starting watcher for %s\n", w.root)
	if err := w.addWatches(w.root); err != nil {
		return fmt.Errorf("failed to add watches under %s: %w", w.root, err)
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop shuts down event dispatch. The aggregator keeps running; callers
// shut it down separately once no more events can arrive.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// addWatches walks the tree adding a watch per directory. Symlink cycles
// are broken by tracking resolved real paths.
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if w.excludedDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

// processEvents drains the fsnotify channels until shutdown.
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// handleEvent filters and classifies one raw notification.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogWatch("event %v for %s\n", event.Op, path)

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.excluded(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Gone already: removals of tracked files still matter.
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.aggregator.AddEvent(path, classify.Classify(path))
		}
		return
	}

	if info.IsDir() {
		// New subtrees need watches before their contents produce events.
		if event.Op&fsnotify.Create != 0 && !w.excludedDir(path) {
			if err := w.addWatches(path); err != nil {
				log.Printf("Warning: failed to watch new directory %s: %v", path, err)
			}
		}
		return
	}

	if info.Size() > w.maxFileSize {
		debug.LogWatch("skipping oversized file %s (%d bytes)\n", path, info.Size())
		return
	}

	w.aggregator.AddEvent(path, classify.Classify(path))
}

// excluded reports whether path matches any exclude pattern.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// excludedDir reports whether a directory is excluded, treating trailing
// "/**" patterns as excluding the directory itself.
func (w *Watcher) excludedDir(path string) bool {
	if w.excluded(path) {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.excludes {
		dirPattern := strings.TrimSuffix(pattern, "/**")
		if dirPattern == pattern {
			continue
		}
		if ok, _ := doublestar.Match(dirPattern, rel); ok {
			return true
		}
	}
	return false
}
