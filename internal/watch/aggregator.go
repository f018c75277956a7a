// Package watch turns raw file system notifications into debounced,
// classified change batches and hands them to the synchronizer. It also
// filters out echoes of changes the synchronizer itself is processing.
package watch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lwi/internal/classify"
	"github.com/standardbeagle/lwi/internal/debug"
	"github.com/standardbeagle/lwi/internal/types"
)

// Applier receives one debounced change batch at a time.
type Applier interface {
	Apply(ctx context.Context, batch map[string]classify.Category) error
}

// contentMark records what a file looked like when its batch was flushed.
// Events arriving for a marked path while the batch is in flight are
// compared against it to decide whether they carry new content.
type contentMark struct {
	hash    uint64
	missing bool
}

// Aggregator buffers classified change events until the workspace has
// been quiet for the debounce window, then flushes them as one batch.
// At most one batch is in flight at any time.
type Aggregator struct {
	applier  Applier
	debounce time.Duration

	mu       sync.Mutex
	pending  map[string]classify.Category
	deferred map[string]classify.Category
	marks    map[string]contentMark
	inFlight bool
	timer    *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Watch statistics
	statsMu    sync.RWMutex
	stats      Stats
	lastEvent  time.Time
	onComplete func() // test synchronization hook
}

// Stats are cumulative counters for one aggregator lifetime.
type Stats struct {
	EventsSeen     int64
	BatchesApplied int64
	BatchesFailed  int64
	Suppressed     int64
	Deferred       int64
}

// NewAggregator creates an aggregator feeding batches into applier.
// debounce zero selects the default quiescence window.
func NewAggregator(applier Applier, debounce time.Duration) *Aggregator {
	if debounce <= 0 {
		debounce = types.DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		applier:  applier,
		debounce: debounce,
		pending:  make(map[string]classify.Category),
		deferred: make(map[string]classify.Category),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnApplyComplete registers a callback invoked after each batch
// finishes applying. Used by tests to synchronize without sleeping.
func (a *Aggregator) SetOnApplyComplete(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onComplete = fn
}

// AddEvent records one classified change. During an in-flight batch,
// events for files that batch snapshotted are checked for new content:
// unchanged files are echoes of our own processing and are dropped,
// changed files are deferred until the batch completes.
func (a *Aggregator) AddEvent(path string, cat classify.Category) {
	if cat == classify.CategoryNone {
		return
	}

	a.statsMu.Lock()
	a.stats.EventsSeen++
	a.lastEvent = time.Now()
	a.statsMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inFlight {
		if mark, tracked := a.marks[path]; tracked {
			if a.matchesMark(path, mark) {
				debug.LogWatch("suppressing self-caused event for %s\n", path)
				a.statsMu.Lock()
				a.stats.Suppressed++
				a.statsMu.Unlock()
				return
			}
			debug.LogWatch("deferring changed file %s until batch completes\n", path)
			a.deferred[path] = cat
			a.statsMu.Lock()
			a.stats.Deferred++
			a.statsMu.Unlock()
			return
		}
		// Unrelated to the in-flight batch: buffers for the next one.
	}

	a.pending[path] = cat
	a.resetTimerLocked()
}

// matchesMark reports whether path's current content still matches its
// flush-time mark. A file we cannot read is treated as matching: the
// safe reading of an ambiguous event is that it is our own.
func (a *Aggregator) matchesMark(path string, mark contentMark) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return mark.missing
		}
		return true
	}
	return !mark.missing && xxhash.Sum64(content) == mark.hash
}

// resetTimerLocked restarts the quiescence countdown. Caller holds mu.
func (a *Aggregator) resetTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.flush)
}

// flush moves the pending set into an in-flight batch. Skipped while a
// batch is already applying; completion restarts the timer if anything
// accumulated meanwhile.
func (a *Aggregator) flush() {
	a.mu.Lock()
	if a.inFlight || len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	if a.ctx.Err() != nil {
		a.mu.Unlock()
		return
	}

	batch := a.pending
	a.pending = make(map[string]classify.Category)
	a.marks = nil
	a.inFlight = true
	a.wg.Add(1)
	a.mu.Unlock()

	// Hashing reads every batched file from disk, so it runs outside the
	// lock; event ingestion must never block behind file I/O. Events for
	// batch paths arriving in this window find no mark and buffer into
	// the pending set, which only costs a redundant reapply.
	marks := snapshotMarks(batch)
	a.mu.Lock()
	a.marks = marks
	a.mu.Unlock()

	debug.LogWatch("flushing batch of %d changes\n", len(batch))
	go a.runApply(batch)
}

// snapshotMarks hashes every file in the batch as of flush time.
func snapshotMarks(batch map[string]classify.Category) map[string]contentMark {
	marks := make(map[string]contentMark, len(batch))
	for path := range batch {
		content, err := os.ReadFile(path)
		if err != nil {
			marks[path] = contentMark{missing: true}
			continue
		}
		marks[path] = contentMark{hash: xxhash.Sum64(content)}
	}
	return marks
}

// runApply drives one batch through the applier and then releases the
// in-flight slot, replaying any deferred changes. The slot is released
// on every path out, including cancellation.
func (a *Aggregator) runApply(batch map[string]classify.Category) {
	defer a.wg.Done()

	err := a.applier.Apply(a.ctx, batch)

	a.statsMu.Lock()
	if err != nil {
		a.stats.BatchesFailed++
	} else {
		a.stats.BatchesApplied++
	}
	a.statsMu.Unlock()
	if err != nil {
		debug.LogWatch("batch apply failed: %v\n", err)
	}

	a.completeApply()
}

// completeApply clears the in-flight state and moves deferred changes to
// the pending set for the next batch.
func (a *Aggregator) completeApply() {
	a.mu.Lock()
	a.inFlight = false
	a.marks = nil
	for path, cat := range a.deferred {
		a.pending[path] = cat
	}
	a.deferred = make(map[string]classify.Category)
	if len(a.pending) > 0 && a.ctx.Err() == nil {
		a.resetTimerLocked()
	}
	callback := a.onComplete
	a.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// PendingCount returns the number of buffered changes not yet flushed.
func (a *Aggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// InFlight reports whether a batch is currently applying.
func (a *Aggregator) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// GetStats returns a copy of the cumulative counters and the time of the
// most recent event.
func (a *Aggregator) GetStats() (Stats, time.Time) {
	a.statsMu.RLock()
	defer a.statsMu.RUnlock()
	return a.stats, a.lastEvent
}

// Shutdown cancels any in-flight apply and waits for it to finish.
// Buffered changes are discarded.
func (a *Aggregator) Shutdown() {
	a.cancel()
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	a.wg.Wait()
}
