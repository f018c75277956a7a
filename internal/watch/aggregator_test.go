package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/lwi/internal/classify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedApplier records every batch it receives and can hold a batch
// in flight until released.
type scriptedApplier struct {
	mu      sync.Mutex
	batches []map[string]classify.Category

	started chan struct{} // signalled when a batch begins
	release chan struct{} // apply blocks until this closes (when set)
}

func newScriptedApplier() *scriptedApplier {
	return &scriptedApplier{started: make(chan struct{}, 16)}
}

func (s *scriptedApplier) Apply(ctx context.Context, batch map[string]classify.Category) error {
	copied := make(map[string]classify.Category, len(batch))
	for k, v := range batch {
		copied[k] = v
	}
	s.mu.Lock()
	s.batches = append(s.batches, copied)
	release := s.release
	s.mu.Unlock()

	s.started <- struct{}{}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *scriptedApplier) applied() []map[string]classify.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]classify.Category, len(s.batches))
	copy(out, s.batches)
	return out
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// completeSignal returns a channel receiving one value per finished
// batch.
func completeSignal(a *Aggregator) chan struct{} {
	done := make(chan struct{}, 16)
	a.SetOnApplyComplete(func() { done <- struct{}{} })
	return done
}

func waitSignal(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for aggregator")
	}
}

func TestBurstCollapsesIntoOneBatch(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "A.cs", "class A {}")
	b := writeTestFile(t, dir, "B.cs", "class B {}")

	applier := newScriptedApplier()
	agg := NewAggregator(applier, 30*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	agg.AddEvent(a, classify.CategoryUnit)
	agg.AddEvent(a, classify.CategoryUnit)
	agg.AddEvent(a, classify.CategoryUnit)
	agg.AddEvent(b, classify.CategoryUnit)
	waitSignal(t, done)

	batches := applier.applied()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, classify.CategoryUnit, batches[0][a])
	assert.Equal(t, classify.CategoryUnit, batches[0][b])
}

func TestEventsDuringBurstResetTimer(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "A.cs", "class A {}")

	applier := newScriptedApplier()
	agg := NewAggregator(applier, 300*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	// Keep poking before the window elapses; nothing may flush yet.
	for i := 0; i < 4; i++ {
		agg.AddEvent(a, classify.CategoryUnit)
		time.Sleep(30 * time.Millisecond)
	}
	assert.Empty(t, applier.applied())

	waitSignal(t, done)
	assert.Len(t, applier.applied(), 1)
}

func TestSelfCausedEventSuppressed(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "A.cs", "class A {}")

	applier := newScriptedApplier()
	applier.release = make(chan struct{})
	agg := NewAggregator(applier, 20*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	agg.AddEvent(a, classify.CategoryUnit)
	waitSignal(t, applier.started)

	// Content unchanged since flush: the event is an echo of our own
	// processing and must vanish.
	agg.AddEvent(a, classify.CategoryUnit)

	close(applier.release)
	waitSignal(t, done)

	assert.Len(t, applier.applied(), 1)
	assert.Equal(t, 0, agg.PendingCount())
	stats, _ := agg.GetStats()
	assert.Equal(t, int64(1), stats.Suppressed)
	assert.Equal(t, int64(0), stats.Deferred)
}

func TestChangedFileDeferredAndReprocessed(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "A.cs", "class A {}")

	applier := newScriptedApplier()
	applier.release = make(chan struct{})
	agg := NewAggregator(applier, 20*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	agg.AddEvent(a, classify.CategoryUnit)
	waitSignal(t, applier.started)

	// Real edit while the batch is in flight: must come back around.
	writeTestFile(t, dir, "A.cs", "class A { void M() {} }")
	agg.AddEvent(a, classify.CategoryUnit)

	stats, _ := agg.GetStats()
	assert.Equal(t, int64(1), stats.Deferred)

	// A closed channel also releases the follow-up batch.
	close(applier.release)
	waitSignal(t, done) // first batch completes
	waitSignal(t, applier.started)
	waitSignal(t, done) // deferred change reprocessed

	batches := applier.applied()
	require.Len(t, batches, 2)
	assert.Contains(t, batches[1], a)
}

func TestShutdownCancelsInFlightApply(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "A.cs", "class A {}")

	applier := newScriptedApplier()
	applier.release = make(chan struct{}) // never released; apply must exit via ctx
	agg := NewAggregator(applier, 20*time.Millisecond)

	agg.AddEvent(a, classify.CategoryUnit)
	waitSignal(t, applier.started)

	agg.Shutdown()

	stats, _ := agg.GetStats()
	assert.Equal(t, int64(1), stats.BatchesFailed)
	assert.False(t, agg.InFlight())
}

func TestUnrelatedPathBuffersDuringApply(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "A.cs", "class A {}")
	b := writeTestFile(t, dir, "B.cs", "class B {}")

	applier := newScriptedApplier()
	applier.release = make(chan struct{})
	agg := NewAggregator(applier, 20*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	agg.AddEvent(a, classify.CategoryUnit)
	waitSignal(t, applier.started)

	// b was not part of the in-flight batch: no suppression check, it
	// simply waits for the next one.
	agg.AddEvent(b, classify.CategoryUnit)
	assert.Equal(t, 1, agg.PendingCount())

	close(applier.release)
	waitSignal(t, done) // first batch
	waitSignal(t, applier.started)
	waitSignal(t, done) // second batch carries b

	batches := applier.applied()
	require.Len(t, batches, 2)
	assert.Contains(t, batches[1], b)
	assert.NotContains(t, batches[1], a)
}

func TestNoneCategoryIgnored(t *testing.T) {
	applier := newScriptedApplier()
	agg := NewAggregator(applier, 20*time.Millisecond)
	defer agg.Shutdown()

	agg.AddEvent("/tmp/readme.md", classify.CategoryNone)
	assert.Equal(t, 0, agg.PendingCount())
}

func TestMissingFileMarkTreatedAsSelfCaused(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "Gone.cs")

	applier := newScriptedApplier()
	applier.release = make(chan struct{})
	agg := NewAggregator(applier, 20*time.Millisecond)
	defer agg.Shutdown()
	done := completeSignal(agg)

	// The file never existed on disk; its mark records it as missing.
	agg.AddEvent(a, classify.CategoryUnit)
	waitSignal(t, applier.started)

	// Still missing: the event carries nothing new.
	agg.AddEvent(a, classify.CategoryUnit)

	close(applier.release)
	waitSignal(t, done)

	assert.Len(t, applier.applied(), 1)
	stats, _ := agg.GetStats()
	assert.Equal(t, int64(1), stats.Suppressed)
}

func TestEventDuringMarkSnapshotBuffers(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "A.cs", "class A {}")

	applier := newScriptedApplier()
	agg := NewAggregator(applier, time.Hour)
	defer agg.Shutdown()

	// Between taking a batch and installing its marks, flush hashes file
	// contents without holding the lock. An event landing in that window
	// has no mark to compare against and must buffer for the next batch,
	// not be mistaken for an echo.
	agg.mu.Lock()
	agg.inFlight = true
	agg.marks = nil
	agg.mu.Unlock()

	agg.AddEvent(path, classify.CategoryUnit)

	assert.Equal(t, 1, agg.PendingCount())
	stats, _ := agg.GetStats()
	assert.Zero(t, stats.Suppressed)
	assert.Zero(t, stats.Deferred)

	agg.mu.Lock()
	agg.inFlight = false
	agg.mu.Unlock()
}
