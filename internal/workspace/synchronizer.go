package workspace

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/standardbeagle/lwi/internal/classify"
	"github.com/standardbeagle/lwi/internal/debug"
	lwierrors "github.com/standardbeagle/lwi/internal/errors"
	"github.com/standardbeagle/lwi/internal/index"
	"github.com/standardbeagle/lwi/internal/types"
)

// Synchronizer turns batches of classified file changes into new snapshots
// and installs them with optimistic concurrency. On every successful
// install the symbol index is rebuilt from the new snapshot and published
// atomically. All collaborators arrive through the constructor; there is
// no ambient global state.
type Synchronizer struct {
	store   *Store
	loader  Loader
	idx     *index.Ref
	backoff time.Duration
}

// NewSynchronizer wires a synchronizer to its snapshot store, loader, and
// published index reference. backoff is the pause between conflict
// retries; zero selects the default.
func NewSynchronizer(store *Store, loader Loader, idx *index.Ref, backoff time.Duration) *Synchronizer {
	if backoff <= 0 {
		backoff = types.DefaultRetryBackoff
	}
	return &Synchronizer{
		store:   store,
		loader:  loader,
		idx:     idx,
		backoff: backoff,
	}
}

// CurrentSnapshot returns the shared current snapshot; lock-free.
func (s *Synchronizer) CurrentSnapshot() *Snapshot {
	return s.store.Current()
}

// Index returns the published symbol index reference.
func (s *Synchronizer) Index() *index.Ref {
	return s.idx
}

// Search runs an exact or wildcard symbol lookup against the currently
// published index.
func (s *Synchronizer) Search(pattern string) []types.SymbolRef {
	return s.idx.Load().SearchAll(pattern)
}

// Apply processes one debounced change batch. Conflicting snapshot swaps
// are retried against the then-current snapshot after a fixed backoff
// until success or cancellation; reload failures abort the batch with the
// prior snapshot left authoritative.
func (s *Synchronizer) Apply(ctx context.Context, batch map[string]classify.Category) error {
	if len(batch) == 0 {
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := s.store.Current()
		candidate, err := s.buildCandidate(ctx, current, batch)
		if err != nil {
			// Reload failure: keep serving the previous snapshot. The
			// next external trigger retries naturally.
			log.Printf("Warning: change batch aborted, keeping snapshot generation %d: %v", current.Generation, err)
			return err
		}
		if candidate == current {
			debug.LogSync("batch of %d produced no snapshot change\n", len(batch))
			return nil
		}

		if s.store.CompareAndSwap(current, candidate) {
			debug.LogSync("installed snapshot generation %d (%d units, %d symbols)\n",
				candidate.Generation, candidate.UnitCount(), candidate.SymbolCount())
			s.RebuildIndex(candidate)
			return nil
		}

		// Snapshot moved while we were building. Never merge: rebuild
		// against the latest observed state after a short pause.
		debug.LogSync("snapshot moved during apply, retrying after %v\n", s.backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

// buildCandidate constructs the new snapshot for a batch against current,
// in descending category priority.
func (s *Synchronizer) buildCandidate(ctx context.Context, current *Snapshot, batch map[string]classify.Category) (*Snapshot, error) {
	var graphPath string
	var projectPaths []string
	var unitPaths []string

	for path, cat := range batch {
		switch cat {
		case classify.CategoryGraph:
			graphPath = path
		case classify.CategoryProject:
			projectPaths = append(projectPaths, path)
		case classify.CategoryUnit:
			unitPaths = append(unitPaths, path)
		}
	}

	// A graph reload supersedes everything else in the batch: every
	// finer-grained change is captured by reloading.
	if graphPath != "" {
		debug.LogSync("graph descriptor changed, full reload from %s\n", graphPath)
		return s.loader.LoadGraph(ctx, graphPath)
	}

	// Descriptor-level membership changes cannot be expressed as
	// incremental document edits without risking an inconsistent
	// membership view, so project descriptors force a reload.
	if len(projectPaths) > 0 {
		snap := current
		reloaded := make(map[string]struct{}, len(projectPaths))
		for _, p := range projectPaths {
			debug.LogSync("project descriptor changed, reloading %s\n", p)
			next, err := s.loader.LoadProject(ctx, snap, p)
			if err != nil {
				return nil, err
			}
			snap = next
			reloaded[p] = struct{}{}
		}
		// A project reload only recaptures units inside that project.
		// Unit changes owned by other projects in the same batch still
		// have to be applied.
		remaining := unitPaths[:0]
		for _, path := range unitPaths {
			if owner := snap.ProjectForPath(path); owner != nil {
				if _, ok := reloaded[owner.DescriptorPath]; ok {
					continue
				}
			}
			remaining = append(remaining, path)
		}
		return s.applyUnitChanges(ctx, snap, remaining)
	}

	return s.applyUnitChanges(ctx, current, unitPaths)
}

// applyUnitChanges handles a pure source-unit batch: in-place updates,
// additions, and deletion escalation.
func (s *Synchronizer) applyUnitChanges(ctx context.Context, current *Snapshot, unitPaths []string) (*Snapshot, error) {
	snap := current
	var deleted []string

	// Deletions first: a batch containing any deletion escalates to a
	// full reload of the owning project, because membership removal has
	// to be observed from the descriptor, not synthesized in place.
	for _, path := range unitPaths {
		if len(snap.FindUnitsByPath(path)) > 0 {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				deleted = append(deleted, path)
			}
		}
	}
	if len(deleted) > 0 {
		reloaded, err := s.reloadOwners(ctx, snap, deleted)
		if err != nil {
			return nil, err
		}
		snap = reloaded
	}

	for _, path := range unitPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ids := snap.FindUnitsByPath(path)
		if len(ids) > 0 {
			content, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					// Deletion already handled by owner reload above.
					continue
				}
				// Unit read failure drops this single change, not the batch.
				log.Printf("Warning: %v", lwierrors.NewUnitError("read", path, err))
				continue
			}
			symbols := s.loader.ParseUnit(path, content)
			for _, id := range ids {
				snap = snap.WithUpdatedUnit(id, content, symbols)
			}
			debug.LogSync("updated unit %s in place (%d symbols)\n", path, len(symbols))
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("Warning: %v", lwierrors.NewUnitError("read", path, err))
			}
			// Untracked and gone: nothing to do.
			continue
		}
		owner := snap.ProjectForPath(path)
		if owner == nil {
			debug.LogSync("no owning project root for %s, dropping change\n", path)
			continue
		}
		folder := FolderForPath(owner.RootDir, path)
		symbols := s.loader.ParseUnit(path, content)
		snap = snap.WithAddedUnit(owner.ID, path, content, folder, symbols)
		debug.LogSync("added unit %s to project %s (%d symbols)\n", path, owner.Name, len(symbols))
	}

	return snap, nil
}

// reloadOwners reloads the distinct projects owning the deleted paths,
// falling back to a full graph reload when an owner cannot be resolved.
func (s *Synchronizer) reloadOwners(ctx context.Context, snap *Snapshot, deleted []string) (*Snapshot, error) {
	owners := make(map[types.ProjectID]*Project)
	for _, path := range deleted {
		resolved := false
		for _, id := range snap.FindUnitsByPath(path) {
			if _, owner, ok := snap.Unit(id); ok {
				owners[owner.ID] = owner
				resolved = true
			}
		}
		if !resolved {
			debug.LogSync("deleted unit %s has no resolvable owner, full graph reload\n", path)
			return s.loader.LoadGraph(ctx, snap.SolutionPath)
		}
	}

	out := snap
	for _, owner := range owners {
		debug.LogSync("unit deletion escalated to reload of project %s\n", owner.Name)
		next, err := s.loader.LoadProject(ctx, out, owner.DescriptorPath)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// RebuildIndex repopulates the published symbol index from snap. The new
// index is built aside and swapped in whole, so concurrent readers never
// observe a partially populated index.
func (s *Synchronizer) RebuildIndex(snap *Snapshot) {
	fresh := index.NewSymbolIndex()
	for ref := range snap.AllSymbols() {
		fresh.Add(ref.Name, ref)
	}
	s.idx.Swap(fresh)
	debug.LogIndex("rebuilt symbol index: %d refs from snapshot generation %d\n", fresh.Len(), snap.Generation)
}
