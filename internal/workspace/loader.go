package workspace

import (
	"context"

	"github.com/standardbeagle/lwi/internal/types"
)

// Loader is the narrow contract with the semantic-analysis engine: given
// descriptors and source text, produce snapshots with resolvable symbols.
// The synchronizer never looks behind this interface.
type Loader interface {
	// LoadGraph builds a complete snapshot from the top-level graph
	// descriptor, discarding any prior state.
	LoadGraph(ctx context.Context, solutionPath string) (*Snapshot, error)

	// LoadProject rebuilds the single project owning descriptorPath
	// within current, sharing every other project. Implementations fall
	// back to a full graph reload when the descriptor is not part of the
	// current snapshot.
	LoadProject(ctx context.Context, current *Snapshot, descriptorPath string) (*Snapshot, error)

	// ParseUnit extracts the declared symbols from one source unit's
	// content. Pure with respect to workspace state.
	ParseUnit(path string, content []byte) []types.SymbolRef
}
