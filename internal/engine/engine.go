// Package engine loads project graphs from on-disk descriptors and
// extracts declared symbols from source units. It sits behind the
// workspace loader contract; nothing else in the repo reaches into
// descriptor parsing directly.
package engine

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lwi/internal/debug"
	lwierrors "github.com/standardbeagle/lwi/internal/errors"
	"github.com/standardbeagle/lwi/internal/types"
	"github.com/standardbeagle/lwi/internal/workspace"
)

// Engine implements workspace.Loader over solution and project
// descriptors with tree-sitter symbol extraction.
type Engine struct {
	maxFileSize   int64
	nextProjectID atomic.Uint32
}

// New creates an engine. maxFileSize bounds individual source units;
// zero selects the default.
func New(maxFileSize int64) *Engine {
	if maxFileSize <= 0 {
		maxFileSize = types.DefaultMaxFileSize
	}
	return &Engine{maxFileSize: maxFileSize}
}

// LoadGraph builds a complete snapshot from the solution descriptor.
// Projects load concurrently; a single failing project descriptor fails
// the whole load so callers can keep their previous snapshot.
func (e *Engine) LoadGraph(ctx context.Context, solutionPath string) (*workspace.Snapshot, error) {
	abs, err := filepath.Abs(solutionPath)
	if err != nil {
		return nil, lwierrors.NewReloadError("resolve", solutionPath, err)
	}
	entries, err := parseSolution(abs)
	if err != nil {
		return nil, err
	}
	debug.LogEngine("loading graph %s with %d projects\n", abs, len(entries))

	projects := make([]*workspace.Project, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, entry := range entries {
		g.Go(func() error {
			p, err := e.loadProject(gctx, entry.Name, entry.DescriptorPath, types.ProjectID(e.nextProjectID.Add(1)))
			if err != nil {
				return err
			}
			projects[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return workspace.NewSnapshot(abs, projects), nil
}

// LoadProject rebuilds the single project owning descriptorPath within
// current. An unknown descriptor means project membership itself changed
// under us, so it falls back to a full graph reload.
func (e *Engine) LoadProject(ctx context.Context, current *workspace.Snapshot, descriptorPath string) (*workspace.Snapshot, error) {
	abs, err := filepath.Abs(descriptorPath)
	if err != nil {
		return nil, lwierrors.NewReloadError("resolve", descriptorPath, err)
	}
	existing, ok := current.ProjectByDescriptor(abs)
	if !ok {
		debug.LogEngine("descriptor %s not in current graph, full reload\n", abs)
		return e.LoadGraph(ctx, current.SolutionPath)
	}
	fresh, err := e.loadProject(ctx, existing.Name, abs, existing.ID)
	if err != nil {
		return nil, err
	}
	return current.WithReplacedProject(fresh), nil
}

// ParseUnit extracts the declared symbols from one unit's content.
func (e *Engine) ParseUnit(path string, content []byte) []types.SymbolRef {
	return extractSymbols(path, content)
}

// loadProject reads a descriptor, resolves its membership, and loads
// every member unit under the given project ID.
func (e *Engine) loadProject(ctx context.Context, name, descriptorPath string, id types.ProjectID) (*workspace.Project, error) {
	membership, err := parseProjectDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}
	rootDir := filepath.Dir(descriptorPath)
	paths, err := membership.resolveUnits(rootDir)
	if err != nil {
		return nil, lwierrors.NewReloadError("walk", descriptorPath, err)
	}

	units := make(map[types.UnitID]*workspace.SourceUnit, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit, err := e.loadUnit(id, rootDir, path)
		if err != nil {
			// A bad unit degrades coverage, never the project.
			log.Printf("Warning: %v", err)
			continue
		}
		if unit != nil {
			units[unit.ID] = unit
		}
	}

	debug.LogEngine("loaded project %s: %d units\n", name, len(units))
	return &workspace.Project{
		ID:             id,
		Name:           name,
		DescriptorPath: descriptorPath,
		RootDir:        rootDir,
		Units:          units,
	}, nil
}

// loadUnit reads and parses one source unit. Oversized units are skipped
// with a nil unit and no error.
func (e *Engine) loadUnit(project types.ProjectID, rootDir, path string) (*workspace.SourceUnit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, lwierrors.NewUnitError("stat", path, err)
	}
	if info.Size() > e.maxFileSize {
		debug.LogEngine("skipping oversized unit %s (%d bytes)\n", path, info.Size())
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, lwierrors.NewUnitError("read", path, err)
	}
	folder := workspace.FolderForPath(rootDir, path)
	symbols := extractSymbols(path, content)
	return workspace.NewSourceUnit(project, path, folder, content, symbols), nil
}
