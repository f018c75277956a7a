// Package workspace holds the immutable workspace snapshot model and the
// synchronizer that keeps the shared snapshot and symbol index in step
// with on-disk changes.
package workspace

import (
	"iter"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lwi/internal/types"
)

// generation numbers snapshots across the process lifetime so tests and
// logs can tell snapshot identities apart.
var generation atomic.Uint64

var nextUnitID atomic.Uint32
var nextSymbolID atomic.Uint64

// SourceUnit is one compilable file tracked within a project. Units are
// immutable once placed in a snapshot.
type SourceUnit struct {
	ID      types.UnitID
	Project types.ProjectID
	Path    string   // absolute on-disk path
	Folder  []string // folder hierarchy relative to the project root
	Content []byte
	Hash    uint64 // xxhash of Content
	Symbols []types.SymbolRef
}

// NewSourceUnit builds a unit with a fresh ID, content hash, and symbol
// refs normalized to point back at this unit.
func NewSourceUnit(project types.ProjectID, path string, folder []string, content []byte, symbols []types.SymbolRef) *SourceUnit {
	u := &SourceUnit{
		ID:      types.UnitID(nextUnitID.Add(1)),
		Project: project,
		Path:    path,
		Folder:  folder,
		Content: content,
		Hash:    xxhash.Sum64(content),
	}
	u.Symbols = normalizeSymbols(u, symbols)
	return u
}

// withContent returns a copy of the unit carrying new content and symbols.
// The unit ID is preserved so readers can correlate across snapshots.
func (u *SourceUnit) withContent(content []byte, symbols []types.SymbolRef) *SourceUnit {
	nu := &SourceUnit{
		ID:      u.ID,
		Project: u.Project,
		Path:    u.Path,
		Folder:  u.Folder,
		Content: content,
		Hash:    xxhash.Sum64(content),
	}
	nu.Symbols = normalizeSymbols(nu, symbols)
	return nu
}

func normalizeSymbols(u *SourceUnit, symbols []types.SymbolRef) []types.SymbolRef {
	out := make([]types.SymbolRef, len(symbols))
	for i, s := range symbols {
		s.ID = types.SymbolID(nextSymbolID.Add(1))
		s.Project = u.Project
		s.Unit = u.ID
		s.Path = u.Path
		out[i] = s
	}
	return out
}

// Project is one project within a snapshot: a descriptor plus its units.
type Project struct {
	ID             types.ProjectID
	Name           string
	DescriptorPath string // absolute path of the project descriptor
	RootDir        string // directory owning the project's folder hierarchy
	Units          map[types.UnitID]*SourceUnit
}

// Snapshot is an immutable point-in-time view of the full project graph.
// Deriving a new snapshot never mutates this one: readers holding an old
// snapshot keep a consistent, stale-but-valid view.
type Snapshot struct {
	Generation   uint64
	SolutionPath string

	projects    []*Project
	byProject   map[types.ProjectID]*Project
	unitsByPath map[string][]types.UnitID
}

// NewSnapshot assembles a snapshot from loaded projects. Takes ownership
// of the projects slice.
func NewSnapshot(solutionPath string, projects []*Project) *Snapshot {
	s := &Snapshot{
		Generation:   generation.Add(1),
		SolutionPath: solutionPath,
		projects:     projects,
	}
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.byProject = make(map[types.ProjectID]*Project, len(s.projects))
	s.unitsByPath = make(map[string][]types.UnitID)
	for _, p := range s.projects {
		s.byProject[p.ID] = p
		for _, u := range p.Units {
			key := pathKey(u.Path)
			s.unitsByPath[key] = append(s.unitsByPath[key], u.ID)
		}
	}
}

// pathKey canonicalizes a path for lookup.
func pathKey(path string) string {
	return filepath.Clean(path)
}

// Projects returns the snapshot's projects. Callers must not mutate.
func (s *Snapshot) Projects() []*Project {
	return s.projects
}

// Project returns a project by ID.
func (s *Snapshot) Project(id types.ProjectID) (*Project, bool) {
	p, ok := s.byProject[id]
	return p, ok
}

// ProjectByDescriptor returns the project owning the given descriptor path.
func (s *Snapshot) ProjectByDescriptor(path string) (*Project, bool) {
	key := pathKey(path)
	for _, p := range s.projects {
		if pathKey(p.DescriptorPath) == key {
			return p, true
		}
	}
	return nil, false
}

// FindUnitsByPath returns the IDs of all units tracked at path. Several
// projects may include the same file, so more than one ID is possible.
func (s *Snapshot) FindUnitsByPath(path string) []types.UnitID {
	return s.unitsByPath[pathKey(path)]
}

// Unit resolves a unit ID to its unit and owning project.
func (s *Snapshot) Unit(id types.UnitID) (*SourceUnit, *Project, bool) {
	for _, p := range s.projects {
		if u, ok := p.Units[id]; ok {
			return u, p, true
		}
	}
	return nil, nil, false
}

// ProjectForPath locates the owning project for a path by longest matching
// directory prefix among known project roots. Returns nil when no root
// contains the path.
func (s *Snapshot) ProjectForPath(path string) *Project {
	key := pathKey(path)
	var best *Project
	bestLen := -1
	for _, p := range s.projects {
		root := pathKey(p.RootDir)
		if !strings.HasPrefix(key, root+string(filepath.Separator)) && key != root {
			continue
		}
		if len(root) > bestLen {
			best = p
			bestLen = len(root)
		}
	}
	return best
}

// FolderForPath computes the folder hierarchy of path relative to the
// project root, for placing added units.
func FolderForPath(root, path string) []string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

// WithUpdatedUnit derives a snapshot with the unit's content replaced in
// place. Project membership is untouched; only the owning project's unit
// table is copied.
func (s *Snapshot) WithUpdatedUnit(id types.UnitID, content []byte, symbols []types.SymbolRef) *Snapshot {
	old, owner, ok := s.Unit(id)
	if !ok {
		return s
	}
	updated := old.withContent(content, symbols)
	return s.withReplacedUnits(owner.ID, map[types.UnitID]*SourceUnit{id: updated}, nil)
}

// WithAddedUnit derives a snapshot with a new unit placed in projectID,
// preserving its folder hierarchy relative to the project root.
func (s *Snapshot) WithAddedUnit(projectID types.ProjectID, path string, content []byte, folder []string, symbols []types.SymbolRef) *Snapshot {
	owner, ok := s.byProject[projectID]
	if !ok {
		return s
	}
	unit := NewSourceUnit(projectID, path, folder, content, symbols)
	return s.withReplacedUnits(owner.ID, map[types.UnitID]*SourceUnit{unit.ID: unit}, nil)
}

// WithReplacedProject derives a snapshot with one project swapped for a
// freshly loaded version, sharing every other project.
func (s *Snapshot) WithReplacedProject(fresh *Project) *Snapshot {
	projects := make([]*Project, len(s.projects))
	replaced := false
	for i, p := range s.projects {
		if p.ID == fresh.ID {
			projects[i] = fresh
			replaced = true
		} else {
			projects[i] = p
		}
	}
	if !replaced {
		projects = append(projects, fresh)
	}
	return NewSnapshot(s.SolutionPath, projects)
}

// withReplacedUnits copies the owning project with the given units merged
// in (and removed IDs dropped), sharing all other projects.
func (s *Snapshot) withReplacedUnits(projectID types.ProjectID, merged map[types.UnitID]*SourceUnit, removed []types.UnitID) *Snapshot {
	projects := make([]*Project, len(s.projects))
	for i, p := range s.projects {
		if p.ID != projectID {
			projects[i] = p
			continue
		}
		units := make(map[types.UnitID]*SourceUnit, len(p.Units)+len(merged))
		for id, u := range p.Units {
			units[id] = u
		}
		for _, id := range removed {
			delete(units, id)
		}
		for id, u := range merged {
			units[id] = u
		}
		projects[i] = &Project{
			ID:             p.ID,
			Name:           p.Name,
			DescriptorPath: p.DescriptorPath,
			RootDir:        p.RootDir,
			Units:          units,
		}
	}
	return NewSnapshot(s.SolutionPath, projects)
}

// AllSymbols yields every resolvable symbol in the snapshot. Used for
// full index rebuilds.
func (s *Snapshot) AllSymbols() iter.Seq[types.SymbolRef] {
	return func(yield func(types.SymbolRef) bool) {
		for _, p := range s.projects {
			for _, u := range p.Units {
				for _, sym := range u.Symbols {
					if !yield(sym) {
						return
					}
				}
			}
		}
	}
}

// UnitCount returns the total number of units across projects.
func (s *Snapshot) UnitCount() int {
	n := 0
	for _, p := range s.projects {
		n += len(p.Units)
	}
	return n
}

// SymbolCount returns the total number of symbols across units.
func (s *Snapshot) SymbolCount() int {
	n := 0
	for _, p := range s.projects {
		for _, u := range p.Units {
			n += len(u.Symbols)
		}
	}
	return n
}
