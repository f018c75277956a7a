// Package classify maps filesystem paths to semantic change categories.
// Classification is a pure function of the path: no I/O, no state.
package classify

import (
	"path/filepath"
	"strings"
)

// Category is the semantic kind of a changed file.
type Category int

const (
	// CategoryNone marks paths the synchronizer has no interest in.
	CategoryNone Category = iota

	// CategoryUnit is a single compilable source file (.cs).
	CategoryUnit

	// CategoryProject is a project descriptor: membership and settings for
	// one project (.csproj, plus .props/.targets fragments that feed into
	// project evaluation).
	CategoryProject

	// CategoryGraph is the top-level descriptor enumerating projects (.sln).
	CategoryGraph
)

func (c Category) String() string {
	switch c {
	case CategoryGraph:
		return "graph-descriptor"
	case CategoryProject:
		return "project-descriptor"
	case CategoryUnit:
		return "source-unit"
	default:
		return "none"
	}
}

// Classify returns the change category for path, or CategoryNone for
// extensions the synchronizer does not track. Matching is case-insensitive
// because descriptor casing is not reliable across tools.
func Classify(path string) Category {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sln":
		return CategoryGraph
	case ".csproj", ".props", ".targets":
		return CategoryProject
	case ".cs":
		return CategoryUnit
	default:
		return CategoryNone
	}
}

// Supersedes reports whether category c takes priority over other when a
// batch contains a mix: graph reloads supersede project reloads, which
// supersede unit edits.
func (c Category) Supersedes(other Category) bool {
	return c > other
}
