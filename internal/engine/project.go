package engine

import (
	"encoding/xml"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	lwierrors "github.com/standardbeagle/lwi/internal/errors"
)

// projectFile is the subset of the project descriptor XML that drives
// source membership.
type projectFile struct {
	XMLName    xml.Name    `xml:"Project"`
	Sdk        string      `xml:"Sdk,attr"`
	ItemGroups []itemGroup `xml:"ItemGroup"`
}

type itemGroup struct {
	Compile []compileItem `xml:"Compile"`
}

type compileItem struct {
	Include string `xml:"Include,attr"`
	Remove  string `xml:"Remove,attr"`
}

// projectMembership is the resolved include/exclude rule set for one
// descriptor.
type projectMembership struct {
	sdkStyle bool
	includes []string // glob patterns, slash-separated, relative to root
	removes  []string
}

// Implicit compile items of SDK-style projects. Build output directories
// never contribute sources.
var implicitIncludes = []string{"**/*.cs"}
var implicitRemoves = []string{"bin/**", "obj/**"}

// parseProjectDescriptor reads the membership rules out of a project
// descriptor. SDK-style projects (any Sdk attribute) get the implicit
// recursive include; legacy projects list every source explicitly.
func parseProjectDescriptor(descriptorPath string) (*projectMembership, error) {
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, lwierrors.NewReloadError("read", descriptorPath, err)
	}

	var pf projectFile
	if err := xml.Unmarshal(data, &pf); err != nil {
		return nil, lwierrors.NewReloadError("parse", descriptorPath, err)
	}

	m := &projectMembership{sdkStyle: pf.Sdk != ""}
	for _, g := range pf.ItemGroups {
		for _, c := range g.Compile {
			if c.Include != "" {
				m.includes = append(m.includes, normalizePattern(c.Include))
			}
			if c.Remove != "" {
				m.removes = append(m.removes, normalizePattern(c.Remove))
			}
		}
	}
	if m.sdkStyle {
		m.includes = append(implicitIncludes, m.includes...)
		m.removes = append(m.removes, implicitRemoves...)
	}
	return m, nil
}

// normalizePattern converts a descriptor item spec to a slash-separated
// doublestar pattern.
func normalizePattern(spec string) string {
	return strings.ReplaceAll(spec, `\`, "/")
}

// resolveUnits walks the project root and returns the absolute paths of
// every source unit the membership rules select, in walk order.
func (m *projectMembership) resolveUnits(rootDir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees drop out of the membership rather
			// than failing the whole project.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if m.sdkStyle && (d.Name() == "bin" || d.Name() == "obj") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".cs") {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return nil
		}
		if m.selects(filepath.ToSlash(rel)) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// selects reports whether the slash-separated relative path is a member.
func (m *projectMembership) selects(rel string) bool {
	included := false
	for _, pat := range m.includes {
		if ok, _ := doublestar.Match(pat, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pat := range m.removes {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	return true
}
