package engine

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lwierrors "github.com/standardbeagle/lwi/internal/errors"
)

// solutionEntry is one project declaration parsed from a solution file.
type solutionEntry struct {
	Name           string
	DescriptorPath string // absolute
}

// Solution files declare projects as:
//
//	Project("{TYPE-GUID}") = "Name", "rel\path\Name.csproj", "{PROJECT-GUID}"
var solutionProjectRe = regexp.MustCompile(`^Project\("\{[^}]+\}"\)\s*=\s*"([^"]+)",\s*"([^"]+)",\s*"\{[^}]+\}"`)

// parseSolution reads the project declarations out of a solution file.
// Entries that do not point at a project descriptor (solution folders,
// shared projects) are skipped.
func parseSolution(solutionPath string) ([]solutionEntry, error) {
	f, err := os.Open(solutionPath)
	if err != nil {
		return nil, lwierrors.NewReloadError("open", solutionPath, err)
	}
	defer f.Close()

	dir := filepath.Dir(solutionPath)
	var entries []solutionEntry

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := solutionProjectRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rel := filepath.FromSlash(strings.ReplaceAll(m[2], `\`, "/"))
		if !strings.EqualFold(filepath.Ext(rel), ".csproj") {
			continue
		}
		entries = append(entries, solutionEntry{
			Name:           m[1],
			DescriptorPath: filepath.Join(dir, rel),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, lwierrors.NewReloadError("read", solutionPath, err)
	}
	return entries, nil
}
