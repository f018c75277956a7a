package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSolution = `
Microsoft Visual Studio Solution File, Format Version 12.00
# Visual Studio Version 17
Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "Core", "src\Core\Core.csproj", "{11111111-1111-1111-1111-111111111111}"
EndProject
Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "Cli", "src\Cli\Cli.csproj", "{22222222-2222-2222-2222-222222222222}"
EndProject
Project("{2150E333-8FDC-42A3-9474-1A3956D46DE8}") = "Solution Items", "Solution Items", "{33333333-3333-3333-3333-333333333333}"
EndProject
Global
EndGlobal
`

func TestParseSolution(t *testing.T) {
	dir := t.TempDir()
	slnPath := filepath.Join(dir, "App.sln")
	require.NoError(t, os.WriteFile(slnPath, []byte(sampleSolution), 0o644))

	entries, err := parseSolution(slnPath)
	require.NoError(t, err)
	require.Len(t, entries, 2, "solution folders are not projects")

	assert.Equal(t, "Core", entries[0].Name)
	assert.Equal(t, filepath.Join(dir, "src", "Core", "Core.csproj"), entries[0].DescriptorPath)
	assert.Equal(t, "Cli", entries[1].Name)
	assert.Equal(t, filepath.Join(dir, "src", "Cli", "Cli.csproj"), entries[1].DescriptorPath)
}

func TestParseSolutionMissingFile(t *testing.T) {
	_, err := parseSolution(filepath.Join(t.TempDir(), "nope.sln"))
	require.Error(t, err)
}
