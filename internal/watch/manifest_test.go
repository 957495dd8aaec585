package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[project]
name = "core"
language = "csharp"

references = ["common"]
include = ["src/**/*.cs"]
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "core", m.Project.Name)
	assert.Equal(t, "csharp", m.Project.Language)
	assert.Equal(t, []string{"common"}, m.References)
	assert.Equal(t, []string{"src/**/*.cs"}, m.Include)
	assert.Equal(t, "core", string(m.ProjectID()))
}

func TestLoadManifestDefaultsNameToDirectory(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "billing")
	require.NoError(t, os.Mkdir(project, 0o755))
	path := writeManifest(t, project, "[project]\nlanguage = \"go\"\n")

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "billing", m.Project.Name)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), ManifestName))
	require.Error(t, err)
}

func TestLoadManifestMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[project\nname = ")
	_, err := LoadManifest(path)
	require.Error(t, err)
}
