package watch

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	lwaerrors "github.com/standardbeagle/lwa/internal/errors"
	"github.com/standardbeagle/lwa/internal/types"
)

// ManifestName is the per-project manifest file. Every directory containing
// one becomes a project; its references define the project-reference edges
// the propagator walks.
const ManifestName = "lwa-project.toml"

// Manifest is the parsed lwa-project.toml.
type Manifest struct {
	Project struct {
		Name     string `toml:"name"`
		Language string `toml:"language"`
	} `toml:"project"`

	// References names other projects this one depends on, by project name.
	References []string `toml:"references"`

	// Include limits the project's documents to paths matching these
	// patterns, relative to the manifest directory. Empty means all
	// recognized source files.
	Include []string `toml:"include"`
}

// LoadManifest reads and parses one lwa-project.toml.
func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, lwaerrors.NewConfigError("manifest", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return nil, lwaerrors.NewConfigError("manifest", path, err)
	}
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(filepath.Dir(path))
	}
	return &m, nil
}

// ProjectID derives the stable project identity from the manifest name.
func (m *Manifest) ProjectID() types.ProjectID {
	return types.ProjectID(m.Project.Name)
}
