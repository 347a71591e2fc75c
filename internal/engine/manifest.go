package engine

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/luaweave/internal/scheduler"
)

// Manifest describes a written folder artifact.
type Manifest struct {
	BuildID     string           `yaml:"build_id,omitempty"`
	Version     string           `yaml:"version"`
	Artifact    string           `yaml:"artifact"`
	Debug       bool             `yaml:"debug"`
	GeneratedAt time.Time        `yaml:"generated_at"`
	Modules     []ManifestModule `yaml:"modules"`
}

// ManifestModule is one module table entry of the artifact.
type ManifestModule struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
}

// ManifestPath returns the manifest path for an artifact path.
func ManifestPath(artifactPath string) string {
	return artifactPath + ".manifest.yaml"
}

// ReadManifest loads a manifest written by a folder build.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path derived from the artifact path
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func (e *Engine) writeManifest(result *BuildResult, fragments []scheduler.Fragment) (string, error) {
	m := Manifest{
		BuildID:     result.BuildID,
		Version:     e.cfg.Version,
		Artifact:    result.ArtifactPath,
		Debug:       e.opts.Debug,
		GeneratedAt: time.Now().UTC(),
		Modules:     make([]ManifestModule, 0, len(fragments)),
	}
	for _, f := range fragments {
		m.Modules = append(m.Modules, ManifestModule{Name: f.Name, Source: f.Path})
	}
	sort.Slice(m.Modules, func(i, j int) bool { return m.Modules[i].Name < m.Modules[j].Name })

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := ManifestPath(result.ArtifactPath)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: manifest is meant to be readable
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}
