// Package manifest handles valence.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a valence.toml project configuration: project
// metadata, a declarative class taxonomy, and the paths the tooling
// uses for persistence.
type Manifest struct {
	Project  Project        `toml:"project"`
	Classes  []ClassDecl    `toml:"class"`
	Store    StoreConfig    `toml:"store"`
	Snapshot SnapshotConfig `toml:"snapshot"`

	// Dir is the directory containing the valence.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ClassDecl declares one class: its name, the names of its direct
// ancestors, and scalar member values. Declarations may appear in any
// order; the resolver creates ancestors first. Callable slots (the
// initializer and operator hooks) cannot be declared here.
type ClassDecl struct {
	Name      string         `toml:"name"`
	Ancestors []string       `toml:"ancestors"`
	Members   map[string]any `toml:"members"`
}

// StoreConfig configures instance persistence.
type StoreConfig struct {
	Path string `toml:"path"`
}

// SnapshotConfig configures class-graph snapshots.
type SnapshotConfig struct {
	Path string `toml:"path"`
}

// Load parses a valence.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "valence.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Store.Path == "" {
		m.Store.Path = "valence.db"
	}
	if m.Snapshot.Path == "" {
		m.Snapshot.Path = "valence.vsnap"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a valence.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "valence.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the instance database.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// SnapshotPath returns the absolute path of the class snapshot file.
func (m *Manifest) SnapshotPath() string {
	if filepath.IsAbs(m.Snapshot.Path) {
		return m.Snapshot.Path
	}
	return filepath.Join(m.Dir, m.Snapshot.Path)
}
