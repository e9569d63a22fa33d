// Package config loads the optional per-workspace config file
// .spall/spall.json, per spec.md §6, and resolves the env overrides
// layered on top of it.
//
// Grounded on the teacher's internal/config.Load/FindProjectRoot
// walk-up-from-cwd discovery and env-override-wins precedence,
// narrowed from its many-section AMANMCP_* / YAML schema to the
// single workspace/scope JSON document spec.md defines.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WorkspaceRef names the workspace a .spall/spall.json belongs to.
type WorkspaceRef struct {
	Name string `json:"name"`
	ID   *int64 `json:"id,omitempty"`
}

// Scope names the corpora a workspace config reads from and writes
// to, by name.
type Scope struct {
	Read  []string `json:"read"`
	Write string   `json:"write"`
}

// Config is the parsed contents of .spall/spall.json.
type Config struct {
	Workspace WorkspaceRef `json:"workspace"`
	Scope     Scope        `json:"scope"`
}

// fileShape mirrors Config but additionally accepts the legacy
// `include: []string` field spec.md §9's Open Questions says must
// still be read (write only the richer shape — see DESIGN.md).
type fileShape struct {
	Workspace WorkspaceRef `json:"workspace"`
	Scope     *Scope       `json:"scope,omitempty"`
	Include   []string     `json:"include,omitempty"`
}

const (
	configDirName  = ".spall"
	configFileName = "spall.json"

	// defaultWriteScope is the corpus legacy `include`-only configs
	// write to, since they never named one.
	defaultWriteScope = "default"
)

// FindWorkspaceDir walks from startDir upward to the first ancestor
// (inclusive) containing a .spall directory, the way the teacher's
// FindProjectRoot walks to the first ancestor holding a project marker.
// Returns "", false if none is found before reaching the filesystem
// root.
func FindWorkspaceDir(startDir string) (string, bool) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, configDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Load reads .spall/spall.json under workspaceDir. A missing file is
// not an error: it returns a zero-value Config so callers fall back to
// CLI flags / defaults.
func Load(workspaceDir string) (*Config, error) {
	path := filepath.Join(workspaceDir, configDirName, configFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var parsed fileShape
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := &Config{Workspace: parsed.Workspace}
	switch {
	case parsed.Scope != nil:
		cfg.Scope = *parsed.Scope
	case len(parsed.Include) > 0:
		cfg.Scope = Scope{Read: parsed.Include, Write: defaultWriteScope}
	}
	return cfg, nil
}

// Save writes cfg to .spall/spall.json under workspaceDir, always in
// the richer scope.read/scope.write shape (never include), creating
// the .spall directory if needed.
func Save(workspaceDir string, cfg *Config) error {
	dir := filepath.Join(workspaceDir, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	out := fileShape{Workspace: cfg.Workspace, Scope: &cfg.Scope}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, configFileName), data, 0644)
}

// Dirs resolves the data and cache directories a daemon should use,
// following the teacher's env-override-wins precedence:
// SPALL_DATA_DIR / SPALL_CACHE_DIR override the workspace-relative
// defaults .spall/data and .spall/cache.
func Dirs(workspaceDir string) (dataDir, cacheDir string) {
	dataDir = filepath.Join(workspaceDir, configDirName, "data")
	cacheDir = filepath.Join(workspaceDir, configDirName, "cache")

	if v := os.Getenv("SPALL_DATA_DIR"); v != "" {
		dataDir = v
	}
	if v := os.Getenv("SPALL_CACHE_DIR"); v != "" {
		cacheDir = v
	}
	return dataDir, cacheDir
}
