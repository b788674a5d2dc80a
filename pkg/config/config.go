package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/stagepkg/stagepkg/pkg/source"
)

// LocalConfigFile is the project-local configuration filename.
const LocalConfigFile = "stagepkg.local.toml"

// GlobalConfigFile is the configuration filename under the global config dir.
const GlobalConfigFile = "config.toml"

// DefaultWorkers is the bulk staging parallelism used when the config does
// not set one.
const DefaultWorkers = 4

// Config holds operator configuration: registry endpoints, offline policy,
// and staging parallelism.
type Config struct {
	// CentralDL overrides the central registry's download endpoint template
	// ({name}/{version} placeholders).
	CentralDL string `toml:"central_dl,omitempty" mapstructure:"central_dl"`

	// Registries maps alternate registry identities to their download
	// endpoint templates.
	Registries map[string]string `toml:"registries,omitempty" mapstructure:"registries"`

	// Offline disables all network fetches; only already-cached sources can
	// be staged.
	Offline bool `toml:"offline,omitempty" mapstructure:"offline"`

	// Workers bounds bulk staging parallelism. Zero means DefaultWorkers.
	Workers int `toml:"workers,omitempty" mapstructure:"workers"`
}

// CentralRegistry returns the central registry, honoring a configured
// endpoint override.
func (c *Config) CentralRegistry() source.Registry {
	if c.CentralDL != "" {
		return source.AlternateRegistry("central", c.CentralDL)
	}
	return source.CentralRegistry()
}

// Registry resolves a registry identity from the config. An empty id or
// "central" resolves to the central registry.
func (c *Config) Registry(id string) (source.Registry, error) {
	if id == "" || id == "central" {
		return c.CentralRegistry(), nil
	}
	dl, ok := c.Registries[id]
	if !ok {
		return source.Registry{}, fmt.Errorf("unknown registry %q (not in configuration)", id)
	}
	return source.AlternateRegistry(id, dl), nil
}

// WorkerCount returns the configured parallelism, falling back to the
// default.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}

// GlobalConfigDir returns the path to ~/.stagepkg, creating it if necessary.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	dir := filepath.Join(home, ".stagepkg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// WriteLocalConfig persists config to stagepkg.local.toml in the given
// project directory.
func WriteLocalConfig(projectDir string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(projectDir, LocalConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
