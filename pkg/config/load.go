package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load resolves configuration with Viper precedence:
// CLI flags > stagepkg.local.toml (project-local) > ~/.stagepkg/config.toml
// (global). flagCentralDL, if non-empty, and flagOffline, if true, take
// highest precedence (set via --registry-dl / --offline).
func Load(flagCentralDL string, flagOffline bool) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	globalPath := filepath.Join(home, ".stagepkg", GlobalConfigFile)
	return load(flagCentralDL, flagOffline, globalPath, LocalConfigFile)
}

// load is the internal implementation that accepts explicit paths, making it
// testable without touching the real home directory.
func load(flagCentralDL string, flagOffline bool, globalPath, localPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Lowest priority: global config. Ignore if missing.
	v.SetConfigFile(globalPath)
	_ = v.ReadInConfig()

	// Higher priority: project-local config.
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	// Highest priority: CLI flags.
	if flagCentralDL != "" {
		v.Set("central_dl", flagCentralDL)
	}
	if flagOffline {
		v.Set("offline", true)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}
