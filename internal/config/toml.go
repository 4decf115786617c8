// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Import   ImportConfig   `toml:"import"`
	Storage  StorageConfig  `toml:"storage"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Repository   *string  `toml:"repository"`
	ContentWidth *float64 `toml:"content-width"`
}

// ImportConfig maps default extension filters for imports.
type ImportConfig struct {
	Extensions        []string `toml:"ext"`
	ExcludeExtensions []string `toml:"exclude-ext"`
}

// StorageConfig overrides default file locations.
type StorageConfig struct {
	DB  *string `toml:"db"`
	Log *string `toml:"log"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
