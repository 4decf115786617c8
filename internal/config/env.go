package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override storage paths.
const (
	EnvDBPath  = "CODETYPE_DB"
	EnvLogPath = "CODETYPE_LOG"
)

// LoadEnv loads variables from a .env file when it exists. Variables already
// set in the environment are kept.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Paths holds resolved storage locations.
type Paths struct {
	DB  string
	Log string
}

// ResolvePaths picks storage paths: environment first, then the config file,
// then XDG defaults.
func ResolvePaths(cfg FileConfig) Paths {
	paths := Paths{DB: DefaultDBPath(), Log: DefaultLogPath()}
	if cfg.Storage.DB != nil && *cfg.Storage.DB != "" {
		paths.DB = *cfg.Storage.DB
	}
	if cfg.Storage.Log != nil && *cfg.Storage.Log != "" {
		paths.Log = *cfg.Storage.Log
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		paths.DB = v
	}
	if v := os.Getenv(EnvLogPath); v != "" {
		paths.Log = v
	}
	return paths
}
