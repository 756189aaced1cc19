package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Partition is the file backing the circular log store. Empty means
	// <dataDir>/log.partition.
	Partition string `json:"partition"`
	// SectorSize is the erase granularity in bytes. Existing partitions are
	// opened with whatever size they were created with.
	SectorSize int `json:"sectorSize"`
	// Sectors is how many sectors a freshly created partition gets.
	Sectors int `json:"sectors"`
	// MaxSectors caps the geometry the store will accept at open.
	MaxSectors int `json:"maxSectors"`
	// DataDir holds the settings database and, by default, the partition.
	DataDir string `json:"dataDir"`
	// HTTPAddr is the listen address of the operational surface.
	HTTPAddr string `json:"httpAddr"`
	// LogLevel is the default severity applied when none is persisted.
	LogLevel string `json:"logLevel"`
	// LogFloor is the minimum severity the runtime policy will accept;
	// "off" disables the floor.
	LogFloor string `json:"logFloor"`
	// LogFormat selects console formatting: "text" or "json".
	LogFormat string `json:"logFormat"`
	// LockWaitMs bounds how long store operations wait for the guard.
	LockWaitMs int `json:"lockWaitMs"`
	// Fsync is the settings database durability mode: "always", "interval"
	// or "never".
	Fsync string `json:"fsync"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		SectorSize: 4096,
		Sectors:    16,
		MaxSectors: 256,
		DataDir:    DefaultDataDir(),
		HTTPAddr:   ":8080",
		LogLevel:   "inf",
		LogFloor:   "err",
		LogFormat:  "text",
		LockWaitMs: 200,
		Fsync:      "always",
	}
}

// PartitionPath resolves the partition file, deriving it from DataDir when
// not set explicitly.
func (c Config) PartitionPath() string {
	if c.Partition != "" {
		return c.Partition
	}
	return filepath.Join(c.DataDir, "log.partition")
}

// SettingsDir resolves the settings database directory under DataDir.
func (c Config) SettingsDir() string {
	return filepath.Join(c.DataDir, "settings")
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		// JSON only for now; wire gopkg.in/yaml.v3 here if a yaml config
		// ever shows up in a deployment.
		return Config{}, errors.New("yaml config not supported; use JSON")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
