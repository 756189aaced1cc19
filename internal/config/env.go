package config

import (
	"os"
	"strconv"
)

// FromEnv overlays ZMOD_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("ZMOD_PARTITION"); v != "" {
		cfg.Partition = v
	}
	if v := os.Getenv("ZMOD_SECTOR_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SectorSize = n
		}
	}
	if v := os.Getenv("ZMOD_SECTORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sectors = n
		}
	}
	if v := os.Getenv("ZMOD_MAX_SECTORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSectors = n
		}
	}
	if v := os.Getenv("ZMOD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ZMOD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("ZMOD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ZMOD_LOG_FLOOR"); v != "" {
		cfg.LogFloor = v
	}
	if v := os.Getenv("ZMOD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("ZMOD_LOCK_WAIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockWaitMs = n
		}
	}
	if v := os.Getenv("ZMOD_FSYNC"); v != "" {
		cfg.Fsync = v
	}
}
