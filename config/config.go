// Package config loads the TOML startup configuration, the Go-idiomatic
// analogue of the source's tinyxml-backed Config class (config.cc).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// LogConfig holds the log.* TOML table.
type LogConfig struct {
	Level        string `toml:"level"`
	FileName     string `toml:"file_name"`
	FilePath     string `toml:"file_path"`
	SyncInterval int    `toml:"sync_interval"`  // ms between buffer flushes
	MaxFileSize  int64  `toml:"max_file_size"` // bytes before rotation
}

// ServerConfig holds the server.* TOML table.
type ServerConfig struct {
	IP         string `toml:"ip"`
	Port       int    `toml:"port"`
	IOThreads  int    `toml:"io_threads"`
}

// Config is the top-level decoded document.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
}

// defaultConfig mirrors config.cc's hard-coded fallbacks when a key is
// absent from the document.
func defaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:        "INFO",
			FileName:     "rapidrpc",
			FilePath:     "./log",
			SyncInterval: 500,
			MaxFileSize:  100 * 1024 * 1024,
		},
		Server: ServerConfig{
			IP:        "0.0.0.0",
			Port:      39999,
			IOThreads: 4,
		},
	}
}

// Load decodes the TOML document at path, filling unset fields with
// defaultConfig's values. Unknown log.level values are normalized to
// INFO at validation time by the caller (rlog), not here, matching
// logLevelFromString's fallback staying a logging concern.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "config: decode %s", path)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("config: unrecognized keys in %s: %v", path, undec)
	}
	if cfg.Server.IOThreads < 1 {
		cfg.Server.IOThreads = 1
	}
	return &cfg, nil
}
