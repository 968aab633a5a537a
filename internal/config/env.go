package config

import (
	"os"
	"strings"
)

const (
	EnvLogFile  = "SYNCLOG_FILE"
	EnvLogLevel = "SYNCLOG_LEVEL"
	EnvConfig   = "SYNCLOG_CONFIG"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg from the environment:
//   - SYNCLOG_FILE sets the log file path and enables the file sink
//   - SYNCLOG_LEVEL sets the level name (unknown names are logged at INFO)
//
// Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvLogFile); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.File.Path = strings.TrimSpace(v)
		cfg.Logging.File.Enabled = true
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
}
