package config

import "time"

// Config is the synclog configuration file.
//
// JSON and YAML are both accepted; unknown keys are rejected. Omitted keys
// keep the values from Default(). Environment variables (see env.go) are
// applied on top of the file.
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Capture CaptureConfig  `json:"capture"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level     string          `json:"level"`
	Console   bool            `json:"console"`
	File      LoggingFile     `json:"file"`
	Journal   LoggingJournal  `json:"journal"`
	Dedup     DedupConfig     `json:"dedup"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// Format is "text" (default) or "json".
	Format     string `json:"format,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type LoggingJournal struct {
	Enabled    bool   `json:"enabled"`
	Identifier string `json:"identifier,omitempty"`
}

// DedupConfig controls the repeated-line filter.
// Window is a Go duration string (e.g. "2s").
type DedupConfig struct {
	Enabled bool   `json:"enabled"`
	Window  string `json:"window"`
}

type RateLimitConfig struct {
	Enabled bool    `json:"enabled"`
	PerSec  float64 `json:"per_sec"`
	Burst   int     `json:"burst"`
}

// CaptureConfig controls the stdout capture logger.
type CaptureConfig struct {
	Enabled   bool   `json:"enabled"`
	Logger    string `json:"logger"`
	Level     string `json:"level"`
	SQLFilter bool   `json:"sql_filter"`
}

// StorageConfig controls the optional record store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./synclog.db", "retention": "168h" }
type StorageConfig struct {
	Driver        string `json:"driver"`
	Path          string `json:"path"`
	BusyTimeout   string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention     string `json:"retention,omitempty"`    // Go duration string; empty keeps everything
	PruneSchedule string `json:"prune_schedule,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
}

const (
	DefaultLogFile       = "./synclog.log"
	DefaultCaptureLogger = "stdout"
	DefaultPruneSchedule = "@every 1h"

	DefaultDedupWindow = 2 * time.Second
	DefaultBusyTimeout = time.Second
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			File: LoggingFile{
				Enabled:    true,
				Path:       DefaultLogFile,
				Format:     "text",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
			Dedup:     DedupConfig{Enabled: true, Window: DefaultDedupWindow.String()},
			RateLimit: RateLimitConfig{PerSec: 50, Burst: 100},
		},
		Capture: CaptureConfig{
			Enabled:   true,
			Logger:    DefaultCaptureLogger,
			Level:     "INFO",
			SQLFilter: true,
		},
	}
}
