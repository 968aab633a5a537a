package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	logx "synclog/pkg/logx"
)

// Validate checks a parsed config. The logging level is not validated:
// unknown names fall back to INFO.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	lf := cfg.Logging.File
	if lf.Enabled && strings.TrimSpace(lf.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when logging.file.enabled=true"))
	}
	switch strings.ToLower(strings.TrimSpace(lf.Format)) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.file.format: unknown format %q", lf.Format))
	}
	if lf.MaxSizeMB < 0 || lf.MaxBackups < 0 {
		errs = append(errs, errors.New("logging.file: max_size_mb and max_backups must be >= 0"))
	}

	if _, err := cfg.Logging.Dedup.WindowDuration(); err != nil {
		errs = append(errs, err)
	}
	if rl := cfg.Logging.RateLimit; rl.Enabled && (rl.PerSec <= 0 || rl.Burst <= 0) {
		errs = append(errs, errors.New("logging.rate_limit: per_sec and burst must be > 0 when enabled"))
	}

	if c := cfg.Capture; c.Enabled && strings.TrimSpace(c.Level) != "" && !logx.ValidLevel(c.Level) {
		errs = append(errs, fmt.Errorf("capture.level: unknown level %q", c.Level))
	}

	if sc := cfg.Storage; sc != nil {
		errs = append(errs, validateStorage(sc)...)
	}
	return errors.Join(errs...)
}

func validateStorage(sc *StorageConfig) []error {
	var errs []error
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none":
		return nil
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(sc.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required when storage.driver=%s", driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver: %s", sc.Driver))
	}
	if _, err := sc.BusyTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := sc.RetentionDuration(); err != nil {
		errs = append(errs, err)
	}
	if s := strings.TrimSpace(sc.PruneSchedule); s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			errs = append(errs, fmt.Errorf("storage.prune_schedule: %w", err))
		}
	}
	if sc.QueueSize < 0 {
		errs = append(errs, errors.New("storage.queue_size must be >= 0"))
	}
	return errs
}
