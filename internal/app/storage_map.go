package app

import (
	"fmt"
	"strings"
	"time"

	"synclog/internal/config"
	"synclog/internal/storage"
	logx "synclog/pkg/logx"
)

type storageSettings struct {
	store     storage.Config
	retention time.Duration
	schedule  string
	queueSize int
}

func mapStorageConfig(cfg *config.Config) (storageSettings, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storageSettings{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storageSettings{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	retention, err := sc.RetentionDuration()
	if err != nil {
		return storageSettings{}, false, err
	}
	out := storageSettings{
		retention: retention,
		schedule:  strings.TrimSpace(sc.PruneSchedule),
		queueSize: sc.QueueSize,
	}
	if out.schedule == "" {
		out.schedule = config.DefaultPruneSchedule
	}

	switch driver {
	case "file":
		out.store = storage.Config{Driver: "file", Path: path}
	case "sqlite", "sqlite3":
		if path == "" {
			return storageSettings{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := sc.BusyTimeoutDuration()
		if err != nil {
			return storageSettings{}, false, err
		}
		out.store = storage.Config{Driver: driver, Path: path, BusyTimeout: busy}
	default:
		return storageSettings{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	return out, true, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:    lc.File.Enabled,
			Path:       lc.File.Path,
			Format:     lc.File.Format,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
			Compress:   lc.File.Compress,
		},
		Journal: logx.JournalConfig{
			Enabled:    lc.Journal.Enabled,
			Identifier: lc.Journal.Identifier,
		},
	}
}
