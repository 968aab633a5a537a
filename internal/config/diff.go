package config

import (
	"strings"

	logx "synclog/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and log
// fields describing the new values.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 3)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.journal_enabled", newCfg.Logging.Journal.Enabled),
			logx.Bool("logging.dedup_enabled", newCfg.Logging.Dedup.Enabled),
			logx.String("logging.dedup_window", strings.TrimSpace(newCfg.Logging.Dedup.Window)),
			logx.Bool("logging.rate_limit_enabled", newCfg.Logging.RateLimit.Enabled),
		)
	}

	if oldCfg.Capture != newCfg.Capture {
		changed = append(changed, "capture")
		fields = append(fields,
			logx.Bool("capture.enabled", newCfg.Capture.Enabled),
			logx.String("capture.level", newCfg.Capture.Level),
			logx.Bool("capture.sql_filter", newCfg.Capture.SQLFilter),
		)
	}

	oS, nS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oS != nS {
		changed = append(changed, "storage")
		fields = append(fields,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.String("storage.retention", strings.TrimSpace(nS.Retention)),
		)
	}
	return changed, fields
}

func derefStorage(sc *StorageConfig) StorageConfig {
	if sc == nil {
		return StorageConfig{}
	}
	return *sc
}
