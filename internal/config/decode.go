package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	yaml "go.yaml.in/yaml/v3"
)

// decodeInto decodes a config file over cfg. Omitted keys keep their current
// values; unknown keys and trailing documents are errors.
//
// .yaml/.yml files are YAML, .json files are JSON, and anything else is
// sniffed: a leading '{' means JSON.
func decodeInto(path string, b []byte, cfg *Config) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if isYAML(path, b) {
		var err error
		if b, err = yamlToJSON(b); err != nil {
			return err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("trailing data")
		}
		return err
	}
	return nil
}

func isYAML(path string, b []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	case ".json":
		return false
	}
	return b[0] != '{'
}

// yamlToJSON re-encodes a YAML document so it goes through the same strict
// JSON decoding as .json files.
func yamlToJSON(b []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	out, err := stringKeys(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// stringKeys rejects non-string mapping keys (e.g. `1: x`), which have no
// meaning in this config and which JSON cannot carry.
func stringKeys(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			n, err := stringKeys(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			x[k] = n
		}
		return x, nil
	case map[any]any:
		return nil, errors.New("mapping keys must be strings")
	case []any:
		for i, e := range x {
			n, err := stringKeys(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			x[i] = n
		}
		return x, nil
	default:
		return v, nil
	}
}

// parseDuration parses a Go duration string. Empty or zero yields def;
// negative values are rejected. key names the setting in errors.
func parseDuration(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", key)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// WindowDuration returns the dedup window, DefaultDedupWindow when unset.
func (c DedupConfig) WindowDuration() (time.Duration, error) {
	return parseDuration("logging.dedup.window", c.Window, DefaultDedupWindow)
}

// RetentionDuration returns how long records are kept; 0 keeps everything.
func (c StorageConfig) RetentionDuration() (time.Duration, error) {
	return parseDuration("storage.retention", c.Retention, 0)
}

// BusyTimeoutDuration returns the sqlite busy timeout, 1s when unset.
func (c StorageConfig) BusyTimeoutDuration() (time.Duration, error) {
	return parseDuration("storage.busy_timeout", c.BusyTimeout, DefaultBusyTimeout)
}
