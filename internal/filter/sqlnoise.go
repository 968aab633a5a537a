package filter

import (
	"regexp"
	"strings"
	"sync/atomic"

	logx "synclog/pkg/logx"
)

var (
	ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[@-Z\\-_]`)

	sqlNoiseRE = regexp.MustCompile(`(?i)^(?:` +
		`(?:select|from|where|left|right|inner|outer|full|cross|join|lateral|` +
		`group|order|limit|offset|on|cast|as|and|or)\b` +
		`|json_|-{5,})`)
)

// Payload prefixes that are always kept: primary-key diagnostics and
// JSON-like dumps.
var keepPrefixes = []string{"pkeys:", "{", "["}

// StripANSI removes terminal escape sequences.
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiRE.ReplaceAllString(s, "")
}

// IsSQLNoise reports whether a captured line looks like a raw query fragment.
func IsSQLNoise(line string) bool {
	s := strings.TrimLeft(StripANSI(line), " \t\r")
	for _, p := range keepPrefixes {
		if strings.HasPrefix(s, p) {
			return false
		}
	}
	return sqlNoiseRE.MatchString(s)
}

// SQLNoise is a logx.Filter for loggers fed from captured stdout.
type SQLNoise struct {
	dropped atomic.Uint64
}

func NewSQLNoise() *SQLNoise { return &SQLNoise{} }

func (f *SQLNoise) Allow(r logx.Record) bool {
	if IsSQLNoise(r.Message) {
		f.dropped.Add(1)
		return false
	}
	return true
}

// Dropped returns how many lines were suppressed so far.
func (f *SQLNoise) Dropped() uint64 { return f.dropped.Load() }
