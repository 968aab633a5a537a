package logx

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// LineTimeFormat is the timestamp layout of rendered lines.
const LineTimeFormat = "2006-01-02 15:04:05"

// RootLoggerName is printed for records logged without a name.
const RootLoggerName = "root"

// LineWriter renders zerolog JSON events as
//
//	2006-01-02 15:04:05:INFO:sync.pg: message key=value ...
//
// Input that is not a JSON object is written through unchanged.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	return lw.WriteLevel(zerolog.NoLevel, p)
}

func (lw *LineWriter) WriteLevel(_ zerolog.Level, p []byte) (int, error) {
	line, ok := FormatLine(p)
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if !ok {
		if _, err := lw.w.Write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if _, err := io.WriteString(lw.w, line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// FormatLine renders one zerolog JSON event. It reports false if p is not a
// JSON object.
func FormatLine(p []byte) (string, bool) {
	m, ok := decodeEvent(p)
	if !ok {
		return "", false
	}

	ts := stringField(m, zerolog.TimestampFieldName)
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		ts = t.Format(LineTimeFormat)
	}
	lvl := ""
	if raw := stringField(m, zerolog.LevelFieldName); raw != "" {
		if l, err := zerolog.ParseLevel(raw); err == nil {
			lvl = LevelName(l)
		} else {
			lvl = strings.ToUpper(raw)
		}
	}
	name := stringField(m, LoggerFieldName)
	if name == "" {
		name = RootLoggerName
	}
	msg := stringField(m, zerolog.MessageFieldName)

	var b strings.Builder
	b.WriteString(ts)
	b.WriteString(":")
	b.WriteString(lvl)
	b.WriteString(":")
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, LoggerFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(valString(m[k]))
	}
	b.WriteString("\n")
	return b.String(), true
}

func decodeEvent(p []byte) (map[string]any, bool) {
	p = bytes.TrimSpace(p)
	if len(p) == 0 || p[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}
	return m, true
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func valString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		if x == "" || strings.ContainsAny(x, " \t\n\"=") {
			return strconv.Quote(x)
		}
		return x
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
