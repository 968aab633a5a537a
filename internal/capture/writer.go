// Package capture turns text written by print-style call sites into log
// records, one record per line.
package capture

import (
	"strings"
	"sync"
	"unicode/utf8"

	logx "synclog/pkg/logx"
)

// Writer is an io.Writer that logs every complete line through a logger.
// Unterminated text is kept until the next newline, Flush or Close.
type Writer struct {
	mu    sync.Mutex
	log   logx.Logger
	level logx.Level
	buf   strings.Builder
}

func New(log logx.Logger, level logx.Level) *Writer {
	return &Writer{log: log, level: level}
}

// Write decodes p as UTF-8 (invalid sequences become U+FFFD) and logs every
// completed line. It never fails and always reports len(p).
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.append(decode(p))
	return len(p), nil
}

// WriteString is Write for text input.
func (w *Writer) WriteString(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n := len(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	w.append(s)
	return n, nil
}

func (w *Writer) append(s string) {
	w.mu.Lock()
	w.buf.WriteString(s)
	if !strings.Contains(s, "\n") {
		w.mu.Unlock()
		return
	}
	pending := w.buf.String()
	w.buf.Reset()
	var lines []string
	for {
		i := strings.IndexByte(pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, pending[:i])
		pending = pending[i+1:]
	}
	w.buf.WriteString(pending)
	w.mu.Unlock()

	for _, line := range lines {
		w.log.Log(w.level, line)
	}
}

// Flush logs the unterminated remainder, if any, as one record.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if w.buf.Len() == 0 {
		w.mu.Unlock()
		return nil
	}
	line := w.buf.String()
	w.buf.Reset()
	w.mu.Unlock()

	w.log.Log(w.level, line)
	return nil
}

// Close flushes.
func (w *Writer) Close() error { return w.Flush() }

// IsTerminal always reports false: consumers must not emit colors or
// cursor control for this writer.
func (w *Writer) IsTerminal() bool { return false }

// Pending returns the unterminated text buffered so far.
func (w *Writer) Pending() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func decode(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	return strings.ToValidUTF8(string(p), string(utf8.RuneError))
}
