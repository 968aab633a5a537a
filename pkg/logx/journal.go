package logx

import (
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
)

// journalSender is the subset of go-systemd's journal package we need.
type journalSender interface {
	Enabled() bool
	Send(msg string, pri journal.Priority, vars map[string]string) error
}

type systemdJournal struct{}

func (systemdJournal) Enabled() bool { return journal.Enabled() }
func (systemdJournal) Send(msg string, pri journal.Priority, vars map[string]string) error {
	return journal.Send(msg, pri, vars)
}

const defaultJournalIdentifier = "synclog"

// journalWriter forwards zerolog events to journald.
type journalWriter struct {
	j          journalSender
	identifier string
}

func newJournalWriter(j journalSender, identifier string) *journalWriter {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = defaultJournalIdentifier
	}
	return &journalWriter{j: j, identifier: identifier}
}

func (w *journalWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *journalWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	m, ok := decodeEvent(p)
	if !ok {
		msg := strings.TrimSpace(string(p))
		if msg == "" {
			return len(p), nil
		}
		return len(p), w.j.Send(msg, journal.PriInfo, map[string]string{"SYSLOG_IDENTIFIER": w.identifier})
	}

	if level == zerolog.NoLevel {
		if l, err := zerolog.ParseLevel(stringField(m, zerolog.LevelFieldName)); err == nil {
			level = l
		}
	}

	vars := map[string]string{"SYSLOG_IDENTIFIER": w.identifier}
	for k, v := range m {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		vars[journalKey(k)] = valString(v)
	}
	if err := w.j.Send(stringField(m, zerolog.MessageFieldName), journalPriority(level), vars); err != nil {
		return 0, err
	}
	return len(p), nil
}

func journalPriority(l zerolog.Level) journal.Priority {
	switch {
	case l <= zerolog.DebugLevel:
		return journal.PriDebug
	case l == zerolog.InfoLevel:
		return journal.PriInfo
	case l == zerolog.WarnLevel:
		return journal.PriWarning
	case l == zerolog.ErrorLevel:
		return journal.PriErr
	case l == zerolog.FatalLevel, l == zerolog.PanicLevel:
		return journal.PriCrit
	default:
		return journal.PriInfo
	}
}

// journalKey upper-cases a field name and replaces characters journald rejects.
// Names must not start with an underscore.
func journalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(k) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "_")
	if out == "" {
		return "FIELD"
	}
	return out
}
