package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ---- Config ----

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Journal JournalConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
	// Format is "text" (default) or "json".
	Format     string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

type JournalConfig struct {
	Enabled    bool
	Identifier string
}

const (
	DefaultFilePath   = "./synclog.log"
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
)

// ---- Logger API ----

type Level = zerolog.Level

const (
	LevelTrace    = zerolog.TraceLevel
	LevelDebug    = zerolog.DebugLevel
	LevelInfo     = zerolog.InfoLevel
	LevelWarn     = zerolog.WarnLevel
	LevelError    = zerolog.ErrorLevel
	LevelCritical = zerolog.FatalLevel
)

// LoggerFieldName carries the logger name in the zerolog event.
const LoggerFieldName = "logger"

// Field mutates a zerolog event.
//
// Fields are applied in-order; if the same key is set multiple times, later
// fields win in the rendered line.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event) { e.Int64(k, v) }
}
func Uint64(k string, v uint64) Field {
	return func(e *zerolog.Event) { e.Uint64(k, v) }
}
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Any(k string, v any) Field { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

func Stack(stack string) Field {
	return func(e *zerolog.Event) {
		if strings.TrimSpace(stack) != "" {
			e.Str("stack", stack)
		}
	}
}

// Logger is a lightweight named logger.
//
//   - If created from Service, it stays "live" across Service.Apply() calls.
//   - Named() and With() return derived loggers.
//   - Zero value is a safe no-op logger.
type Logger struct {
	svc     *Service
	base    zerolog.Logger
	hasBase bool

	name    string
	fields  []Field
	filters []Filter
}

// Nop returns a logger that never writes anything.
func Nop() Logger {
	return Logger{base: zerolog.Nop(), hasBase: true}
}

// NewConsole creates a standalone stderr logger (no Service, no filters or sinks).
// Useful before the config has been loaded.
func NewConsole(level string) Logger {
	zl := zerolog.New(NewLineWriter(Stderr())).Level(ParseLevel(level, LevelInfo))
	return Logger{base: zl, hasBase: true}
}

func (l Logger) IsZero() bool {
	return l.svc == nil && !l.hasBase && len(l.fields) == 0 && l.name == ""
}

func (l Logger) root() zerolog.Logger {
	if l.svc != nil {
		return l.svc.current()
	}
	if l.hasBase {
		return l.base
	}
	return zerolog.Nop()
}

// Name returns the dotted logger name ("" for the root logger).
func (l Logger) Name() string { return l.name }

// Named returns a child logger. Names are joined with dots, so
// log.Named("sync").Named("pg") is "sync.pg".
func (l Logger) Named(name string) Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	cp := l
	if l.name == "" {
		cp.name = name
	} else {
		cp.name = l.name + "." + name
	}
	return cp
}

// WithFilter returns a logger whose records must also pass f.
// Logger filters run before the service-wide filters.
func (l Logger) WithFilter(f Filter) Logger {
	if f == nil {
		return l
	}
	cp := l
	cp.filters = append(append([]Filter(nil), l.filters...), f)
	return cp
}

// Enabled reports whether the given level would be logged.
func (l Logger) Enabled(level Level) bool {
	zl := l.root()
	return level >= zl.GetLevel()
}

func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	cp := l
	cp.fields = append(append([]Field(nil), l.fields...), fields...)
	return cp
}

func (l Logger) Trace(msg string, fields ...Field)    { l.Log(LevelTrace, msg, fields...) }
func (l Logger) Debug(msg string, fields ...Field)    { l.Log(LevelDebug, msg, fields...) }
func (l Logger) Info(msg string, fields ...Field)     { l.Log(LevelInfo, msg, fields...) }
func (l Logger) Warn(msg string, fields ...Field)     { l.Log(LevelWarn, msg, fields...) }
func (l Logger) Error(msg string, fields ...Field)    { l.Log(LevelError, msg, fields...) }
func (l Logger) Critical(msg string, fields ...Field) { l.Log(LevelCritical, msg, fields...) }

// Log emits msg at level. The record goes through the level check, the
// logger filters, the service filters, and then every writer and sink.
func (l Logger) Log(level Level, msg string, fields ...Field) {
	zl := l.root()
	if level < zl.GetLevel() {
		return
	}

	r := Record{Name: l.name, Level: level, Message: msg, Time: l.now()}
	for _, f := range l.filters {
		if !f.Allow(r) {
			return
		}
	}

	var sinks []Sink
	if l.svc != nil {
		p := l.svc.snapshot()
		for _, f := range p.filters {
			if !f.Allow(r) {
				return
			}
		}
		sinks = p.sinks
	}

	// WithLevel never exits or panics, which is what CRITICAL needs.
	e := zl.WithLevel(level)
	if e != nil {
		e.Str(zerolog.TimestampFieldName, r.Time.Format(time.RFC3339Nano))
		if r.Name != "" {
			e.Str(LoggerFieldName, r.Name)
		}
		for _, f := range l.fields {
			if f != nil {
				f(e)
			}
		}
		for _, f := range fields {
			if f != nil {
				f(e)
			}
		}
		e.Msg(msg)
	}

	for _, s := range sinks {
		s.Consume(r)
	}
}

func (l Logger) now() time.Time {
	if l.svc != nil && l.svc.clock != nil {
		return l.svc.clock()
	}
	return time.Now()
}

// ---- Service (dynamic config + sinks) ----

// Service is the process logging context: it owns the writers, the
// service-wide filters and the record sinks. Build one at startup and hand
// its loggers to every component.
type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // stores zerolog.Logger

	pipe atomic.Pointer[pipeline]

	console io.Writer
	clock   func() time.Time
	journal journalSender

	file *rotatingFile
}

type pipeline struct {
	filters []Filter
	sinks   []Sink
}

// Option customizes a Service.
type Option func(*Service)

// WithConsoleOutput redirects the console writer (stderr by default).
func WithConsoleOutput(w io.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.console = w
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

func withJournal(j journalSender) Option {
	return func(s *Service) { s.journal = j }
}

// New creates the logging service, applies the initial config immediately,
// and returns both the Service and a root Logger.
func New(cfg Config, opts ...Option) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"

	s := &Service{
		cfg:     cfg,
		console: Stderr(),
		clock:   time.Now,
		journal: systemdJournal{},
	}
	for _, o := range opts {
		o(s)
	}
	s.pipe.Store(&pipeline{})

	// Safe bootstrap root.
	s.root.Store(zerolog.New(NewLineWriter(s.console)).Level(ParseLevel(cfg.Level, LevelInfo)))

	s.Apply(cfg)

	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	v := s.root.Load()
	if v == nil {
		return zerolog.Nop()
	}
	zl, ok := v.(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) snapshot() *pipeline {
	p := s.pipe.Load()
	if p == nil {
		return &pipeline{}
	}
	return p
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// AddFilter installs a service-wide filter. Filters run in the order added.
func (s *Service) AddFilter(f Filter) {
	if f == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snapshot()
	next := &pipeline{
		filters: append(append([]Filter(nil), old.filters...), f),
		sinks:   old.sinks,
	}
	s.pipe.Store(next)
}

// AddSink registers a sink that receives every record that passed all filters.
func (s *Service) AddSink(sk Sink) {
	if sk == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snapshot()
	next := &pipeline{
		filters: old.filters,
		sinks:   append(append([]Sink(nil), old.sinks...), sk),
	}
	s.pipe.Store(next)
}

// Config returns the config most recently applied.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if f != nil {
		return f.Close()
	}
	return nil
}

// Apply swaps logger outputs/levels at runtime.
// It is safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg

	// The old file is closed after the new root is stored; a Log call still
	// holding the old root writes into a closed rotatingFile and is dropped.
	prev := s.file
	s.file = nil
	defer func() {
		if prev != nil {
			_ = prev.Close()
		}
	}()

	lvl := ParseLevel(cfg.Level, LevelInfo)

	writers := make([]io.Writer, 0, 3)
	if cfg.Console {
		writers = append(writers, NewLineWriter(s.console))
	}
	if cfg.File.Enabled {
		if w, err := s.openFileLocked(cfg.File); err != nil {
			fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", cfg.File.Path, err)
		} else {
			writers = append(writers, w)
		}
	}
	if cfg.Journal.Enabled {
		if s.journal != nil && s.journal.Enabled() {
			writers = append(writers, newJournalWriter(s.journal, cfg.Journal.Identifier))
		} else {
			fmt.Fprintln(os.Stderr, "logx: journal logging enabled but the journald socket is unavailable")
		}
	}

	if len(writers) == 0 {
		writers = append(writers, NewLineWriter(s.console))
	}

	mw := zerolog.MultiLevelWriter(writers...)
	s.root.Store(zerolog.New(mw).Level(lvl))
}

func (s *Service) openFileLocked(fc FileConfig) (io.Writer, error) {
	path := strings.TrimSpace(fc.Path)
	if path == "" {
		path = DefaultFilePath
	}
	maxSize := fc.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeMB
	}
	backups := fc.MaxBackups
	if backups <= 0 {
		backups = DefaultMaxBackups
	}

	// Probe the path so a bad location is reported now instead of on the first write.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	rf := &rotatingFile{lj: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: backups,
		Compress:   fc.Compress,
		LocalTime:  true,
	}}
	s.file = rf

	if strings.EqualFold(strings.TrimSpace(fc.Format), "json") {
		return rf, nil
	}
	return NewLineWriter(rf), nil
}

// rotatingFile serializes writes to a lumberjack logger and drops them once
// closed. lumberjack reopens its file on any Write, so a write racing a
// Close would otherwise leak a second handle on the same path.
type rotatingFile struct {
	mu     sync.Mutex
	lj     *lumberjack.Logger
	closed bool
}

func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return len(p), nil
	}
	return f.lj.Write(p)
}

func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.lj.Close()
}

// ParseLevel maps a case-insensitive level name to a Level.
// Unrecognized names return def.
func ParseLevel(s string, def Level) Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "CRITICAL", "FATAL":
		return LevelCritical
	default:
		return def
	}
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	return ParseLevel(s, zerolog.NoLevel) != zerolog.NoLevel
}

// LevelName renders a level the way the line format prints it.
func LevelName(l Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical, zerolog.PanicLevel:
		return "CRITICAL"
	default:
		return strings.ToUpper(l.String())
	}
}

// Stdout returns the process stdout.
func Stdout() io.Writer { return os.Stdout }

// Stderr returns the process stderr.
func Stderr() io.Writer { return os.Stderr }
