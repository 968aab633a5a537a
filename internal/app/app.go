package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"synclog/internal/capture"
	"synclog/internal/config"
	"synclog/internal/filter"
	"synclog/internal/runtime/supervisor"
	"synclog/internal/storage"
	logx "synclog/pkg/logx"
)

// App owns the logging service, its filters, the stdout capture writer and
// the optional record store.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	dedup   *filter.Dedup
	dedupOn atomic.Bool
	rl      *filter.RateLimit
	rlOn    atomic.Bool
	sql     *filter.SQLNoise
	sqlOn   atomic.Bool

	capture *capture.Writer
	stdin   io.Reader

	store     storage.Store
	sink      *storage.Sink
	retention *storage.Retention

	stopOnce sync.Once
}

type Option func(*options)

type options struct {
	lookup  config.LookupFunc
	logOpts []logx.Option
	stdin   io.Reader
}

// WithLookup replaces the environment lookup used for SYNCLOG_* overrides.
func WithLookup(fn config.LookupFunc) Option {
	return func(o *options) { o.lookup = fn }
}

// WithLogOptions is passed through to logx.New.
func WithLogOptions(opts ...logx.Option) Option {
	return func(o *options) { o.logOpts = append(o.logOpts, opts...) }
}

// WithStdin sets the reader Run copies from when no command is given.
func WithStdin(r io.Reader) Option {
	return func(o *options) { o.stdin = r }
}

// toggled gates a filter behind a flag that hot reload can flip.
type toggled struct {
	on *atomic.Bool
	f  logx.Filter
}

func (t toggled) Allow(r logx.Record) bool {
	if !t.on.Load() {
		return true
	}
	return t.f.Allow(r)
}

func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{stdin: os.Stdin}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfgm.SetLookup(o.lookup)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	st, storageEnabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg), o.logOpts...)
	log := root.Named("synclog")
	cfgm.SetLogger(log.Named("config"))

	window, _ := cfg.Logging.Dedup.WindowDuration()
	a := &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		dedup: filter.NewDedup(window),
		rl:    filter.NewRateLimit(cfg.Logging.RateLimit.PerSec, cfg.Logging.RateLimit.Burst),
		sql:   filter.NewSQLNoise(),
		stdin: o.stdin,
	}
	a.dedupOn.Store(cfg.Logging.Dedup.Enabled)
	a.rlOn.Store(cfg.Logging.RateLimit.Enabled)
	a.sqlOn.Store(cfg.Capture.SQLFilter)

	logSvc.AddFilter(toggled{on: &a.rlOn, f: a.rl})
	logSvc.AddFilter(toggled{on: &a.dedupOn, f: a.dedup})

	if cfg.Capture.Enabled {
		name := strings.TrimSpace(cfg.Capture.Logger)
		if name == "" {
			name = config.DefaultCaptureLogger
		}
		capLog := root.Named(name).WithFilter(toggled{on: &a.sqlOn, f: a.sql})
		a.capture = capture.New(capLog, logx.ParseLevel(cfg.Capture.Level, logx.LevelInfo))
	}

	if storageEnabled {
		storeLog := log.Named("storage")
		store, err := storage.Open(st.store, storeLog)
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		ret, err := storage.NewRetention(store, st.retention, st.schedule, storeLog)
		if err != nil {
			_ = store.Close()
			_ = logSvc.Close()
			return nil, err
		}
		a.store = store
		a.sink = storage.NewSink(store, st.queueSize, storeLog)
		a.retention = ret
		logSvc.AddSink(a.sink)
		log.Info("storage enabled", logx.String("driver", st.store.Driver))
	}

	return a, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Stdout is the writer print-style output should go to. With capture
// disabled it is the process stdout.
func (a *App) Stdout() io.Writer {
	if a.capture == nil {
		return logx.Stdout()
	}
	return a.capture
}

// Store returns the record store, or nil when storage is disabled.
func (a *App) Store() storage.Store { return a.store }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.Named("supervisor")), supervisor.WithCancelOnError(true))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.apply(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)

	if a.sink != nil {
		a.sup.Go("storage.sink", a.sink.Run)
	}
	if a.retention != nil {
		a.retention.Start()
	}

	a.log.Debug("app started", logx.String("config", a.cfgm.Path()))
	return nil
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	if newCfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(newCfg))

	a.dedupOn.Store(newCfg.Logging.Dedup.Enabled)
	if w, err := newCfg.Logging.Dedup.WindowDuration(); err == nil {
		a.dedup.SetWindow(w)
	}
	a.rlOn.Store(newCfg.Logging.RateLimit.Enabled)
	a.rl.SetRate(newCfg.Logging.RateLimit.PerSec, newCfg.Logging.RateLimit.Burst)
	a.sqlOn.Store(newCfg.Capture.SQLFilter)

	sections, fields := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if oldCfg != nil && (oldCfg.Capture.Enabled != newCfg.Capture.Enabled ||
		oldCfg.Capture.Logger != newCfg.Capture.Logger ||
		oldCfg.Capture.Level != newCfg.Capture.Level) {
		a.log.Warn("capture config changed; restart required for changes to take effect")
	}
	fields = append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)
	a.log.Info("config reloaded", fields...)
}

// Run routes the output of argv through Stdout until the command exits.
// With no argv it copies the configured stdin instead, until EOF or ctx is
// done. Pending partial lines are flushed before Run returns.
func (a *App) Run(ctx context.Context, argv []string) (StopReason, error) {
	out := a.Stdout()
	defer a.flush()

	if len(argv) == 0 {
		// A Read blocked on stdin cannot be interrupted. The copy goroutine
		// outlives a canceled Run until the next Read returns, and whatever it
		// reads then is discarded by ctxWriter.
		done := make(chan error, 1)
		go func() {
			_, err := io.Copy(ctxWriter{ctx: ctx, w: out}, a.stdin)
			done <- err
		}()
		select {
		case <-ctx.Done():
			return StopSignal, nil
		case err := <-done:
			return StopInputEOF, err
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = a.stdin
	cmd.Stdout = out
	cmd.Stderr = logx.Stderr()
	cmd.WaitDelay = 2 * time.Second

	a.log.Info("starting command", logx.String("cmd", strings.Join(argv, " ")))
	err := cmd.Run()
	if ctx.Err() != nil {
		return StopSignal, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		a.log.Warn("command failed", logx.Int("exit_code", exitErr.ExitCode()))
		return StopChildExit, err
	}
	if err != nil {
		return StopFatalError, fmt.Errorf("run %s: %w", argv[0], err)
	}
	a.log.Info("command finished")
	return StopChildExit, nil
}

// ctxWriter fails every Write once ctx is done, which ends an io.Copy.
type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (c ctxWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.w.Write(p)
}

// Recent returns up to limit stored records, oldest first.
func (a *App) Recent(ctx context.Context, limit int) ([]storage.Entry, error) {
	if a.store == nil {
		return nil, storage.ErrDisabled
	}
	return a.store.Recent(ctx, limit)
}

func (a *App) flush() {
	if a.capture != nil {
		_ = a.capture.Flush()
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	var err error
	a.stopOnce.Do(func() { err = a.stop(ctx, reason) })
	return err
}

func (a *App) stop(ctx context.Context, reason StopReason) error {
	a.flush()

	fields := []logx.Field{
		logx.String("reason", string(reason)),
		logx.Uint64("dedup_suppressed", a.dedup.Suppressed()),
		logx.Uint64("rate_limited", a.rl.Dropped()),
		logx.Uint64("sql_dropped", a.sql.Dropped()),
	}
	if a.sink != nil {
		fields = append(fields,
			logx.Uint64("stored", a.sink.Stored()),
			logx.Uint64("store_dropped", a.sink.Dropped()),
			logx.Uint64("store_failed", a.sink.Failed()),
		)
	}
	a.log.Info("stopping", fields...)

	var errs []error
	if a.retention != nil {
		a.retention.Stop(ctx)
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
