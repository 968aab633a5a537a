package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "synclog/pkg/logx"
)

const pruneTimeout = 30 * time.Second

// Retention deletes records older than MaxAge on a cron schedule.
type Retention struct {
	store  Store
	maxAge time.Duration
	log    logx.Logger
	now    func() time.Time

	mu sync.Mutex
	c  *cron.Cron
}

// NewRetention validates schedule (standard cron or a descriptor such as
// "@every 1h"). A non-positive maxAge makes Start a no-op.
func NewRetention(store Store, maxAge time.Duration, schedule string, log logx.Logger) (*Retention, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = "@every 1h"
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	r := &Retention{store: store, maxAge: maxAge, log: log, now: time.Now}
	if maxAge > 0 && store != nil {
		r.c = cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))
		if _, err := r.c.AddFunc(schedule, r.run); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Retention) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return
	}
	r.c.Start()
	r.log.Info("retention started", logx.Duration("max_age", r.maxAge), logx.Int("jobs", len(r.c.Entries())))
}

// Stop stops the schedule and waits for a running prune, up to ctx.
func (r *Retention) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// PruneNow deletes records older than maxAge immediately.
func (r *Retention) PruneNow(ctx context.Context) (int64, error) {
	if r.store == nil || r.maxAge <= 0 {
		return 0, nil
	}
	return r.store.Prune(ctx, r.now().Add(-r.maxAge))
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	start := time.Now()
	n, err := r.PruneNow(ctx)
	if err != nil {
		r.log.Warn("retention prune failed", logx.Err(err))
		return
	}
	r.log.Debug("retention prune done", logx.Int64("removed", n), logx.Duration("took", time.Since(start)))
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
