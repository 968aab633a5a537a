package filter

import (
	"sync"
	"sync/atomic"
	"time"

	logx "synclog/pkg/logx"
)

// DefaultDedupWindow is used when NewDedup gets a non-positive window.
const DefaultDedupWindow = 2 * time.Second

type dedupKey struct {
	name    string
	level   logx.Level
	message string
}

// Dedup suppresses a record identical (name, level, message) to the
// previously stored one when it arrives less than the window after it.
// A suppressed record does not refresh the stored time, so a steady stream of
// repeats is let through once per window.
type Dedup struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	last   dedupKey
	lastAt time.Time
	seen   bool

	suppressed atomic.Uint64
}

type DedupOption func(*Dedup)

// WithClock overrides the time source. Values must carry a monotonic reading
// (time.Now does) or be strictly increasing.
func WithClock(now func() time.Time) DedupOption {
	return func(d *Dedup) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDedup(window time.Duration, opts ...DedupOption) *Dedup {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	d := &Dedup{window: window, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Allow implements logx.Filter.
func (d *Dedup) Allow(r logx.Record) bool {
	k := dedupKey{name: r.Name, level: r.Level, message: r.Message}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen && k == d.last && now.Sub(d.lastAt) < d.window {
		d.suppressed.Add(1)
		return false
	}
	d.last = k
	d.lastAt = now
	d.seen = true
	return true
}

// SetWindow changes the window for subsequent records.
func (d *Dedup) SetWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	d.mu.Lock()
	d.window = window
	d.mu.Unlock()
}

func (d *Dedup) Window() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window
}

// Suppressed returns how many records were dropped so far.
func (d *Dedup) Suppressed() uint64 { return d.suppressed.Load() }
