package filter

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	logx "synclog/pkg/logx"
)

// RateLimit caps records per logger name with a token bucket each.
type RateLimit struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter

	dropped atomic.Uint64
}

func NewRateLimit(perSec float64, burst int) *RateLimit {
	rl := &RateLimit{limiters: map[string]*rate.Limiter{}}
	rl.set(perSec, burst)
	return rl
}

func (rl *RateLimit) set(perSec float64, burst int) {
	if perSec <= 0 {
		perSec = 1
	}
	rl.limit = rate.Limit(perSec)
	rl.burst = max(1, burst)
}

// SetRate replaces the budget. Existing buckets are reset.
func (rl *RateLimit) SetRate(perSec float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.set(perSec, burst)
	rl.limiters = map[string]*rate.Limiter{}
}

func (rl *RateLimit) Allow(r logx.Record) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[r.Name]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[r.Name] = lim
	}
	rl.mu.Unlock()

	if lim.AllowN(r.Time, 1) {
		return true
	}
	rl.dropped.Add(1)
	return false
}

// Dropped returns how many records were over budget.
func (rl *RateLimit) Dropped() uint64 { return rl.dropped.Load() }
