package storage

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	logx "synclog/pkg/logx"
)

const (
	DefaultQueueSize = 1024
	sinkBatchSize    = 64
	sinkDrainTimeout = 2 * time.Second
)

// Sink feeds log records into a Store. Consume never blocks: when the queue
// is full the record is dropped and counted. Run drains the queue.
type Sink struct {
	store Store
	log   logx.Logger
	queue chan Entry

	// warn limits failure reports; they are logged and land back in the queue.
	warn *rate.Limiter

	dropped atomic.Uint64
	failed  atomic.Uint64
	stored  atomic.Uint64
}

func NewSink(store Store, queueSize int, log logx.Logger) *Sink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Sink{
		store: store,
		log:   log,
		queue: make(chan Entry, queueSize),
		warn:  rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// Consume implements logx.Sink.
func (s *Sink) Consume(r logx.Record) {
	e := Entry{At: r.Time, Logger: r.Name, Level: logx.LevelName(r.Level), Message: r.Message}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Run writes queued entries in batches until ctx is done, then drains what
// is left with a short deadline.
func (s *Sink) Run(ctx context.Context) error {
	batch := make([]Entry, 0, sinkBatchSize)
	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.Background(), sinkDrainTimeout)
			s.drain(dctx, batch[:0])
			cancel()
			return nil
		case e := <-s.queue:
			batch = append(batch[:0], e)
		fill:
			for len(batch) < sinkBatchSize {
				select {
				case e := <-s.queue:
					batch = append(batch, e)
				default:
					break fill
				}
			}
			s.write(ctx, batch)
		}
	}
}

func (s *Sink) drain(ctx context.Context, batch []Entry) {
	for {
		batch = batch[:0]
	fill:
		for len(batch) < sinkBatchSize {
			select {
			case e := <-s.queue:
				batch = append(batch, e)
			default:
				break fill
			}
		}
		if len(batch) == 0 || ctx.Err() != nil {
			return
		}
		s.write(ctx, batch)
	}
}

func (s *Sink) write(ctx context.Context, batch []Entry) {
	if err := s.store.Append(ctx, batch...); err != nil {
		s.failed.Add(uint64(len(batch)))
		if s.warn.Allow() {
			s.log.Warn("record store append failed",
				logx.Err(err),
				logx.Int("batch", len(batch)),
				logx.Uint64("failed_total", s.failed.Load()),
			)
		}
		return
	}
	s.stored.Add(uint64(len(batch)))
}

func (s *Sink) Dropped() uint64 { return s.dropped.Load() }
func (s *Sink) Failed() uint64  { return s.failed.Load() }
func (s *Sink) Stored() uint64  { return s.stored.Load() }
