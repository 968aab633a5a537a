package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "synclog/pkg/logx"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
	pruned  time.Time
}

func (m *memStore) Append(_ context.Context, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Entry(nil), m.entries...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = before
	var keep []Entry
	var n int64
	for _, e := range m.entries {
		if e.At.Before(before) {
			n++
			continue
		}
		keep = append(keep, e)
	}
	m.entries = keep
	return n, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestSinkStoresRecords(t *testing.T) {
	st := &memStore{}
	s := NewSink(st, 16, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	s.Consume(logx.Record{Name: "sync", Level: logx.LevelWarn, Message: "slow", Time: base})
	s.Consume(logx.Record{Name: "stdout", Level: logx.LevelInfo, Message: "done", Time: base})

	deadline := time.Now().Add(2 * time.Second)
	for st.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	got, _ := st.Recent(context.Background(), 0)
	if len(got) != 2 {
		t.Fatalf("stored %d entries, want 2", len(got))
	}
	if got[0] != (Entry{At: base, Logger: "sync", Level: "WARNING", Message: "slow"}) {
		t.Fatalf("entry = %+v", got[0])
	}
	if s.Stored() != 2 {
		t.Fatalf("Stored() = %d", s.Stored())
	}
}

func TestSinkDrainsOnShutdown(t *testing.T) {
	st := &memStore{}
	s := NewSink(st, 128, logx.Nop())
	for i := 0; i < 100; i++ {
		s.Consume(logx.Record{Message: "x", Time: base})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.len() != 100 {
		t.Fatalf("drained %d entries, want 100", st.len())
	}
}

func TestSinkDropsWhenFull(t *testing.T) {
	s := NewSink(&memStore{}, 2, logx.Nop())
	for i := 0; i < 5; i++ {
		s.Consume(logx.Record{Message: "x"})
	}
	if s.Dropped() != 3 {
		t.Fatalf("Dropped() = %d, want 3", s.Dropped())
	}
}

func TestSinkCountsFailures(t *testing.T) {
	st := &memStore{fail: errors.New("disk full")}
	s := NewSink(st, 8, logx.Nop())
	s.Consume(logx.Record{Message: "a"})
	s.Consume(logx.Record{Message: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.Run(ctx)
	if s.Failed() != 2 {
		t.Fatalf("Failed() = %d, want 2", s.Failed())
	}
}
