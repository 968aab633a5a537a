package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one stored log record. Keep it compact and schema-stable.
type Entry struct {
	At      time.Time `json:"at"`
	Logger  string    `json:"logger"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Store is the persistence API used by the sink and the retention job.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error
	// Recent returns up to limit entries, oldest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Prune deletes entries older than before and reports how many.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
