// Package storage persists emitted log records.
//
// Drivers:
//   - "file": JSON Lines file, rewritten in place when pruned
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
//
// Records reach a Store through Sink, a bounded queue drained by one worker,
// and old records are removed by Retention on a cron schedule.
package storage
