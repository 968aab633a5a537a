// Package logx is synclog's logging context.
//
// A Service owns the output writers and is built once at startup:
//   - Console: "<time>:<LEVEL>:<logger>: <message>" lines on stderr
//   - File: the same lines (or raw JSON) in a size-rotated file
//   - Journal: optional journald forwarding
//
// Loggers are cheap values derived from the service with Named, With and
// WithFilter. Every call builds a Record that passes the logger filters and
// then the service filters (see AddFilter) before it reaches the writers and
// the registered sinks (see AddSink).
package logx
