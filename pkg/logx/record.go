package logx

import "time"

// Record is one log call as seen by filters and sinks.
type Record struct {
	Name    string
	Level   Level
	Message string
	Time    time.Time
}

// Filter decides whether a record is emitted.
type Filter interface {
	Allow(r Record) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(r Record) bool

func (f FilterFunc) Allow(r Record) bool { return f(r) }

// Sink receives every record that passed the level check and all filters.
// Consume must not block; slow sinks should queue and drop.
type Sink interface {
	Consume(r Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Record)

func (f SinkFunc) Consume(r Record) { f(r) }
