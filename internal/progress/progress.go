// Package progress reports ranking advancement. The ranking core emits one Event after every
// oracle invocation and never looks at what a sink does with it.
package progress

import (
	"sync"

	"go.uber.org/zap"
)

type Event struct {
	Strategy  string
	FirstID   string
	SecondID  string // empty for scoring
	Completed int
	Total     int
	Fallback  bool
}

type Sink interface {
	Observe(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Observe(e Event) { f(e) }

// Nop discards events.
type Nop struct{}

func (Nop) Observe(Event) {}

// Log writes each event at debug level.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Observe(e Event) {
	if l.Logger == nil {
		return
	}
	l.Logger.Debug("ranking progress",
		zap.String("strategy", e.Strategy),
		zap.String("first_id", e.FirstID),
		zap.String("second_id", e.SecondID),
		zap.Int("completed", e.Completed),
		zap.Int("total", e.Total),
		zap.Bool("fallback", e.Fallback),
	)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Multi forwards each event to every non-nil sink in order.
type Multi []Sink

func (m Multi) Observe(e Event) {
	for _, s := range m {
		if s != nil {
			s.Observe(e)
		}
	}
}
