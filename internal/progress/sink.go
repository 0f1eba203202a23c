// Package progress defines how a filter pass reports progress, decoupled
// from any concrete widget.
package progress

import (
	"fmt"

	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

// Sink observes a filter pass.
//
// OnProgress receives percentages in [0,100], non-decreasing within a pass.
// Exactly one of OnComplete or OnCancelled ends a pass.
type Sink interface {
	OnProgress(percent int)
	OnComplete(counts visibility.Counts)
	OnCancelled(partial visibility.Counts)
}

// Funcs implements Sink with optional callbacks.
type Funcs struct {
	Progress  func(percent int)
	Complete  func(counts visibility.Counts)
	Cancelled func(partial visibility.Counts)
}

// OnProgress implements Sink.
func (f Funcs) OnProgress(percent int) {
	if f.Progress != nil {
		f.Progress(percent)
	}
}

// OnComplete implements Sink.
func (f Funcs) OnComplete(c visibility.Counts) {
	if f.Complete != nil {
		f.Complete(c)
	}
}

// OnCancelled implements Sink.
func (f Funcs) OnCancelled(c visibility.Counts) {
	if f.Cancelled != nil {
		f.Cancelled(c)
	}
}

// Nop discards everything.
var Nop Sink = Funcs{}

// ErrorHandler is told about a sink that panicked.
type ErrorHandler func(sink Sink, event string, err error)

// Fanout delivers every event to each attached sink. A sink that panics is
// isolated: the panic is recovered, logged and handed to OnError, and the
// remaining sinks still run.
type Fanout struct {
	sinks   []Sink
	OnError ErrorHandler
}

// Multi combines sinks, skipping nils.
func Multi(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add attaches another sink.
func (f *Fanout) Add(s Sink) {
	if s != nil {
		f.sinks = append(f.sinks, s)
	}
}

// Len returns the number of attached sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// OnProgress implements Sink.
func (f *Fanout) OnProgress(percent int) {
	f.each("progress", func(s Sink) { s.OnProgress(percent) })
}

// OnComplete implements Sink.
func (f *Fanout) OnComplete(c visibility.Counts) {
	f.each("complete", func(s Sink) { s.OnComplete(c) })
}

// OnCancelled implements Sink.
func (f *Fanout) OnCancelled(c visibility.Counts) {
	f.each("cancelled", func(s Sink) { s.OnCancelled(c) })
}

func (f *Fanout) each(event string, call func(Sink)) {
	for _, s := range f.sinks {
		f.safeCall(s, event, call)
	}
}

func (f *Fanout) safeCall(s Sink, event string, call func(Sink)) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("progress sink %T panicked on %s: %v", s, event, r)
			logging.Warn("Progress sink failed", "sink", fmt.Sprintf("%T", s), "event", event, "error", err)
			if f.OnError != nil {
				f.OnError(s, event, err)
			}
		}
	}()
	call(s)
}

// Monotonic wraps a sink so it only sees percentages clamped to [0,100]
// and never lower than the previous one.
func Monotonic(s Sink) Sink {
	return &monotonic{Sink: s, last: -1}
}

type monotonic struct {
	Sink
	last int
}

func (m *monotonic) OnProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < m.last {
		return
	}
	m.last = percent
	m.Sink.OnProgress(percent)
}
