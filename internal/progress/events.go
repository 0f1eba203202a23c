package progress

import (
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

// EventSink records how a pass ended as a structured event. Per-chunk
// events come from the scheduler, so OnProgress is ignored.
type EventSink struct {
	Scope otel.Scope
}

// NewEventSink returns an EventSink bound to s.
func NewEventSink(s otel.Scope) *EventSink {
	return &EventSink{Scope: s}
}

// OnProgress implements Sink.
func (*EventSink) OnProgress(int) {}

// OnComplete implements Sink.
func (s *EventSink) OnComplete(c visibility.Counts) {
	s.Scope.Emit(otel.Event{
		Kind:    otel.KindFilterComplete,
		Count:   c.Visible,
		Total:   c.Total,
		Percent: 100,
		Extra:   countsExtra(c),
	})
}

// OnCancelled implements Sink.
func (s *EventSink) OnCancelled(c visibility.Counts) {
	s.Scope.Emit(otel.Event{
		Level: otel.LevelWarn,
		Kind:  otel.KindFilterCancel,
		Count: c.Visible,
		Total: c.Total,
		Extra: countsExtra(c),
	})
}

func countsExtra(c visibility.Counts) map[string]any {
	return map[string]any{
		"visible":      c.Visible,
		"out_of_range": c.OutOfRange,
		"invalid_date": c.InvalidDate,
	}
}
