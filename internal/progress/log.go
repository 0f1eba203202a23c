package progress

import (
	"github.com/charmbracelet/log"

	"github.com/abelbrown/rangefilter/internal/visibility"
)

// LogSink is a passive observer that writes a pass to a charmbracelet logger.
// Progress lines are logged at debug level every Step percent.
type LogSink struct {
	Logger *log.Logger
	Label  string
	Step   int

	last int
}

// NewLogSink returns a LogSink logging every 10%.
func NewLogSink(l *log.Logger, label string) *LogSink {
	return &LogSink{Logger: l, Label: label, Step: 10, last: -1}
}

// OnProgress implements Sink.
func (s *LogSink) OnProgress(percent int) {
	if s.Logger == nil {
		return
	}
	step := s.Step
	if step <= 0 {
		step = 1
	}
	if s.last >= 0 && percent < 100 && percent-s.last < step {
		return
	}
	s.last = percent
	s.Logger.Debug("Filter progress", "label", s.Label, "pct", percent)
}

// OnComplete implements Sink.
func (s *LogSink) OnComplete(c visibility.Counts) {
	if s.Logger == nil {
		return
	}
	s.Logger.Info("Filter complete",
		"label", s.Label,
		"visible", c.Visible,
		"out_of_range", c.OutOfRange,
		"invalid_date", c.InvalidDate,
		"total", c.Total)
}

// OnCancelled implements Sink.
func (s *LogSink) OnCancelled(c visibility.Counts) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn("Filter cancelled",
		"label", s.Label,
		"applied", c.Total,
		"visible", c.Visible)
}
