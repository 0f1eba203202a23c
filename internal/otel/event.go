// Package otel provides structured observability for rangefilter.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps the most recent events in memory for the TUI
// debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Filter pass events
	KindFilterStart    EventKind = "filter.start"
	KindFilterPlan     EventKind = "filter.plan"
	KindFilterChunk    EventKind = "filter.chunk"
	KindFilterComplete EventKind = "filter.complete"
	KindFilterCancel   EventKind = "filter.cancel"
	KindFilterInvalid  EventKind = "filter.invalid"
	KindApplyError     EventKind = "filter.apply_error"
	KindSinkError      EventKind = "filter.sink_error"
	KindRecompute      EventKind = "aggregate.recompute"

	// Session events
	KindSessionSave  EventKind = "session.save"
	KindSessionLoad  EventKind = "session.load"
	KindSessionClear EventKind = "session.clear"
	KindSessionError EventKind = "session.error"

	// Store events
	KindStoreError EventKind = "store.error"

	// UI events
	KindKeyPress EventKind = "ui.key"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Trace events, only emitted when RANGEFILTER_TRACE is set
	KindMsgReceived EventKind = "trace.msg_received"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "engine", "scheduler", "ui", "cli"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire process
	RunID     string         `json:"run,omitempty"`        // filter pass correlation ID
	Dur       time.Duration  `json:"-"`                    // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`     // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Total     int            `json:"total,omitempty"`
	Percent   int            `json:"pct,omitempty"`
	Chunk     int            `json:"chunk,omitempty"`
	Range     string         `json:"range,omitempty"` // "START..END"
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
