package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is read by the UI goroutine on every message, so it is atomic
// to let tests flip it without a race.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("RANGEFILTER_TRACE") != "")
}

// TraceEnabled reports whether RANGEFILTER_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// setTraceEnabled overrides the flag for tests.
func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
