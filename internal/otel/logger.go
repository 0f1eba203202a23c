package otel

// Goroutine safety:
// The drain goroutine is the sole reader of l.ch and the sole writer to l.w.
// Logger.mu protects only the l.ring pointer (read by drain, written by SetRingBuffer).
// The ring buffer has its own lock; drain releases Logger.mu before pushing.

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize is the capacity of the async write channel.
const queueSize = 4096

// queued carries the serialized line for the writer and the original Event
// for the ring buffer, so fields like Dur survive in the in-memory copy.
type queued struct {
	line []byte
	ev   Event
}

// Logger serializes events as JSONL via an async background writer.
//
// All methods are safe on a nil *Logger and do nothing, so components can
// take an optional logger without guarding every call.
type Logger struct {
	mu        sync.Mutex
	ring      *RingBuffer
	sessionID string
	ch        chan queued
	w         io.Writer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogger creates a Logger writing JSONL to w and starts its drain goroutine.
// Call Close to flush.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		sessionID: fmt.Sprintf("%x", sid[:]),
		ch:        make(chan queued, queueSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go l.drain()
	return l
}

// NewNullLogger creates a Logger that discards output. Useful when only the
// ring buffer is wanted.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

func (l *Logger) drain() {
	defer close(l.done)
	for q := range l.ch {
		if _, err := l.w.Write(q.line); err != nil {
			l.dropped.Add(1)
		}

		l.mu.Lock()
		rb := l.ring
		l.mu.Unlock()

		if rb != nil {
			rb.Push(q.ev)
		}
	}
}

// Emit queues an event. Sets Time (if zero) and SessionID. Never blocks: when
// the queue is full or the logger is closed the event is counted as dropped.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	// Close may race between the closed check and the send.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	line = append(line, '\n')

	select {
	case l.ch <- queued{line: line, ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err is logged as an empty string.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// Scope returns an emitter that stamps every event with comp and runID.
func (l *Logger) Scope(comp, runID string) Scope {
	return Scope{l: l, comp: comp, runID: runID}
}

// SetRingBuffer attaches a ring buffer for live inspection.
func (l *Logger) SetRingBuffer(rb *RingBuffer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = rb
}

// SessionID returns the random process identifier stamped on every event.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Dropped returns the number of events dropped since creation.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine. Emit calls
// racing with Close are dropped, not panicked. Idempotent.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done

		if d := l.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "rangefilter: %d events dropped during session %s\n", d, l.sessionID)
		}
	})
}

// Scope is a Logger bound to one component and filter pass.
type Scope struct {
	l     *Logger
	comp  string
	runID string
}

// Emit fills Comp and RunID when unset and forwards to the Logger.
func (s Scope) Emit(e Event) {
	if e.Comp == "" {
		e.Comp = s.comp
	}
	if e.RunID == "" {
		e.RunID = s.runID
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	s.l.Emit(e)
}

// Fail emits an error-level event of the given kind.
func (s Scope) Fail(kind EventKind, err error, msg string) {
	e := Event{Level: LevelError, Kind: kind, Msg: msg}
	if err != nil {
		e.Err = err.Error()
	}
	s.Emit(e)
}

// RunID returns the pass identifier the scope stamps on events.
func (s Scope) RunID() string { return s.runID }
