// Package record defines the unit the filter engine works on: a journal entry
// with a date key and a handle to its on-screen representation.
//
// Records belong to the caller. The engine reads them, toggles their handles
// and, when a date key has to be repaired, writes the repaired key back into
// Record.DateKey. It never creates or destroys records or handles.
package record

import (
	"errors"

	"github.com/abelbrown/rangefilter/internal/daterange"
)

// ErrDisposed is returned by handles whose on-screen unit no longer exists.
var ErrDisposed = errors.New("presentation handle disposed")

// Handle is a reference to a record's on-screen representation.
type Handle interface {
	// SetHidden toggles the hidden presentation state.
	SetHidden(hidden bool) error

	// Hidden reports the current presentation state.
	Hidden() bool
}

// Labeled is implemented by handles that show a human-readable date. Repair
// uses it as the secondary source for a missing date key.
type Labeled interface {
	DisplayDate() string
}

// Record is one journal entry.
type Record struct {
	ID      string
	DateKey daterange.Key      // canonical slot, may be empty or malformed
	Metrics map[string]float64 // numeric fields summarized by aggregate
	Handle  Handle
}

// DisplayDate returns the handle's human-readable date, or "".
func (r *Record) DisplayDate() string {
	if l, ok := r.Handle.(Labeled); ok {
		return l.DisplayDate()
	}
	return ""
}

// Visible returns the records whose handle is currently not hidden. Records
// without a handle are skipped.
func Visible(records []*Record) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if r == nil || r.Handle == nil {
			continue
		}
		if !r.Handle.Hidden() {
			out = append(out, r)
		}
	}
	return out
}

// MemHandle is an in-memory Handle, used by headless surfaces and tests.
type MemHandle struct {
	Label    string // human-readable date
	hidden   bool
	disposed bool
	toggles  int
}

// NewMemHandle returns a visible handle with the given display date.
func NewMemHandle(label string) *MemHandle {
	return &MemHandle{Label: label}
}

// SetHidden implements Handle.
func (h *MemHandle) SetHidden(hidden bool) error {
	if h.disposed {
		return ErrDisposed
	}
	h.hidden = hidden
	h.toggles++
	return nil
}

// Hidden implements Handle.
func (h *MemHandle) Hidden() bool { return h.hidden }

// DisplayDate implements Labeled.
func (h *MemHandle) DisplayDate() string { return h.Label }

// Dispose makes every later SetHidden fail with ErrDisposed.
func (h *MemHandle) Dispose() { h.disposed = true }

// Toggles returns how many times SetHidden succeeded.
func (h *MemHandle) Toggles() int { return h.toggles }
