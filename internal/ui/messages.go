// Package ui provides the Bubble Tea TUI for rangefilter.
package ui

import "github.com/abelbrown/rangefilter/internal/record"

// Row is one entry in the list. Its visibility is the record handle's
// hidden state, which filter passes toggle.
type Row struct {
	Record *record.Record
	Title  string
}

// EntriesLoaded is sent when entries are read from the store.
type EntriesLoaded struct {
	Rows []Row
	Err  error
}

// FrameTick advances the running pass by one chunk.
type FrameTick struct {
	RunID string
}
