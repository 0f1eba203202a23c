package ui

import "github.com/abelbrown/rangefilter/internal/aggregate"

// Board collects what the engine reports during Update: the end-of-run
// notice and the latest summary. The engine calls it synchronously from
// inside a Step, so it is written and read on the Bubble Tea goroutine only.
type Board struct {
	notice  string
	summary *aggregate.Summary
}

// NewBoard returns an empty Board.
func NewBoard() *Board { return &Board{} }

// Notify implements engine.Notifier.
func (b *Board) Notify(msg string) { b.notice = msg }

// Publish implements aggregate.Sink.
func (b *Board) Publish(s aggregate.Summary) { b.summary = &s }

// Notice returns the last notice.
func (b *Board) Notice() string { return b.notice }

// Summary returns the last published summary, or nil.
func (b *Board) Summary() *aggregate.Summary { return b.summary }
