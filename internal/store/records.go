package store

import (
	"context"
	"fmt"

	"github.com/abelbrown/rangefilter/internal/record"
)

// Handle is a record.Handle backed by the entries table: toggling it
// updates the stored hidden flag.
type Handle struct {
	s      *Store
	id     string
	label  string
	hidden bool
}

// SetHidden implements record.Handle.
func (h *Handle) SetHidden(hidden bool) error {
	if err := h.s.SetHidden(context.Background(), h.id, hidden); err != nil {
		return err
	}
	h.hidden = hidden
	return nil
}

// Hidden implements record.Handle.
func (h *Handle) Hidden() bool { return h.hidden }

// DisplayDate implements record.Labeled.
func (h *Handle) DisplayDate() string { return h.label }

// Records loads every entry as a record whose handle writes through to the
// store. Used by headless runs, where the table itself is the surface.
func (s *Store) Records(ctx context.Context) ([]*record.Record, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*record.Record, len(entries))
	for i, e := range entries {
		out[i] = &record.Record{
			ID:      e.ID,
			DateKey: e.DateKey,
			Metrics: e.Metrics,
			Handle:  &Handle{s: s, id: e.ID, label: e.DisplayDate, hidden: e.Hidden},
		}
	}
	return out, nil
}

// SaveRepairs persists the date keys the planner wrote back into records.
func (s *Store) SaveRepairs(ctx context.Context, records []*record.Record, repaired []int) error {
	for _, i := range repaired {
		if i < 0 || i >= len(records) || records[i] == nil {
			continue
		}
		r := records[i]
		if err := s.UpdateDateKey(ctx, r.ID, r.DateKey); err != nil {
			return fmt.Errorf("save repaired key for %s: %w", r.ID, err)
		}
	}
	return nil
}
