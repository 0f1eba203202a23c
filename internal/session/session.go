// Package session persists the last applied filter so it can be restored on
// the next start.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/otel"
)

// Key is the fixed storage key of the filter session.
const Key = "filter.session"

// Session is the persisted filter. A nil Range means "show everything".
type Session struct {
	Range   *daterange.Range `json:"range"`
	Label   string           `json:"label"`
	SavedAt time.Time        `json:"saved_at,omitempty"`
}

// KV is the durable key-value collaborator a Store writes through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PersistenceError wraps a failed write. It never fails a filter pass.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "session " + e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store reads and writes the single filter session.
type Store struct {
	kv     KV
	now    func() time.Time
	events otel.Scope
}

// NewStore returns a Store over kv. events may be nil.
func NewStore(kv KV, events *otel.Logger) *Store {
	return &Store{kv: kv, now: time.Now, events: events.Scope("session", "")}
}

// Save overwrites the stored session. Saving the same session twice leaves
// the same state; the last write wins.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if sess.Range != nil {
		if err := sess.Range.Validate(); err != nil {
			return err
		}
	}
	if sess.SavedAt.IsZero() {
		sess.SavedAt = s.now().UTC()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := s.kv.Put(ctx, Key, data); err != nil {
		s.events.Fail(otel.KindSessionError, err, "save")
		return &PersistenceError{Op: "save", Err: err}
	}
	s.events.Emit(otel.Event{Kind: otel.KindSessionSave, Msg: sess.Label, Range: rangeText(sess.Range)})
	return nil
}

// Load returns the stored session, or nil when there is none. A session that
// cannot be read or decoded is logged and treated as absent.
func (s *Store) Load(ctx context.Context) *Session {
	data, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		logging.Warn("Failed to read filter session", "error", err)
		s.events.Fail(otel.KindSessionError, err, "load")
		return nil
	}
	if !ok {
		return nil
	}

	sess, err := decode(data)
	if err != nil {
		logging.Warn("Ignoring corrupt filter session", "error", err)
		s.events.Fail(otel.KindSessionError, err, "decode")
		return nil
	}
	s.events.Emit(otel.Event{Kind: otel.KindSessionLoad, Msg: sess.Label, Range: rangeText(sess.Range)})
	return sess
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, Key); err != nil {
		s.events.Fail(otel.KindSessionError, err, "clear")
		return &PersistenceError{Op: "clear", Err: err}
	}
	s.events.Emit(otel.Event{Kind: otel.KindSessionClear})
	return nil
}

// decode parses a stored session. Range bounds are validated by
// daterange.Range's UnmarshalJSON.
func decode(data []byte) (*Session, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if _, ok := raw["range"]; !ok {
		return nil, errors.New("decode session: missing range")
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func rangeText(r *daterange.Range) string {
	if r == nil {
		return ""
	}
	return r.String()
}
