package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abelbrown/rangefilter/internal/config"
	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/session"
	"github.com/abelbrown/rangefilter/internal/store"
)

func testEnv(t *testing.T, backend string) *env {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Session.Backend = backend
	return &env{cfg: cfg, store: st, events: otel.NewNullLogger()}
}

func saveSession(t *testing.T, e *env) {
	t.Helper()
	rng, err := daterange.NewRange("2025-05-01", "2025-05-31")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	sessions := e.sessionStore()
	if err := sessions.Save(ctx, session.Session{Range: &rng, Label: "may"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := sessions.Load(ctx)
	if got == nil || got.Label != "may" {
		t.Fatalf("Load = %+v", got)
	}
}

func TestSessionStoreFileBackend(t *testing.T) {
	e := testEnv(t, config.SessionFile)
	saveSession(t, e)

	if _, err := os.Stat(filepath.Join(e.cfg.SessionDir(), "filter.session.json")); err != nil {
		t.Errorf("session file not written: %v", err)
	}
	if _, ok, _ := e.store.Get(context.Background(), session.Key); ok {
		t.Error("file backend must not write the database")
	}
}

func TestSessionStoreSQLiteBackend(t *testing.T) {
	e := testEnv(t, config.SessionSQLite)
	saveSession(t, e)

	if _, ok, err := e.store.Get(context.Background(), session.Key); err != nil || !ok {
		t.Errorf("session not in database: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(e.cfg.SessionDir()); !os.IsNotExist(err) {
		t.Errorf("sqlite backend must not create %s", e.cfg.SessionDir())
	}
}
