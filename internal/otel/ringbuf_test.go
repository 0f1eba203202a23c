package otel

import (
	"sync"
	"testing"
)

func TestPushAndSnapshot(t *testing.T) {
	r := NewRingBuffer(8)
	for i := 0; i < 5; i++ {
		r.Push(Event{Kind: KindFilterChunk, Chunk: i})
	}

	snap := r.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 events, got %d", len(snap))
	}
	for i, e := range snap {
		if e.Chunk != i {
			t.Errorf("snap[%d].Chunk=%d, want %d", i, e.Chunk, i)
		}
	}
}

func TestWrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 8; i++ {
		r.Push(Event{Kind: KindFilterChunk, Chunk: i})
	}

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap))
	}
	for i, e := range snap {
		if want := i + 4; e.Chunk != want {
			t.Errorf("snap[%d].Chunk=%d, want %d", i, e.Chunk, want)
		}
	}
}

func TestLast(t *testing.T) {
	tests := []struct {
		name   string
		pushed int
		n      int
		want   []int
	}{
		{"fewer than requested", 2, 5, []int{0, 1}},
		{"exact tail", 8, 3, []int{5, 6, 7}},
		{"after wrap", 11, 3, []int{8, 9, 10}},
		{"zero", 4, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(8)
			for i := 0; i < tt.pushed; i++ {
				r.Push(Event{Chunk: i})
			}
			got := r.Last(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len=%d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Chunk != tt.want[i] {
					t.Errorf("got[%d].Chunk=%d, want %d", i, got[i].Chunk, tt.want[i])
				}
			}
		})
	}
}

func TestForRunAndStats(t *testing.T) {
	r := NewRingBuffer(16)
	r.Push(Event{Kind: KindFilterStart, RunID: "a"})
	r.Push(Event{Kind: KindFilterStart, RunID: "b"})
	r.Push(Event{Kind: KindFilterChunk, RunID: "a"})
	r.Push(Event{Kind: KindFilterComplete, RunID: "a"})

	if got := len(r.ForRun("a")); got != 3 {
		t.Errorf("ForRun(a)=%d events, want 3", got)
	}
	stats := r.Stats()
	if stats[KindFilterStart] != 2 || stats[KindFilterComplete] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestExtraIsCopied(t *testing.T) {
	r := NewRingBuffer(2)
	extra := map[string]any{"k": 1}
	r.Push(Event{Extra: extra})
	extra["k"] = 2

	if got := r.Last(1)[0].Extra["k"]; got != 1 {
		t.Errorf("ring should hold a copy of Extra, got %v", got)
	}
}

func TestConcurrentPush(t *testing.T) {
	r := NewRingBuffer(64)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Push(Event{Kind: KindFilterChunk})
				_ = r.Last(5)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 64 {
		t.Errorf("Len()=%d, want 64", r.Len())
	}
}
