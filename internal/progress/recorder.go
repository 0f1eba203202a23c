package progress

import (
	"sync"

	"github.com/abelbrown/rangefilter/internal/visibility"
)

// Recorder is a Sink that remembers everything it saw.
type Recorder struct {
	mu        sync.Mutex
	Percents  []int
	Completed *visibility.Counts
	Cancelled *visibility.Counts
}

// OnProgress implements Sink.
func (r *Recorder) OnProgress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Percents = append(r.Percents, percent)
}

// OnComplete implements Sink.
func (r *Recorder) OnComplete(c visibility.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = &c
}

// OnCancelled implements Sink.
func (r *Recorder) OnCancelled(c visibility.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancelled = &c
}

// Last returns the most recent percentage, or -1.
func (r *Recorder) Last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Percents) == 0 {
		return -1
	}
	return r.Percents[len(r.Percents)-1]
}
