package activity

import (
	"context"
	"slices"
	"sync"
)

// Recorder is an ActivityHook that keeps every event it receives. It is safe
// for concurrent use, since stores emit from their flush goroutine.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// Notify records the event and returns the error set by Fail.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NormalizeEvent(event))
	return r.err
}

// Fail makes subsequent notifications return err after recording.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Verbs returns the verbs of the recorded events in order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, event := range r.events {
		out[i] = event.Verb
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
