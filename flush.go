package dashprefs

import (
	"context"
	"sync"
	"time"
)

// flusher coalesces persist requests into a single delayed write. Every
// Schedule pushes the deadline back by delay; the write reads the tree when it
// runs, so a burst of edits produces one save.
type flusher struct {
	delay   time.Duration
	persist func(context.Context) error

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
	running sync.WaitGroup

	// saves are serialised so a later snapshot never lands before an earlier one.
	saveMu sync.Mutex
}

func newFlusher(delay time.Duration, persist func(context.Context) error) *flusher {
	return &flusher{delay: delay, persist: persist}
}

// Schedule marks the tree dirty and (re)arms the timer.
func (f *flusher) Schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.pending = true
	if f.timer == nil {
		f.timer = time.AfterFunc(f.delay, f.fire)
		return
	}
	f.timer.Reset(f.delay)
}

// Pending reports whether a write is waiting for the timer.
func (f *flusher) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *flusher) fire() {
	f.mu.Lock()
	if f.stopped || !f.pending {
		f.mu.Unlock()
		return
	}
	f.pending = false
	f.running.Add(1)
	f.mu.Unlock()

	defer f.running.Done()
	_ = f.save(context.Background())
}

// Flush cancels the timer and writes immediately when something is pending.
func (f *flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
	}
	pending := f.pending
	f.pending = false
	f.mu.Unlock()

	if !pending {
		// Wait out a write the timer already started.
		f.saveMu.Lock()
		f.saveMu.Unlock()
		return nil
	}
	return f.save(ctx)
}

// Stop disarms the timer, waits for an in-flight write and, when final is
// set, writes whatever is still pending. Schedule is a no-op afterwards.
func (f *flusher) Stop(ctx context.Context, final bool) error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
	}
	pending := f.pending
	f.pending = false
	f.mu.Unlock()

	f.running.Wait()
	if pending && final {
		return f.save(ctx)
	}
	return nil
}

func (f *flusher) save(ctx context.Context) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()
	return f.persist(ctx)
}
