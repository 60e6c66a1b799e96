package dashprefs

import "time"

// ChangeCause says why listeners are being notified.
type ChangeCause string

const (
	ChangeLoaded  ChangeCause = "loaded"
	ChangeMutated ChangeCause = "mutated"
	ChangeReset   ChangeCause = "reset"
)

// ChangeEvent is delivered to OnChange listeners after the tree changes in
// memory. Tree is a private copy.
type ChangeEvent struct {
	Scope     string
	Cause     ChangeCause
	Sections  []string
	Tree      Tree
	Timestamp time.Time
}

// OnChange registers listener and returns a function that removes it.
// Listeners run synchronously on the goroutine that made the change, after
// the store lock is released.
func (s *Store) OnChange(listener func(ChangeEvent)) (remove func()) {
	if listener == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(cause ChangeCause, sections []string) {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	listeners := make([]func(ChangeEvent), 0, len(s.listeners))
	for id := 0; id < s.nextListener; id++ {
		if listener, ok := s.listeners[id]; ok {
			listeners = append(listeners, listener)
		}
	}
	event := ChangeEvent{
		Scope:     s.scope,
		Cause:     cause,
		Sections:  append([]string(nil), sections...),
		Tree:      s.tree.Clone(),
		Timestamp: s.now(),
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
