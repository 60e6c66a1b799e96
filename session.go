package dashprefs

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-dashprefs/pkg/state"
)

// NavigationKind names the host navigation that produced an event.
type NavigationKind string

const (
	NavigationPush    NavigationKind = "push"
	NavigationReplace NavigationKind = "replace"
	NavigationPop     NavigationKind = "pop"
)

// NavigationEvent reports that the host moved to Path.
type NavigationEvent struct {
	Kind NavigationKind
	Path string
}

// ScopeFunc derives the dashboard scope from a navigation path.
type ScopeFunc func(path string) string

// ScopeFromPath uses the first path segment as the scope, so
// "/lovelace-kitchen/0" and "/lovelace-kitchen/lights" share a scope.
// Paths without a segment map to DefaultScope.
func ScopeFromPath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if i := strings.IndexAny(path, "/?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return DefaultScope
	}
	return path
}

// Session owns the Store of the active dashboard scope and swaps it when
// navigation crosses into another scope.
type Session struct {
	transport state.Store
	opts      []Option
	scopeOf   ScopeFunc
	logger    *zap.Logger

	mu      sync.Mutex
	current *Store
	closed  bool
	closing sync.WaitGroup
}

// NewSession creates a session positioned at path and starts loading its
// store in the background. A nil scopeOf uses ScopeFromPath.
func NewSession(transport state.Store, path string, scopeOf ScopeFunc, opts ...Option) *Session {
	if scopeOf == nil {
		scopeOf = ScopeFromPath
	}
	cfg := applyOptions(opts)
	s := &Session{
		transport: transport,
		opts:      opts,
		scopeOf:   scopeOf,
		logger:    cfg.logger,
	}
	s.current = NewStore(scopeOf(path), transport, opts...)
	s.current.preload()
	return s
}

// Current returns the store of the active scope.
func (s *Session) Current() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Navigate moves the session to path and reports whether the scope changed.
// On a change the previous store is flushed and closed in the background and
// a fresh store starts loading; a load still in flight for the old scope is
// discarded.
func (s *Session) Navigate(path string) bool {
	scope := strings.TrimSpace(s.scopeOf(path))
	if scope == "" {
		scope = DefaultScope
	}

	s.mu.Lock()
	if s.closed || s.current.Scope() == scope {
		s.mu.Unlock()
		return false
	}
	previous := s.current
	next := NewStore(scope, s.transport, s.opts...)
	s.current = next
	s.closing.Add(1)
	s.mu.Unlock()

	s.logger.Debug("dashboard scope changed",
		zap.String("from", previous.Scope()), zap.String("to", scope))
	go func() {
		defer s.closing.Done()
		if err := previous.Close(context.Background()); err != nil {
			s.logger.Warn("closing previous scope failed",
				zap.String("scope", previous.Scope()), zap.Error(err))
		}
	}()
	next.preload()
	return true
}

// Watch applies navigation events until ctx is done or events is closed.
func (s *Session) Watch(ctx context.Context, events <-chan NavigationEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			s.Navigate(event.Path)
		}
	}
}

// Close closes the active store and waits for previous stores to finish
// closing.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	current := s.current
	s.mu.Unlock()

	err := current.Close(ctx)
	s.closing.Wait()
	return err
}
