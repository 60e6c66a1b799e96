package dashprefs

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-dashprefs/pkg/activity"
	"github.com/goliatone/go-dashprefs/pkg/state"
)

// Status is the load state of a Store.
type Status int

const (
	StatusUnloaded Status = iota
	StatusLoading
	StatusLoaded
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// DefaultScope is used when a Store is created without a scope.
const DefaultScope = "default"

var allSections = []string{SectionHome, SectionPages, SectionUI, SectionBackground, SectionEntities}

type mutation struct {
	sections []string
	apply    func(*Tree) bool
}

// Store holds the customization tree of one dashboard scope. Writes apply to
// memory immediately and reach the transport through a debounced flush.
// Writes issued before the first load completes are queued and replayed on
// top of the loaded document.
type Store struct {
	scope     string
	ref       state.Ref
	transport state.Store
	cfg       storeConfig
	logger    *zap.Logger
	emitter   *activity.Emitter
	flusher   *flusher
	usage     *UsageRanker

	loads  singleflight.Group
	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	status       Status
	closed       bool
	tree         Tree
	version      uint64
	pending      []mutation
	dirty        map[string]struct{}
	reset        bool
	lastErr      error
	lastSnapshot string
	sets         map[ListName]listSetEntry
	listeners    map[int]func(ChangeEvent)
	nextListener int
}

// NewStore creates an unloaded store for scope backed by transport. A nil
// transport yields a store that never persists. Call Close to release the
// background flush and prune tasks.
func NewStore(scope string, transport state.Store, opts ...Option) *Store {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = DefaultScope
	}
	cfg := applyOptions(opts)
	root, cancel := context.WithCancel(context.Background())

	s := &Store{
		scope:     scope,
		ref:       state.Ref{Scope: scope, Domain: cfg.config.Domain},
		transport: transport,
		cfg:       cfg,
		logger:    cfg.logger.With(zap.String("scope", scope)),
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{
			Disabled: cfg.config.Activity.Disabled,
			Channel:  cfg.config.Activity.Channel,
			Verbs:    cfg.config.Activity.Verbs,
			Now:      cfg.now,
		}),
		root:      root,
		cancel:    cancel,
		tree:      NewTree(),
		dirty:     map[string]struct{}{},
		listeners: map[int]func(ChangeEvent){},
	}
	for _, listener := range cfg.listeners {
		s.OnChange(listener)
	}
	s.flusher = newFlusher(cfg.config.PersistDelay, s.persist)
	s.usage = newUsageRanker(s, cfg.config.Usage, cfg.now)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.usage.pruneLoop(root)
	}()
	return s
}

// Scope returns the dashboard scope this store persists.
func (s *Store) Scope() string {
	return s.scope
}

// Status returns the current load state.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the most recent load or save failure, nil after a
// successful save.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastSnapshotID returns the snapshot id of the last successful save.
func (s *Store) LastSnapshotID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot
}

// Usage returns the usage ranker bound to this store.
func (s *Store) Usage() *UsageRanker {
	return s.usage
}

// EnsureLoaded loads the document once. Concurrent callers share a single
// transport read. Transport and decode failures leave the store loaded with
// an empty tree (see LastError); only ctx cancellation and ErrStoreClosed are
// returned.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.status == StatusLoaded:
		s.mu.Unlock()
		return nil
	case s.closed:
		s.mu.Unlock()
		return ErrStoreClosed
	case s.status == StatusUnloaded:
		s.status = StatusLoading
	}
	s.mu.Unlock()

	result := s.loads.DoChan("load", func() (any, error) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrStoreClosed
		}
		if s.status == StatusLoaded {
			s.mu.Unlock()
			return nil, nil
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		s.load()
		return nil, nil
	})

	select {
	case res := <-result:
		if errors.Is(res.Err, ErrStoreClosed) {
			return ErrStoreClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) preload() {
	s.mu.Lock()
	if s.closed || s.status == StatusLoaded {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_ = s.EnsureLoaded(s.root)
	}()
}

func (s *Store) load() {
	ctx, cancel := context.WithTimeout(s.root, s.cfg.config.LoadTimeout)
	defer cancel()

	tree := NewTree()
	var loadErr error
	if s.transport == nil {
		loadErr = persistenceError("load", s.scope, ErrTransportUnavailable, nil)
	} else {
		raw, _, ok, err := s.transport.Load(ctx, s.ref)
		switch {
		case err != nil:
			kind := ErrLoadFailed
			if errors.Is(err, state.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
				kind = ErrTransportUnavailable
			}
			loadErr = persistenceError("load", s.scope, kind, err)
		case ok && !json.Valid(raw):
			loadErr = persistenceError("load", s.scope, ErrLoadFailed, errors.New("document is not valid JSON"))
		case ok:
			tree = Migrate(raw)
		}
	}

	s.mu.Lock()
	if s.closed || s.status != StatusLoading {
		s.mu.Unlock()
		s.logger.Debug("discarding stale load",
			zap.Error(persistenceError("load", s.scope, ErrScopeRace, loadErr)))
		return
	}
	replayed := s.pending
	s.pending = nil
	sections := map[string]struct{}{}
	for _, m := range replayed {
		m.apply(&tree)
		for _, section := range m.sections {
			sections[section] = struct{}{}
			s.dirty[section] = struct{}{}
		}
	}
	tree.normalize()
	s.tree = tree
	s.status = StatusLoaded
	s.lastErr = loadErr
	s.version++
	s.mu.Unlock()

	if loadErr != nil {
		s.logger.Warn("customizations load failed, using empty tree", zap.String("op", "load"), zap.Error(loadErr))
	} else {
		s.logger.Debug("customizations loaded", zap.Int("replayed", len(replayed)))
	}
	if len(replayed) > 0 {
		s.flusher.Schedule()
	}
	s.notify(ChangeLoaded, sortedKeys(sections))
}

// update runs fn against the tree under the store lock. fn reports whether
// it changed anything; unchanged trees are neither persisted nor announced.
// Before the first load fn runs against the placeholder tree and is queued
// for replay, which also triggers a background load.
func (s *Store) update(sections []string, fn func(*Tree) bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("ignoring write to closed store")
		return false
	}
	if s.status != StatusLoaded {
		changed := fn(&s.tree)
		s.tree.normalize()
		s.version++
		s.pending = append(s.pending, mutation{sections: sections, apply: fn})
		unloaded := s.status == StatusUnloaded
		s.mu.Unlock()
		if unloaded {
			s.preload()
		}
		return changed
	}
	changed := fn(&s.tree)
	if changed {
		s.tree.normalize()
		s.version++
		for _, section := range sections {
			s.dirty[section] = struct{}{}
		}
	}
	s.mu.Unlock()

	if changed {
		s.flusher.Schedule()
		s.notify(ChangeMutated, sections)
	}
	return changed
}

// Update applies fn as one atomic read-modify-write of the whole tree.
func (s *Store) Update(fn func(*Tree)) {
	if fn == nil {
		return
	}
	s.update(allSections, func(t *Tree) bool {
		fn(t)
		return true
	})
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Clone()
}

// SetAll replaces the whole tree and marks the store loaded. Queued writes
// and any in-flight load are discarded.
func (s *Store) SetAll(tree Tree) {
	migrated := Migrate(tree)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.tree = migrated
	s.status = StatusLoaded
	s.pending = nil
	s.version++
	s.reset = true
	for _, section := range allSections {
		s.dirty[section] = struct{}{}
	}
	s.mu.Unlock()

	s.flusher.Schedule()
	s.notify(ChangeReset, allSections)
}

// Flush writes pending changes now instead of waiting for the debounce.
func (s *Store) Flush(ctx context.Context) error {
	return s.flusher.Flush(ctx)
}

// Close stops background work, writes pending changes of a loaded store and
// waits for in-flight loads. Writes after Close are ignored.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	loaded := s.status == StatusLoaded
	s.mu.Unlock()

	s.cancel()
	err := s.flusher.Stop(ctx, loaded)
	s.wg.Wait()
	return err
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusLoaded {
		s.mu.Unlock()
		return nil
	}
	doc, err := json.Marshal(s.tree)
	version := s.version
	sections := sortedKeys(s.dirty)
	s.dirty = map[string]struct{}{}
	reset := s.reset
	s.reset = false
	s.mu.Unlock()

	if err == nil && s.transport == nil {
		err = ErrTransportUnavailable
	}
	if err != nil {
		return s.saveFailed(err, sections, reset)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.config.SaveTimeout)
	defer cancel()
	meta := state.Meta{
		SnapshotID: uuid.NewString(),
		Extra:      map[string]string{"version": strconv.FormatUint(version, 10)},
	}
	stored, err := s.transport.Save(ctx, s.ref, doc, meta)
	if err != nil {
		return s.saveFailed(err, sections, reset)
	}
	if stored.SnapshotID == "" {
		stored.SnapshotID = meta.SnapshotID
	}

	s.mu.Lock()
	s.lastErr = nil
	s.lastSnapshot = stored.SnapshotID
	s.mu.Unlock()
	s.logger.Debug("customizations saved",
		zap.String("op", "save"),
		zap.String("snapshot_id", stored.SnapshotID),
		zap.Strings("sections", sections))
	s.emitSaved(ctx, stored.SnapshotID, sections, reset)
	return nil
}

// saveFailed keeps the in-memory tree and re-marks the sections dirty so the
// next debounce cycle retries them.
func (s *Store) saveFailed(cause error, sections []string, reset bool) error {
	err := persistenceError("save", s.scope, ErrSaveFailed, cause)
	s.mu.Lock()
	s.lastErr = err
	for _, section := range sections {
		s.dirty[section] = struct{}{}
	}
	s.reset = s.reset || reset
	s.mu.Unlock()
	s.logger.Warn("customizations save failed, keeping in-memory state", zap.String("op", "save"), zap.Error(err))
	return err
}

func (s *Store) emitSaved(ctx context.Context, snapshotID string, sections []string, reset bool) {
	if !s.emitter.Enabled() {
		return
	}
	input := activity.CustomizationEventInput{
		ActorID:    s.cfg.actorID,
		UserID:     s.cfg.userID,
		TenantID:   s.cfg.tenantID,
		Scope:      s.scope,
		Sections:   sections,
		SnapshotID: snapshotID,
		OccurredAt: s.cfg.now(),
	}
	verb := activity.VerbCustomizationsChanged
	if reset {
		verb = activity.VerbCustomizationsReset
	}
	if err := s.emitter.Customization(ctx, verb, input); err != nil {
		s.logger.Warn("activity hook failed", zap.String("verb", verb), zap.Error(err))
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, section := range allSections {
		if _, ok := set[section]; ok {
			out = append(out, section)
		}
	}
	return out
}

func (s *Store) now() time.Time {
	return s.cfg.now()
}
