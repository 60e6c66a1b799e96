package dashprefs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"github.com/goliatone/go-dashprefs/pkg/activity"
	"github.com/goliatone/go-dashprefs/pkg/state"
)

func TestStoreEnsureLoadedCollapsesConcurrentCallers(t *testing.T) {
	transport := newRecordingTransport()
	transport.put("kitchen", `{"home":{"favorites":["light.a"]}}`)
	started, release := transport.hold()
	store := newTestStore(t, "kitchen", transport)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.EnsureLoaded(context.Background())
		}()
	}
	<-started
	eventually(t, "store to report loading", func() bool { return store.Status() == StatusLoading })
	release()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("ensure loaded: %v", err)
		}
	}
	if loads, _ := transport.counts(); loads != 1 {
		t.Fatalf("expected a single transport load, got %d", loads)
	}
	if store.Status() != StatusLoaded {
		t.Fatalf("expected loaded, got %s", store.Status())
	}
	if got := store.List(ListFavorites); !cmp.Equal([]string{"light.a"}, got) {
		t.Fatalf("unexpected favorites %v", got)
	}
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("second ensure loaded: %v", err)
	}
	if loads, _ := transport.counts(); loads != 1 {
		t.Fatalf("expected loaded store not to reload, got %d loads", loads)
	}
}

func TestStoreEnsureLoadedReturnsCallerContextError(t *testing.T) {
	transport := newRecordingTransport()
	_, release := transport.hold()
	defer release()
	store := newTestStore(t, "kitchen", transport)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := store.EnsureLoaded(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	release()
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded after release: %v", err)
	}
}

func TestStoreLoadMigratesLegacyDocument(t *testing.T) {
	transport := newRecordingTransport()
	transport.put("kitchen", `{"areas":{"excludedFromDashboard":["x"]}}`)
	store := loadedStore(t, "kitchen", transport)

	if got := store.List(ListExcludedFromDashboard); !cmp.Equal([]string{"x"}, got) {
		t.Fatalf("expected legacy exclusion migrated, got %v", got)
	}
	if store.LastError() != nil {
		t.Fatalf("unexpected load error %v", store.LastError())
	}
}

func TestStoreLoadFailuresDegradeToEmptyTree(t *testing.T) {
	cases := []struct {
		name      string
		transport func() state.Store
		kind      error
	}{
		{"nil_transport", func() state.Store { return nil }, ErrTransportUnavailable},
		{"unavailable", func() state.Store {
			tr := newRecordingTransport()
			tr.setErrors(fmt.Errorf("dial: %w", state.ErrUnavailable), nil)
			return tr
		}, ErrTransportUnavailable},
		{"backend_error", func() state.Store {
			tr := newRecordingTransport()
			tr.setErrors(errors.New("disk on fire"), nil)
			return tr
		}, ErrLoadFailed},
		{"invalid_json", func() state.Store {
			tr := newRecordingTransport()
			tr.put("kitchen", `{"home":`)
			return tr
		}, ErrLoadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := loadedStore(t, "kitchen", tc.transport())
			if store.Status() != StatusLoaded {
				t.Fatalf("expected loaded status, got %s", store.Status())
			}
			if diff := cmp.Diff(NewTree(), store.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("expected empty tree (-want +got):\n%s", diff)
			}
			err := store.LastError()
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			var perr *PersistenceError
			if !errors.As(err, &perr) || perr.Op != "load" || perr.Scope != "kitchen" {
				t.Fatalf("expected load PersistenceError, got %#v", err)
			}
		})
	}
}

func TestStoreReplaysWritesIssuedBeforeLoad(t *testing.T) {
	transport := newRecordingTransport()
	transport.put("kitchen", `{"home":{"favorites":["light.a"]}}`)
	started, release := transport.hold()
	store := newTestStore(t, "kitchen", transport)

	if !store.AddToList(ListFavorites, "light.b") {
		t.Fatalf("expected optimistic add to report true")
	}
	store.SetCustomName("light.b", "Lamp")
	<-started // the write kicked off a background load
	if got := store.List(ListFavorites); !cmp.Equal([]string{"light.b"}, got) {
		t.Fatalf("expected optimistic read before load, got %v", got)
	}
	release()
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	eventually(t, "load to finish", func() bool { return store.Status() == StatusLoaded })

	if got := store.List(ListFavorites); !cmp.Equal([]string{"light.a", "light.b"}, got) {
		t.Fatalf("expected queued write replayed on loaded tree, got %v", got)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	saved := transport.saved("kitchen")
	if !cmp.Equal([]string{"light.a", "light.b"}, saved.Home.Favorites) || saved.Entities["light.b"].Name != "Lamp" {
		t.Fatalf("unexpected persisted tree %+v", saved)
	}
}

func TestStoreTogglesBeforeLoadKeepReturnedState(t *testing.T) {
	transport := newRecordingTransport()
	transport.put("kitchen", `{"home":{"hidden_areas":["area.attic"]},"pages":{"area.kitchen":{"tall_cards":["light.a"]}}}`)
	started, release := transport.hold()
	defer release()
	store := newTestStore(t, "kitchen", transport)

	size := store.ToggleSize("area", "area.kitchen", "light.a")
	member := store.ToggleInList(ListHiddenAreas, "area.attic")
	<-started
	release()
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}

	if got := store.Size("area", "area.kitchen", "light.a"); got != size {
		t.Fatalf("toggle returned %s but store resolves %s (tall_cards=%v)", size, got, store.TallCards("area", "area.kitchen"))
	}
	if got := store.Contains(ListHiddenAreas, "area.attic"); got != member {
		t.Fatalf("toggle returned member=%v but store reports %v", member, got)
	}

	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	saved := transport.saved("kitchen")
	if got := ResolveSize("light.a", saved.Pages["area.kitchen"].TallCards, RegularByDefault); got != size {
		t.Fatalf("expected persisted size %s, got %s", size, got)
	}
}

func TestStoreSetSizePinsAgainstDefault(t *testing.T) {
	store := loadedStore(t, "kitchen", newRecordingTransport(), WithSizeDefault(TallDomains("camera")))

	store.SetSize("home", "", "camera.porch", SizeRegular)
	if got := store.TallCards("home", ""); !cmp.Equal([]string{"!camera.porch"}, got) {
		t.Fatalf("expected negated entry, got %v", got)
	}
	store.SetSize("home", "", "camera.porch", SizeTall)
	if got := store.TallCards("home", ""); len(got) != 0 {
		t.Fatalf("expected entry dropped when matching default, got %v", got)
	}
}

func TestStoreCoalescesWritesIntoOneSave(t *testing.T) {
	transport := newRecordingTransport()
	store := loadedStore(t, "kitchen", transport)

	for i := 0; i < 10; i++ {
		store.SetOrder("home", "area.kitchen", "", []string{fmt.Sprintf("light.%d", i)})
	}
	if _, saves := transport.counts(); saves != 0 {
		t.Fatalf("expected no save before the debounce settles, got %d", saves)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if _, saves := transport.counts(); saves != 1 {
		t.Fatalf("expected exactly one save, got %d", saves)
	}
	if got := transport.saved("kitchen").Home.EntitiesOrder["area.kitchen"]; !cmp.Equal([]string{"light.9"}, got) {
		t.Fatalf("expected last write persisted, got %v", got)
	}
	if store.LastSnapshotID() == "" {
		t.Fatalf("expected snapshot id recorded")
	}
}

func TestStoreDebounceTimerPersists(t *testing.T) {
	transport := newRecordingTransport()
	cfg := DefaultConfig()
	cfg.PersistDelay = 5 * time.Millisecond
	store := loadedStore(t, "kitchen", transport, WithConfig(cfg))

	store.AddToList(ListFavorites, "light.a")
	store.AddToList(ListFavorites, "light.b")
	eventually(t, "debounced save", func() bool {
		return cmp.Equal([]string{"light.a", "light.b"}, transport.saved("kitchen").Home.Favorites)
	})
}

func TestStoreNoOpWritesDoNotPersist(t *testing.T) {
	transport := newRecordingTransport()
	transport.put("kitchen", `{"home":{"favorites":["light.a"]}}`)
	store := loadedStore(t, "kitchen", transport)

	if store.AddToList(ListFavorites, "light.a") {
		t.Fatalf("expected duplicate add to report false")
	}
	if store.RemoveFromList(ListFavorites, "light.missing") {
		t.Fatalf("expected missing remove to report false")
	}
	store.SetList(ListFavorites, []string{"light.a", "light.a", " "})
	store.SetCustomName("light.a", "")
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, saves := transport.counts(); saves != 0 {
		t.Fatalf("expected no save for no-op writes, got %d", saves)
	}
}

func TestStoreSaveFailureKeepsMemoryAndRetriesLater(t *testing.T) {
	transport := newRecordingTransport()
	store := loadedStore(t, "kitchen", transport)
	transport.setErrors(nil, errors.New("quota exceeded"))

	store.AddToList(ListFavorites, "light.a")
	err := store.Flush(context.Background())
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
	if !errors.Is(store.LastError(), ErrSaveFailed) {
		t.Fatalf("expected last error recorded, got %v", store.LastError())
	}
	if got := store.List(ListFavorites); !cmp.Equal([]string{"light.a"}, got) {
		t.Fatalf("expected in-memory state kept, got %v", got)
	}

	transport.setErrors(nil, nil)
	store.AddToList(ListFavorites, "light.b")
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush after recovery: %v", err)
	}
	if store.LastError() != nil {
		t.Fatalf("expected last error cleared, got %v", store.LastError())
	}
	if got := transport.saved("kitchen").Home.Favorites; !cmp.Equal([]string{"light.a", "light.b"}, got) {
		t.Fatalf("expected both writes persisted, got %v", got)
	}
}

func TestStoreSetAllDiscardsQueuedWritesAndLoad(t *testing.T) {
	transport := newRecordingTransport()
	transport.put("kitchen", `{"home":{"favorites":["remote"]}}`)
	started, release := transport.hold()
	store := NewStore("kitchen", transport, WithConfig(testConfig()))

	store.AddToList(ListFavorites, "queued")
	<-started
	replacement := NewTree()
	replacement.Home.Favorites = []string{"replacement"}
	store.SetAll(replacement)
	if store.Status() != StatusLoaded {
		t.Fatalf("expected SetAll to mark the store loaded")
	}
	release()

	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := transport.saved("kitchen").Home.Favorites; !cmp.Equal([]string{"replacement"}, got) {
		t.Fatalf("expected replacement persisted, got %v", got)
	}
}

func TestStoreOrderAndSizeThroughViews(t *testing.T) {
	store := loadedStore(t, "kitchen", newRecordingTransport(), WithSizeDefault(TallDomains("light")))

	store.SetOrder("home", "area.kitchen", "", []string{"b", "a", "b"})
	got := store.OrderItems("home", "area.kitchen", "", []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	if diff := cmp.Diff([]string{"b", "a", "c"}, ids(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	store.SetOrder("area", "area.kitchen", "light", []string{"light.b"})
	if got := store.OrderIDs("area", "area.kitchen", "light", []string{"light.a", "light.b"}); !cmp.Equal([]string{"light.b", "light.a"}, got) {
		t.Fatalf("unexpected category order %v", got)
	}
	if got := store.Order("area", "area.kitchen", ""); got != nil {
		t.Fatalf("category order must not leak into page order, got %v", got)
	}

	store.SetSection(SectionPages, map[string]any{"area.kitchen": map[string]any{"tall_cards": []any{"!light.kitchen"}}})
	if store.Size("area", "area.kitchen", "light.kitchen") != SizeRegular {
		t.Fatalf("expected negated entry to size regular")
	}
	if size := store.ToggleSize("area", "area.kitchen", "light.kitchen"); size != SizeTall {
		t.Fatalf("expected toggle to tall, got %s", size)
	}
	if got := store.TallCards("area", "area.kitchen"); len(got) != 0 {
		t.Fatalf("expected override list emptied, got %v", got)
	}
	if store.Size("home", "", "light.kitchen") != SizeTall {
		t.Fatalf("expected home view to use the default")
	}
	store.ToggleSize("home", "", "switch.fan")
	if got := store.Home().TallCards; !cmp.Equal([]string{"switch.fan"}, got) {
		t.Fatalf("expected home override, got %v", got)
	}
}

func TestStoreCustomNames(t *testing.T) {
	store := loadedStore(t, "kitchen", newRecordingTransport())

	store.SetCustomName("light.a", "Counter")
	store.SetIcon("light.a", "mdi:lamp")
	if store.CustomName("light.a") != "Counter" {
		t.Fatalf("expected custom name")
	}
	store.SetCustomName("light.a", "")
	if _, ok := store.Snapshot().Entities["light.a"]; !ok {
		t.Fatalf("expected entry kept while an icon remains")
	}
	store.SetIcon("light.a", "")
	if _, ok := store.Snapshot().Entities["light.a"]; ok {
		t.Fatalf("expected empty entity entry removed")
	}
	store.SetCustomName("light.b", "  Hall  ")
	if diff := cmp.Diff(map[string]string{"light.b": "Hall"}, store.CustomNames()); diff != "" {
		t.Fatalf("custom names mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreListSetIsCachedUntilChange(t *testing.T) {
	store := loadedStore(t, "kitchen", newRecordingTransport())
	store.SetList(ListExcludedFromDashboard, []string{"light.a", "light.b"})

	set := store.ListSet(ListExcludedFromDashboard)
	if !set.Has("light.a") || set.Has("light.c") || set.Len() != 2 {
		t.Fatalf("unexpected set contents")
	}
	again := store.ListSet(ListExcludedFromDashboard)
	if fmt.Sprintf("%p", again.members) != fmt.Sprintf("%p", set.members) {
		t.Fatalf("expected cached set to be reused")
	}
	store.RemoveFromList(ListExcludedFromDashboard, "light.a")
	if store.ListSet(ListExcludedFromDashboard).Has("light.a") {
		t.Fatalf("expected set rebuilt after change")
	}
	if !store.ToggleInList(ListHiddenAreas, "area.attic") || !store.Contains(ListHiddenAreas, "area.attic") {
		t.Fatalf("expected toggle to add")
	}
	if store.ToggleInList(ListHiddenAreas, "area.attic") {
		t.Fatalf("expected second toggle to remove")
	}
	if err := store.SetList("unknown", []string{"x"}); err == nil {
		t.Fatalf("expected unknown list error")
	}
}

func TestStoreSectionAccessors(t *testing.T) {
	store := loadedStore(t, "kitchen", newRecordingTransport())

	if err := store.SetSection(SectionUI, map[string]any{"compact": true, "hide_header": "nope"}); err != nil {
		t.Fatalf("set ui: %v", err)
	}
	if got := store.UI(); !got.Compact || got.HideHeader {
		t.Fatalf("unexpected ui %+v", got)
	}
	if err := store.SetSection(SectionBackground, BackgroundSection{Type: "color", Value: "#000"}); err != nil {
		t.Fatalf("set background: %v", err)
	}
	if store.Background().Value != "#000" {
		t.Fatalf("unexpected background %+v", store.Background())
	}
	if err := store.SetSection(SectionHome, []byte(`{"favorites":["light.a"]}`)); err != nil {
		t.Fatalf("set home from json: %v", err)
	}
	if err := store.SetSection("chrome", UISection{}); err == nil {
		t.Fatalf("expected unknown section error")
	}
	if err := store.SetSection(SectionUI, BackgroundSection{}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
	if store.Section("chrome") != nil {
		t.Fatalf("expected nil for unknown section")
	}

	home := store.Home()
	home.Favorites[0] = "mutated"
	if got := store.List(ListFavorites); !cmp.Equal([]string{"light.a"}, got) {
		t.Fatalf("section copy leaked into store: %v", got)
	}

	store.Update(func(tree *Tree) {
		tree.UI.HideSidebar = true
		tree.Home.Favorites = append(tree.Home.Favorites, "light.b")
	})
	if !store.UI().HideSidebar || len(store.List(ListFavorites)) != 2 {
		t.Fatalf("expected Update applied atomically")
	}
}

func TestStoreNotifiesListeners(t *testing.T) {
	store := newTestStore(t, "kitchen", newRecordingTransport())
	var mu sync.Mutex
	var events []ChangeEvent
	remove := store.OnChange(func(event ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	})
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}

	store.AddToList(ListFavorites, "light.a")
	store.AddToList(ListFavorites, "light.a")
	remove()
	store.AddToList(ListFavorites, "light.b")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected load and one mutation event, got %d", len(events))
	}
	if events[0].Cause != ChangeLoaded || events[1].Cause != ChangeMutated {
		t.Fatalf("unexpected causes %s %s", events[0].Cause, events[1].Cause)
	}
	if events[1].Scope != "kitchen" || !cmp.Equal([]string{SectionHome}, events[1].Sections) {
		t.Fatalf("unexpected event %+v", events[1])
	}
	if !cmp.Equal([]string{"light.a"}, events[1].Tree.Home.Favorites) {
		t.Fatalf("expected event tree snapshot, got %v", events[1].Tree.Home.Favorites)
	}
}

func TestStoreEmitsActivityOnSave(t *testing.T) {
	recorder := &activity.Recorder{}
	store := loadedStore(t, "kitchen", newRecordingTransport(),
		WithActivityHooks(activity.Hooks{recorder, nil}),
		WithActivityIdentity("", "user-1", "tenant-1"))

	store.SetCustomName("light.a", "Counter")
	store.AddToList(ListFavorites, "light.a")
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	store.SetAll(NewTree())
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush reset: %v", err)
	}

	events := recorder.Events()
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	changed := events[0]
	if changed.Verb != activity.VerbCustomizationsChanged || changed.ObjectID != "kitchen" || changed.UserID != "user-1" {
		t.Fatalf("unexpected changed event %+v", changed)
	}
	if !cmp.Equal([]string{SectionEntities, SectionHome}, changed.Metadata["sections"]) {
		t.Fatalf("unexpected sections %v", changed.Metadata["sections"])
	}
	if changed.Metadata["snapshot_id"] == "" || changed.Channel != activity.DefaultChannel {
		t.Fatalf("expected snapshot id and default channel, got %+v", changed)
	}
	if events[1].Verb != activity.VerbCustomizationsReset {
		t.Fatalf("expected reset event, got %s", events[1].Verb)
	}
}

func TestStoreCloseFlushesAndStopsBackgroundWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := newRecordingTransport()
	store := NewStore("kitchen", transport, WithConfig(testConfig()))
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	store.AddToList(ListFavorites, "light.a")

	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, saves := transport.counts(); saves != 1 {
		t.Fatalf("expected close to flush pending write, got %d saves", saves)
	}
	if store.AddToList(ListFavorites, "light.b") {
		t.Fatalf("expected writes after close to be ignored")
	}
	if err := store.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("loaded store stays loaded after close: %v", err)
	}
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestStoreCloseBeforeLoadDiscardsLoad(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := newRecordingTransport()
	transport.put("kitchen", `{"home":{"favorites":["remote"]}}`)
	started, release := transport.hold()
	defer release()
	store := NewStore("kitchen", transport, WithConfig(testConfig()))
	store.AddToList(ListFavorites, "queued")
	<-started

	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if store.Status() == StatusLoaded {
		t.Fatalf("expected discarded load to leave the store unloaded")
	}
	if _, saves := transport.counts(); saves != 0 {
		t.Fatalf("expected unloaded store not to persist, got %d saves", saves)
	}
	if err := store.EnsureLoaded(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}
