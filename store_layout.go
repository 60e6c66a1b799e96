package dashprefs

import (
	"slices"
	"strings"
)

// Order returns the saved order for (context, container, category).
func (s *Store) Order(context, containerID, category string) []string {
	key := ResolveOrderKey(context, containerID, category)
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tree.List(key))
}

// SetOrder saves ids as the order for (context, container, category).
func (s *Store) SetOrder(context, containerID, category string, ids []string) {
	key := ResolveOrderKey(context, containerID, category)
	ids = dedupe(ids)
	s.update([]string{key.Section}, func(t *Tree) bool {
		if slices.Equal(t.List(key), ids) {
			return false
		}
		t.SetList(key, ids)
		return true
	})
}

// OrderItems arranges live items using the saved order for their view.
func (s *Store) OrderItems(context, containerID, category string, live []Item) []Item {
	return MergeOrder(live, s.Order(context, containerID, category), ItemID)
}

// OrderIDs arranges live identifiers using the saved order for their view.
func (s *Store) OrderIDs(context, containerID, category string, live []string) []string {
	return MergeIDs(live, s.Order(context, containerID, category))
}

// SectionsOrder arranges the live dashboard sections.
func (s *Store) SectionsOrder(live []string) []string {
	return MergeIDs(live, s.List(ListSectionsOrder))
}

// TallCards returns the size override list of a view.
func (s *Store) TallCards(context, containerID string) []string {
	key := ResolveTallCardsKey(context, containerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tree.List(key))
}

// SizeDefault returns the predicate used for items without an override.
func (s *Store) SizeDefault() DefaultSize {
	return s.cfg.sizeDefault
}

// Size resolves the card size of itemID in a view.
func (s *Store) Size(context, containerID, itemID string) Size {
	return ResolveSize(itemID, s.TallCards(context, containerID), s.cfg.sizeDefault)
}

// ToggleSize flips the card size of itemID in a view and returns the new
// size. Before the first load the flip is decided against the tree the caller
// currently sees; the loaded document then receives that size, not a second
// flip, so the returned size is what the store resolves afterwards.
func (s *Store) ToggleSize(context, containerID, itemID string) Size {
	key := ResolveTallCardsKey(context, containerID)
	var result Size
	decided := false
	s.update([]string{key.Section}, func(t *Tree) bool {
		current := t.List(key)
		if !decided {
			next, size := ToggleSize(itemID, current, s.cfg.sizeDefault)
			result, decided = size, true
			t.SetList(key, next)
			return true
		}
		return setSize(t, key, itemID, result, s.cfg.sizeDefault)
	})
	return result
}

// SetSize pins the card size of itemID in a view, dropping the override when
// size matches the default.
func (s *Store) SetSize(context, containerID, itemID string, size Size) {
	key := ResolveTallCardsKey(context, containerID)
	s.update([]string{key.Section}, func(t *Tree) bool {
		return setSize(t, key, itemID, size, s.cfg.sizeDefault)
	})
}

func setSize(t *Tree, key OrderKey, itemID string, size Size, def DefaultSize) bool {
	current := t.List(key)
	next := SetSize(itemID, current, size, def)
	if slices.Equal(current, next) {
		return false
	}
	t.SetList(key, next)
	return true
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
