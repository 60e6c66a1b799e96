package dashprefs

import (
	"fmt"
	"slices"
	"strings"
)

// IDSet is a read-only membership view over a home list.
type IDSet struct {
	members map[string]struct{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s.members[id]
	return ok
}

// Len returns the number of members.
func (s IDSet) Len() int {
	return len(s.members)
}

type listSetEntry struct {
	version uint64
	set     IDSet
}

// List returns a copy of the named home list. Unknown names return nil.
func (s *Store) List(name ListName) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tree.Home.list(name)
	if list == nil {
		return nil
	}
	return slices.Clone(*list)
}

// ListSet returns a membership set for the named list. The set is cached
// until the tree next changes, so filtering loops can call it per item.
func (s *Store) ListSet(name ListName) IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sets[name]; ok && entry.version == s.version {
		return entry.set
	}
	set := IDSet{members: map[string]struct{}{}}
	if list := s.tree.Home.list(name); list != nil {
		for _, id := range *list {
			set.members[id] = struct{}{}
		}
	}
	if s.sets == nil {
		s.sets = map[ListName]listSetEntry{}
	}
	s.sets[name] = listSetEntry{version: s.version, set: set}
	return set
}

// Contains reports whether id is in the named list.
func (s *Store) Contains(name ListName, id string) bool {
	return s.ListSet(name).Has(id)
}

// SetList replaces the named list. Duplicates and blank ids are dropped.
func (s *Store) SetList(name ListName, ids []string) error {
	if !knownList(name) {
		return fmt.Errorf("dashprefs: unknown list %q", name)
	}
	ids = dedupe(ids)
	s.update([]string{SectionHome}, func(t *Tree) bool {
		list := t.Home.list(name)
		if slices.Equal(*list, ids) {
			return false
		}
		*list = slices.Clone(ids)
		return true
	})
	return nil
}

// AddToList appends id to the named list and reports whether it was added.
func (s *Store) AddToList(name ListName, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || !knownList(name) {
		return false
	}
	return s.update([]string{SectionHome}, func(t *Tree) bool {
		list := t.Home.list(name)
		if slices.Contains(*list, id) {
			return false
		}
		*list = append(*list, id)
		return true
	})
}

// RemoveFromList deletes id from the named list and reports whether it was
// present.
func (s *Store) RemoveFromList(name ListName, id string) bool {
	if !knownList(name) {
		return false
	}
	return s.update([]string{SectionHome}, func(t *Tree) bool {
		list := t.Home.list(name)
		i := slices.Index(*list, id)
		if i < 0 {
			return false
		}
		*list = slices.Delete(slices.Clone(*list), i, i+1)
		return true
	})
}

// ToggleInList adds id when absent and removes it otherwise, returning
// whether it is now a member. Like ToggleSize, a toggle issued before the
// first load replays as the membership it returned.
func (s *Store) ToggleInList(name ListName, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || !knownList(name) {
		return false
	}
	var member bool
	decided := false
	s.update([]string{SectionHome}, func(t *Tree) bool {
		list := t.Home.list(name)
		i := slices.Index(*list, id)
		if !decided {
			member, decided = i < 0, true
		}
		switch {
		case member && i < 0:
			*list = append(*list, id)
		case !member && i >= 0:
			*list = slices.Delete(slices.Clone(*list), i, i+1)
		default:
			return false
		}
		return true
	})
	return member
}

func knownList(name ListName) bool {
	return slices.Contains(Lists(), name)
}
