package dashprefs

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// Section returns a copy of the named section: HomeSection, a
// map[string]PageSection, UISection, BackgroundSection or a
// map[string]EntityOverride. Unknown names return nil.
func (s *Store) Section(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree := &s.tree
	switch name {
	case SectionHome:
		return tree.Home.clone()
	case SectionPages:
		return tree.Clone().Pages
	case SectionUI:
		return tree.UI
	case SectionBackground:
		return tree.Background
	case SectionEntities:
		return maps.Clone(tree.Entities)
	default:
		return nil
	}
}

// Home returns a copy of the home section.
func (s *Store) Home() HomeSection {
	return s.Section(SectionHome).(HomeSection)
}

// Pages returns a copy of every page section.
func (s *Store) Pages() map[string]PageSection {
	return s.Section(SectionPages).(map[string]PageSection)
}

// UI returns the visibility flags.
func (s *Store) UI() UISection {
	return s.Section(SectionUI).(UISection)
}

// Background returns the display theme.
func (s *Store) Background() BackgroundSection {
	return s.Section(SectionBackground).(BackgroundSection)
}

// SetSection replaces one section. value is either the section's Go type or
// a loosely typed form (map[string]any, json.RawMessage, []byte) that is
// decoded the same way a persisted document is.
func (s *Store) SetSection(name string, value any) error {
	section, err := decodeSection(name, value)
	if err != nil {
		return err
	}
	s.update([]string{name}, func(t *Tree) bool {
		switch v := section.(type) {
		case HomeSection:
			t.Home = v.clone()
		case map[string]PageSection:
			t.Pages = make(map[string]PageSection, len(v))
			for id, page := range v {
				t.Pages[id] = page.clone()
			}
		case UISection:
			t.UI = v
		case BackgroundSection:
			t.Background = v
		case map[string]EntityOverride:
			t.Entities = maps.Clone(v)
		}
		return true
	})
	return nil
}

func decodeSection(name string, value any) (any, error) {
	switch name {
	case SectionHome, SectionPages, SectionUI, SectionBackground, SectionEntities:
	default:
		return nil, fmt.Errorf("dashprefs: unknown section %q", name)
	}

	switch v := value.(type) {
	case HomeSection:
		if name == SectionHome {
			return v, nil
		}
	case map[string]PageSection:
		if name == SectionPages {
			return v, nil
		}
	case UISection:
		if name == SectionUI {
			return v, nil
		}
	case BackgroundSection:
		if name == SectionBackground {
			return v, nil
		}
	case map[string]EntityOverride:
		if name == SectionEntities {
			return v, nil
		}
	case nil:
		return sectionOf(NewTree(), name), nil
	case map[string]any, json.RawMessage, []byte:
		var raw any = v
		if data, ok := v.([]byte); ok {
			raw = json.RawMessage(data)
		}
		if data, ok := raw.(json.RawMessage); ok {
			var decoded map[string]any
			if err := json.Unmarshal(data, &decoded); err != nil {
				return nil, fmt.Errorf("dashprefs: decode section %q: %w", name, err)
			}
			raw = decoded
		}
		// A home key keeps the payload on the sectioned schema.
		payload := map[string]any{SectionHome: map[string]any{}}
		payload[name] = raw
		tree := Migrate(payload)
		return sectionOf(tree, name), nil
	}
	return nil, fmt.Errorf("dashprefs: section %q does not accept %T", name, value)
}

func sectionOf(t Tree, name string) any {
	switch name {
	case SectionHome:
		return t.Home
	case SectionPages:
		return t.Pages
	case SectionUI:
		return t.UI
	case SectionBackground:
		return t.Background
	default:
		return t.Entities
	}
}

// CustomName returns the user-assigned name of itemID, or "".
func (s *Store) CustomName(itemID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Entities[itemID].Name
}

// CustomNames returns every user-assigned name keyed by item.
func (s *Store) CustomNames() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tree.Entities))
	for id, override := range s.tree.Entities {
		if override.Name != "" {
			out[id] = override.Name
		}
	}
	return out
}

// SetCustomName renames itemID. An empty name clears the override and drops
// the entity entry when nothing else is set on it.
func (s *Store) SetCustomName(itemID, name string) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return
	}
	name = strings.TrimSpace(name)
	s.update([]string{SectionEntities}, func(t *Tree) bool {
		override := t.Entities[itemID]
		if override.Name == name {
			return false
		}
		override.Name = name
		if override.IsZero() {
			delete(t.Entities, itemID)
			return true
		}
		if t.Entities == nil {
			t.Entities = map[string]EntityOverride{}
		}
		t.Entities[itemID] = override
		return true
	})
}

// SetIcon overrides the icon of itemID; an empty icon clears it.
func (s *Store) SetIcon(itemID, icon string) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return
	}
	icon = strings.TrimSpace(icon)
	s.update([]string{SectionEntities}, func(t *Tree) bool {
		override := t.Entities[itemID]
		if override.Icon == icon {
			return false
		}
		override.Icon = icon
		if override.IsZero() {
			delete(t.Entities, itemID)
			return true
		}
		if t.Entities == nil {
			t.Entities = map[string]EntityOverride{}
		}
		t.Entities[itemID] = override
		return true
	})
}
