package dashprefs

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Tree is the persisted customization document for one dashboard scope.
// Every Tree handed out by this package has passed through Migrate.
type Tree struct {
	Home       HomeSection               `json:"home"`
	Pages      map[string]PageSection    `json:"pages"`
	UI         UISection                 `json:"ui"`
	Background BackgroundSection         `json:"background"`
	Entities   map[string]EntityOverride `json:"entities,omitempty"`
}

// HomeSection holds dashboard-wide preferences.
type HomeSection struct {
	SectionsOrder            []string            `json:"sections_order,omitempty"`
	EntitiesOrder            map[string][]string `json:"entities_order,omitempty"`
	TallCards                []string            `json:"tall_cards,omitempty"`
	Favorites                []string            `json:"favorites,omitempty"`
	ExcludedFromDashboard    []string            `json:"excluded_from_dashboard,omitempty"`
	ExcludedFromCommonlyUsed []string            `json:"excluded_from_commonly_used,omitempty"`
	IncludedEntities         []string            `json:"included_entities,omitempty"`
	HiddenAreas              []string            `json:"hidden_areas,omitempty"`
	Usage                    map[string][]int64  `json:"usage,omitempty"`
}

// PageSection holds the overrides of one container page or aggregate view.
// CategoryOrders is stored flat as "<category>_order" keys.
type PageSection struct {
	Order          []string
	TallCards      []string
	CategoryOrders map[string][]string
}

// UISection holds visibility flags.
type UISection struct {
	HideHeader       bool `json:"hide_header,omitempty"`
	HideSidebar      bool `json:"hide_sidebar,omitempty"`
	HideSearch       bool `json:"hide_search,omitempty"`
	ShowCommonlyUsed bool `json:"show_commonly_used,omitempty"`
	Compact          bool `json:"compact,omitempty"`
}

// BackgroundSection holds the display theme.
type BackgroundSection struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
	Blur  int    `json:"blur,omitempty"`
}

// EntityOverride holds per-item overrides.
type EntityOverride struct {
	Name string `json:"name,omitempty"`
	Icon string `json:"icon,omitempty"`
}

// IsZero reports whether the override carries no data.
func (o EntityOverride) IsZero() bool {
	return o == EntityOverride{}
}

// ListName names a flat identifier list under home.
type ListName string

const (
	ListFavorites                ListName = "favorites"
	ListExcludedFromDashboard    ListName = "excluded_from_dashboard"
	ListExcludedFromCommonlyUsed ListName = "excluded_from_commonly_used"
	ListIncludedEntities         ListName = "included_entities"
	ListHiddenAreas              ListName = "hidden_areas"
	ListSectionsOrder            ListName = "sections_order"
)

// Lists returns every known ListName.
func Lists() []ListName {
	return []ListName{
		ListFavorites,
		ListExcludedFromDashboard,
		ListExcludedFromCommonlyUsed,
		ListIncludedEntities,
		ListHiddenAreas,
		ListSectionsOrder,
	}
}

func (h *HomeSection) list(name ListName) *[]string {
	switch name {
	case ListFavorites:
		return &h.Favorites
	case ListExcludedFromDashboard:
		return &h.ExcludedFromDashboard
	case ListExcludedFromCommonlyUsed:
		return &h.ExcludedFromCommonlyUsed
	case ListIncludedEntities:
		return &h.IncludedEntities
	case ListHiddenAreas:
		return &h.HiddenAreas
	case ListSectionsOrder:
		return &h.SectionsOrder
	default:
		return nil
	}
}

// NewTree returns an empty, well-formed tree.
func NewTree() Tree {
	t := Tree{}
	t.normalize()
	return t
}

// List returns the list stored at key.
func (t *Tree) List(key OrderKey) []string {
	switch key.Section {
	case SectionHome:
		switch key.Field {
		case fieldEntitiesOrder:
			return t.Home.EntitiesOrder[key.Container]
		case fieldTallCards:
			return t.Home.TallCards
		}
	case SectionPages:
		page := t.Pages[key.Container]
		switch key.Field {
		case fieldOrder:
			return page.Order
		case fieldTallCards:
			return page.TallCards
		default:
			return page.CategoryOrders[strings.TrimSuffix(key.Field, categoryOrderSufx)]
		}
	}
	return nil
}

// SetList replaces the list stored at key. An empty ids clears it.
func (t *Tree) SetList(key OrderKey, ids []string) {
	ids = compactList(ids)
	switch key.Section {
	case SectionHome:
		switch key.Field {
		case fieldEntitiesOrder:
			if ids == nil {
				delete(t.Home.EntitiesOrder, key.Container)
				return
			}
			if t.Home.EntitiesOrder == nil {
				t.Home.EntitiesOrder = map[string][]string{}
			}
			t.Home.EntitiesOrder[key.Container] = ids
		case fieldTallCards:
			t.Home.TallCards = ids
		}
	case SectionPages:
		if t.Pages == nil {
			t.Pages = map[string]PageSection{}
		}
		page := t.Pages[key.Container]
		switch key.Field {
		case fieldOrder:
			page.Order = ids
		case fieldTallCards:
			page.TallCards = ids
		default:
			category := strings.TrimSuffix(key.Field, categoryOrderSufx)
			if ids == nil {
				delete(page.CategoryOrders, category)
			} else {
				if page.CategoryOrders == nil {
					page.CategoryOrders = map[string][]string{}
				}
				page.CategoryOrders[category] = ids
			}
		}
		t.Pages[key.Container] = page
	}
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	out := Tree{
		Home:       t.Home.clone(),
		Pages:      make(map[string]PageSection, len(t.Pages)),
		UI:         t.UI,
		Background: t.Background,
		Entities:   maps.Clone(t.Entities),
	}
	for id, page := range t.Pages {
		out.Pages[id] = page.clone()
	}
	if out.Entities == nil {
		out.Entities = map[string]EntityOverride{}
	}
	return out
}

func (h HomeSection) clone() HomeSection {
	out := HomeSection{
		SectionsOrder:            slices.Clone(h.SectionsOrder),
		EntitiesOrder:            cloneListMap(h.EntitiesOrder),
		TallCards:                slices.Clone(h.TallCards),
		Favorites:                slices.Clone(h.Favorites),
		ExcludedFromDashboard:    slices.Clone(h.ExcludedFromDashboard),
		ExcludedFromCommonlyUsed: slices.Clone(h.ExcludedFromCommonlyUsed),
		IncludedEntities:         slices.Clone(h.IncludedEntities),
		HiddenAreas:              slices.Clone(h.HiddenAreas),
	}
	if h.Usage != nil {
		out.Usage = make(map[string][]int64, len(h.Usage))
		for id, stamps := range h.Usage {
			out.Usage[id] = slices.Clone(stamps)
		}
	}
	return out
}

func (p PageSection) clone() PageSection {
	return PageSection{
		Order:          slices.Clone(p.Order),
		TallCards:      slices.Clone(p.TallCards),
		CategoryOrders: cloneListMap(p.CategoryOrders),
	}
}

// normalize puts t in canonical form: maps allocated, empty lists nil,
// empty entity overrides and usage records dropped.
func (t *Tree) normalize() {
	if t.Pages == nil {
		t.Pages = map[string]PageSection{}
	}
	if t.Entities == nil {
		t.Entities = map[string]EntityOverride{}
	}
	h := &t.Home
	for _, name := range Lists() {
		list := h.list(name)
		*list = compactList(*list)
	}
	h.TallCards = compactList(h.TallCards)
	h.EntitiesOrder = normalizeListMap(h.EntitiesOrder)
	for id, stamps := range h.Usage {
		if slices.ContainsFunc(stamps, func(at int64) bool { return at <= 0 }) {
			stamps = slices.DeleteFunc(slices.Clone(stamps), func(at int64) bool { return at <= 0 })
		}
		if len(stamps) == 0 {
			delete(h.Usage, id)
			continue
		}
		if !slices.IsSorted(stamps) {
			stamps = slices.Clone(stamps)
			slices.Sort(stamps)
		}
		h.Usage[id] = stamps
	}
	if len(h.Usage) == 0 {
		h.Usage = nil
	}
	for id, page := range t.Pages {
		page.Order = compactList(page.Order)
		page.TallCards = compactList(page.TallCards)
		page.CategoryOrders = normalizeListMap(page.CategoryOrders)
		t.Pages[id] = page
	}
	for id, override := range t.Entities {
		if override.IsZero() {
			delete(t.Entities, id)
		}
	}
}

func (p PageSection) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(p.CategoryOrders)+2)
	for category, ids := range p.CategoryOrders {
		out[category+categoryOrderSufx] = ids
	}
	if len(p.Order) > 0 {
		out[fieldOrder] = p.Order
	}
	if len(p.TallCards) > 0 {
		out[fieldTallCards] = p.TallCards
	}
	return json.Marshal(out)
}

// UnmarshalJSON keeps order, tall_cards and every "<category>_order" key.
// Other keys and values that are not string lists are dropped.
func (p *PageSection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PageSection{}
	for key, value := range raw {
		var ids []string
		if err := json.Unmarshal(value, &ids); err != nil {
			continue
		}
		switch {
		case key == fieldOrder:
			p.Order = ids
		case key == fieldTallCards:
			p.TallCards = ids
		case strings.HasSuffix(key, categoryOrderSufx) && len(key) > len(categoryOrderSufx):
			if p.CategoryOrders == nil {
				p.CategoryOrders = map[string][]string{}
			}
			p.CategoryOrders[strings.TrimSuffix(key, categoryOrderSufx)] = ids
		}
	}
	return nil
}

// Categories returns the categories with a saved order, sorted.
func (p PageSection) Categories() []string {
	out := make([]string, 0, len(p.CategoryOrders))
	for category := range p.CategoryOrders {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

func compactList(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func normalizeListMap(in map[string][]string) map[string][]string {
	for key, ids := range in {
		if len(ids) == 0 {
			delete(in, key)
		}
	}
	if len(in) == 0 {
		return nil
	}
	return in
}

func cloneListMap(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for key, ids := range in {
		out[key] = slices.Clone(ids)
	}
	return out
}
