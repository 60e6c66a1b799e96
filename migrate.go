package dashprefs

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/goliatone/go-dashprefs/internal/hydrate"
)

var treeDecoder = hydrate.NewDecoder[Tree](
	hydrate.WithPreHook[Tree](upgradeLegacy),
	hydrate.WithCustomDecoder[Tree](decodeSections),
	hydrate.WithPostHook[Tree](func(_ hydrate.Context, t *Tree) error {
		t.normalize()
		return nil
	}),
)

// Migrate converts any persisted representation into a current Tree. raw may
// be nil, JSON ([]byte, json.RawMessage or string), a decoded map, or a Tree.
// Migrate never fails: unreadable input yields NewTree, and values with the
// wrong shape are dropped individually. Migrate(Migrate(x)) equals Migrate(x).
func Migrate(raw any) Tree {
	tree, err := treeDecoder.Decode(hydrate.Context{Source: "migrate"}, toPayload(raw))
	if err != nil {
		return NewTree()
	}
	return tree
}

// IsLegacy reports whether payload predates the sectioned schema.
func IsLegacy(payload map[string]any) bool {
	_, hasHome := payload[SectionHome]
	_, hasPages := payload[SectionPages]
	return !hasHome && !hasPages
}

func toPayload(raw any) map[string]any {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	case Tree:
		data, _ = json.Marshal(v)
	case *Tree:
		if v == nil {
			return map[string]any{}
		}
		data, _ = json.Marshal(v)
	default:
		data, _ = json.Marshal(v)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return map[string]any{}
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return payload
}

func decodeSections(_ hydrate.Context, payload map[string]any) (Tree, error) {
	var t Tree
	hydrate.Lenient(payload[SectionHome], &t.Home)
	hydrate.Lenient(payload[SectionUI], &t.UI)
	hydrate.Lenient(payload[SectionBackground], &t.Background)

	t.Pages = map[string]PageSection{}
	if pages, ok := payload[SectionPages].(map[string]any); ok {
		for id, value := range pages {
			fields, ok := value.(map[string]any)
			if !ok {
				continue
			}
			buffer, err := json.Marshal(fields)
			if err != nil {
				continue
			}
			var page PageSection
			if err := json.Unmarshal(buffer, &page); err != nil {
				continue
			}
			t.Pages[id] = page
		}
	}

	t.Entities = map[string]EntityOverride{}
	if entities, ok := payload[SectionEntities].(map[string]any); ok {
		for id, value := range entities {
			var override EntityOverride
			hydrate.Lenient(value, &override)
			t.Entities[id] = override
		}
	}
	return t, nil
}

// upgradeLegacy rewrites the flat pre-section schema. Current payloads pass
// through untouched.
func upgradeLegacy(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	if !IsLegacy(payload) {
		return nil, nil
	}

	home := map[string]any{}
	pages := map[string]map[string]any{}
	page := func(id string) map[string]any {
		p, ok := pages[id]
		if !ok {
			p = map[string]any{}
			pages[id] = p
		}
		return p
	}

	if areas, ok := payload["areas"].(map[string]any); ok {
		setList(home, string(ListExcludedFromDashboard), areas["excludedFromDashboard"])
		setList(home, string(ListSectionsOrder), areas["order"])
		setList(home, string(ListHiddenAreas), areas["hidden"])
	}
	setList(home, string(ListFavorites), payload["favorites"])
	setList(home, string(ListExcludedFromCommonlyUsed), payload["excludedFromCommonlyUsed"])
	setList(home, string(ListIncludedEntities), payload["includedEntities"])
	if order := listMap(payload["cardOrder"]); len(order) > 0 {
		home[fieldEntitiesOrder] = order
	}

	if ids := stringList(payload["sceneOrder"]); len(ids) > 0 {
		page(ContextScenes)[fieldOrder] = ids
	}
	if ids := stringList(payload["cameraOrder"]); len(ids) > 0 {
		page(ContextCameras)[fieldOrder] = ids
	}
	if byContainer, ok := payload["domainOrder"].(map[string]any); ok {
		for container, value := range byContainer {
			for category, ids := range listMap(value) {
				if category == "" {
					continue
				}
				page(container)[category+categoryOrderSufx] = ids
			}
		}
	}
	for container, ids := range listMap(payload["tallCards"]) {
		if container == ContextHome {
			home[fieldTallCards] = ids
			continue
		}
		page(container)[fieldTallCards] = ids
	}

	if usage, ok := payload["usage"].(map[string]any); ok {
		records := map[string]any{}
		for id, value := range usage {
			if stamps := timestampList(value); len(stamps) > 0 {
				records[id] = stamps
			}
		}
		if len(records) > 0 {
			home["usage"] = records
		}
	}

	ui := map[string]any{}
	for legacy, current := range map[string]string{
		"hideHeader":       "hide_header",
		"hideSidebar":      "hide_sidebar",
		"hideSearch":       "hide_search",
		"showCommonlyUsed": "show_commonly_used",
		"compact":          "compact",
	} {
		if flag, ok := payload[legacy].(bool); ok {
			ui[current] = flag
		}
	}

	background := map[string]any{}
	switch v := payload["background"].(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			background["type"] = "theme"
			background["value"] = v
		}
	case map[string]any:
		background = v
	}

	entities := map[string]any{}
	if names, ok := payload["customNames"].(map[string]any); ok {
		for id, value := range names {
			if name, ok := value.(string); ok && name != "" {
				entities[id] = map[string]any{"name": name}
			}
		}
	}

	pageValues := make(map[string]any, len(pages))
	for id, p := range pages {
		pageValues[id] = p
	}
	return map[string]any{
		SectionHome:       home,
		SectionPages:      pageValues,
		SectionUI:         ui,
		SectionBackground: background,
		SectionEntities:   entities,
	}, nil
}

func setList(target map[string]any, key string, value any) {
	if ids := stringList(value); len(ids) > 0 {
		target[key] = ids
	}
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func listMap(value any) map[string][]string {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(fields))
	for key, item := range fields {
		if ids := stringList(item); len(ids) > 0 {
			out[key] = ids
		}
	}
	return out
}

func timestampList(value any) []int64 {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		f, ok := item.(float64)
		if !ok || f < 1 || f >= math.MaxInt64 {
			continue
		}
		out = append(out, int64(f))
	}
	return out
}
