package dashprefs

// Item is one addressable card supplied by the renderer on each pass.
type Item struct {
	ID       string
	Category string
}

// ItemID returns the identifier of item.
func ItemID(item Item) string {
	return item.ID
}

// MergeOrder arranges live according to saved. Items named by saved come
// first in saved order, the remaining live items follow in their original
// relative order. Saved identifiers without a live item are dropped, duplicate
// live identifiers keep their first occurrence, and items with an empty
// identifier are skipped.
func MergeOrder[T any](live []T, saved []string, id func(T) string) []T {
	index := make(map[string]int, len(live))
	distinct := 0
	for i, item := range live {
		key := id(item)
		if key == "" {
			continue
		}
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = i
		distinct++
	}

	out := make([]T, 0, distinct)
	consumed := make(map[string]struct{}, distinct)
	for _, key := range saved {
		pos, ok := index[key]
		if !ok {
			continue
		}
		if _, done := consumed[key]; done {
			continue
		}
		consumed[key] = struct{}{}
		out = append(out, live[pos])
	}

	for i, item := range live {
		key := id(item)
		if key == "" {
			continue
		}
		if index[key] != i {
			continue
		}
		if _, done := consumed[key]; done {
			continue
		}
		out = append(out, item)
	}
	return out
}

// MergeIDs is MergeOrder over plain identifiers.
func MergeIDs(live, saved []string) []string {
	return MergeOrder(live, saved, func(id string) string { return id })
}
