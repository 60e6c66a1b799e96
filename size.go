package dashprefs

import (
	"slices"
	"strings"
)

// Size is the two-valued card size.
type Size int

const (
	SizeRegular Size = iota
	SizeTall
)

func (s Size) String() string {
	if s == SizeTall {
		return "tall"
	}
	return "regular"
}

// Negate returns the opposite size.
func (s Size) Negate() Size {
	if s == SizeTall {
		return SizeRegular
	}
	return SizeTall
}

// NegationMarker prefixes an override entry that forces the regular size.
const NegationMarker = "!"

// DefaultSize decides the size of an item that has no explicit override.
type DefaultSize func(itemID string) Size

// RegularByDefault sizes every item as regular.
func RegularByDefault(string) Size {
	return SizeRegular
}

// TallDomains returns a DefaultSize that makes items tall when the domain
// part of their identifier (the text before the first ".") is listed.
func TallDomains(domains ...string) DefaultSize {
	set := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.TrimSpace(domain)
		if domain != "" {
			set[domain] = struct{}{}
		}
	}
	return func(itemID string) Size {
		if _, ok := set[DomainOf(itemID)]; ok {
			return SizeTall
		}
		return SizeRegular
	}
}

// DomainOf returns the domain part of an entity identifier such as
// "light.kitchen". Identifiers without a dot are returned unchanged.
func DomainOf(itemID string) string {
	if i := strings.IndexByte(itemID, '.'); i >= 0 {
		return itemID[:i]
	}
	return itemID
}

// ResolveSize applies the override list to itemID. An exact entry forces tall,
// a negated entry forces regular, anything else falls back to def.
func ResolveSize(itemID string, overrides []string, def DefaultSize) Size {
	if slices.Contains(overrides, itemID) {
		return SizeTall
	}
	if slices.Contains(overrides, NegationMarker+itemID) {
		return SizeRegular
	}
	return defaultFor(def, itemID)
}

// ToggleSize flips the size of itemID and returns the rewritten override list
// with the resulting size. Two toggles in a row restore the original size.
// The input slice is not modified.
func ToggleSize(itemID string, overrides []string, def DefaultSize) ([]string, Size) {
	next := ResolveSize(itemID, overrides, def).Negate()
	return SetSize(itemID, overrides, next, def), next
}

// SetSize returns overrides rewritten so itemID resolves to size. Both
// explicit entries for itemID are removed first; an entry is written back
// only when size differs from the default. The input slice is not modified.
func SetSize(itemID string, overrides []string, size Size, def DefaultSize) []string {
	negated := NegationMarker + itemID
	out := make([]string, 0, len(overrides)+1)
	for _, entry := range overrides {
		if entry == itemID || entry == negated {
			continue
		}
		out = append(out, entry)
	}
	if size != defaultFor(def, itemID) {
		if size == SizeTall {
			out = append(out, itemID)
		} else {
			out = append(out, negated)
		}
	}
	return out
}

func defaultFor(def DefaultSize, itemID string) Size {
	if def == nil {
		return SizeRegular
	}
	return def(itemID)
}
