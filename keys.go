package dashprefs

import "fmt"

// Context identifiers with fixed storage locations.
const (
	ContextHome    = "home"
	ContextScenes  = "scenes"
	ContextCameras = "cameras"
)

// Section identifiers used by OrderKey.Section.
const (
	SectionHome       = "home"
	SectionPages      = "pages"
	SectionUI         = "ui"
	SectionBackground = "background"
	SectionEntities   = "entities"
)

const (
	fieldEntitiesOrder = "entities_order"
	fieldOrder         = "order"
	fieldTallCards     = "tall_cards"
	categoryOrderSufx  = "_order"
)

// OrderKey addresses one list inside the customization tree.
//
//	home.entities_order[Container]   Section=home  Field=entities_order
//	home.tall_cards                  Section=home  Field=tall_cards
//	pages[Container].order           Section=pages Field=order
//	pages[Container][light_order]    Section=pages Field=light_order
type OrderKey struct {
	Section   string
	Container string
	Field     string
}

// IsReservedContext reports whether context names an aggregate view that owns
// its own page entry regardless of the container.
func IsReservedContext(context string) bool {
	switch context {
	case ContextScenes, ContextCameras:
		return true
	default:
		return false
	}
}

// ResolveOrderKey maps a (context, container, category) triple to the list
// that stores its saved order. It is total: every input yields a key.
func ResolveOrderKey(context, containerID, category string) OrderKey {
	switch {
	case context == ContextHome:
		return OrderKey{Section: SectionHome, Container: containerID, Field: fieldEntitiesOrder}
	case IsReservedContext(context):
		return OrderKey{Section: SectionPages, Container: context, Field: fieldOrder}
	case category == "":
		return OrderKey{Section: SectionPages, Container: containerID, Field: fieldOrder}
	default:
		return OrderKey{Section: SectionPages, Container: containerID, Field: category + categoryOrderSufx}
	}
}

// ResolveTallCardsKey maps a (context, container) pair to the size override
// list for that view.
func ResolveTallCardsKey(context, containerID string) OrderKey {
	switch {
	case context == ContextHome:
		return OrderKey{Section: SectionHome, Field: fieldTallCards}
	case IsReservedContext(context):
		return OrderKey{Section: SectionPages, Container: context, Field: fieldTallCards}
	default:
		return OrderKey{Section: SectionPages, Container: containerID, Field: fieldTallCards}
	}
}

func (k OrderKey) String() string {
	switch k.Section {
	case SectionHome:
		if k.Field == fieldEntitiesOrder {
			return fmt.Sprintf("home.%s[%s]", k.Field, k.Container)
		}
		return "home." + k.Field
	case SectionPages:
		if k.Field == fieldOrder || k.Field == fieldTallCards {
			return fmt.Sprintf("pages[%s].%s", k.Container, k.Field)
		}
		return fmt.Sprintf("pages[%s][%s]", k.Container, k.Field)
	default:
		return fmt.Sprintf("%s[%s].%s", k.Section, k.Container, k.Field)
	}
}
