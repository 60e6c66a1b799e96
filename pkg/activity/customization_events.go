package activity

import (
	"sort"
	"strings"
	"time"
)

// Verbs and object type used for dashboard customization events.
const (
	VerbCustomizationsChanged  = "customizations.changed"
	VerbCustomizationsReset    = "customizations.reset"
	VerbCustomizationsMigrated = "customizations.migrated"

	ObjectTypeCustomizations = "dashboard.customizations"
)

// CustomizationEventInput describes the common fields for customization
// lifecycle events. Scope is the dashboard scope the document belongs to.
type CustomizationEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Scope          string
	Sections       []string
	SnapshotID     string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// BuildCustomizationsChangedEvent reports an edit of one or more sections.
func BuildCustomizationsChangedEvent(input CustomizationEventInput) Event {
	return buildCustomizationEvent(VerbCustomizationsChanged, input)
}

// BuildCustomizationsResetEvent reports a whole-document replacement.
func BuildCustomizationsResetEvent(input CustomizationEventInput) Event {
	return buildCustomizationEvent(VerbCustomizationsReset, input)
}

// BuildCustomizationsMigratedEvent reports a legacy document rewritten to the
// sectioned schema.
func BuildCustomizationsMigratedEvent(input CustomizationEventInput) Event {
	return buildCustomizationEvent(VerbCustomizationsMigrated, input)
}

func buildCustomizationEvent(verb string, input CustomizationEventInput) Event {
	metadata := cloneMap(input.Metadata)
	scope := strings.TrimSpace(input.Scope)
	if scope != "" {
		metadata = ensureMetadata(metadata)
		metadata["scope"] = scope
	}
	if sections := normalizeSections(input.Sections); len(sections) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["sections"] = sections
	}
	if input.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.SnapshotID
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := scope
	if objectID == "" {
		objectID = strings.TrimSpace(input.SnapshotID)
	}
	if objectID == "" {
		objectID = ObjectTypeCustomizations
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     ObjectTypeCustomizations,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func normalizeSections(sections []string) []string {
	if len(sections) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(sections))
	out := make([]string, 0, len(sections))
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if _, ok := seen[section]; ok {
			continue
		}
		seen[section] = struct{}{}
		out = append(out, section)
	}
	sort.Strings(out)
	return out
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
