// Package usersink forwards dashboard customization activity to a go-users
// ActivitySink so preference edits show up in the user's activity feed.
package usersink

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-dashprefs/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts customization events to a go-users ActivitySink.
//
// Verbs and Scopes filter what is forwarded; an empty filter accepts
// everything. Scopes matches the dashboard scope the event was emitted for,
// so a shared wall panel can stay out of a user's feed.
type Hook struct {
	Sink   usertypes.ActivitySink
	Verbs  []string
	Scopes []string
}

// NewHook returns a Hook forwarding the given verbs (all verbs when none).
func NewHook(sink usertypes.ActivitySink, verbs ...string) Hook {
	return Hook{Sink: sink, Verbs: verbs}
}

// Notify forwards customization events for accepted dashboards. Events for
// other object types are ignored.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" || event.ObjectType != activity.ObjectTypeCustomizations || event.ObjectID == "" {
		return nil
	}
	if !matches(h.Verbs, event.Verb) || !matches(h.Scopes, event.ObjectID) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps a normalized customization event to an activity record. The
// dashboard scope is the object id; touched sections, the snapshot id and a
// readable summary land in Data.
func Record(event activity.Event) usertypes.ActivityRecord {
	user := parseUUID(event.UserID)
	actor := parseUUID(event.ActorID)
	if actor == uuid.Nil {
		actor = user
	}

	data := map[string]any{"scope": event.ObjectID}
	for key, value := range event.Metadata {
		data[key] = value
	}
	sections := sectionsOf(event.Metadata)
	if len(sections) > 0 {
		data["sections"] = sections
	}
	data["summary"] = summarize(event.Verb, event.ObjectID, sections)
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = slices.Clone(event.Recipients)
	}

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return usertypes.ActivityRecord{
		ActorID:    actor,
		UserID:     user,
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: occurred,
	}
}

func summarize(verb, scope string, sections []string) string {
	switch verb {
	case activity.VerbCustomizationsReset:
		return fmt.Sprintf("reset the %s dashboard", scope)
	case activity.VerbCustomizationsMigrated:
		return fmt.Sprintf("upgraded saved %s dashboard preferences", scope)
	}
	if len(sections) == 0 {
		return fmt.Sprintf("customized the %s dashboard", scope)
	}
	return fmt.Sprintf("customized %s on the %s dashboard", strings.Join(sections, ", "), scope)
}

func sectionsOf(meta map[string]any) []string {
	switch v := meta["sections"].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func matches(filter []string, value string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.ContainsFunc(filter, func(candidate string) bool {
		return strings.EqualFold(strings.TrimSpace(candidate), value)
	})
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
