package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-dashprefs/pkg/activity"
	"github.com/goliatone/go-dashprefs/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsCustomizationEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.NewHook(sink)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildCustomizationsChangedEvent(activity.CustomizationEventInput{
		ActorID:        actorID.String(),
		UserID:         userID.String(),
		TenantID:       tenantID.String(),
		Scope:          "kitchen",
		Sections:       []string{"home"},
		Channel:        "dashboard",
		DefinitionCode: "dashboard:update",
		Recipients:     []string{"recipient@example.com"},
		OccurredAt:     now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID {
		t.Fatalf("expected actor %s got %s", actorID, record.ActorID)
	}
	if record.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, record.UserID)
	}
	if record.TenantID != tenantID {
		t.Fatalf("expected tenant %s got %s", tenantID, record.TenantID)
	}
	if record.Verb != activity.VerbCustomizationsChanged || record.ObjectType != activity.ObjectTypeCustomizations || record.ObjectID != "kitchen" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "dashboard" {
		t.Fatalf("expected channel dashboard got %q", record.Channel)
	}
	if record.OccurredAt != now {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["definition_code"] != "dashboard:update" {
		t.Fatalf("expected definition_code metadata got %v", record.Data["definition_code"])
	}
	if record.Data["scope"] != "kitchen" {
		t.Fatalf("expected scope metadata passthrough got %v", record.Data["scope"])
	}
	recipients, ok := record.Data["recipients"].([]string)
	if !ok || len(recipients) != 1 || recipients[0] != "recipient@example.com" {
		t.Fatalf("expected recipients metadata got %v", record.Data["recipients"])
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.NewHook(sink, activity.VerbCustomizationsReset)

	_ = hook.Notify(context.Background(), activity.BuildCustomizationsChangedEvent(activity.CustomizationEventInput{Scope: "kitchen"}))
	if len(sink.records) != 0 {
		t.Fatalf("expected changed event to be filtered, got %d records", len(sink.records))
	}
	_ = hook.Notify(context.Background(), activity.BuildCustomizationsResetEvent(activity.CustomizationEventInput{Scope: "kitchen"}))
	if len(sink.records) != 1 {
		t.Fatalf("expected reset event forwarded, got %d records", len(sink.records))
	}
}

func TestHookNotifyDefaultsTimestampAndActor(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}
	userID := uuid.New()

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbCustomizationsChanged,
		UserID:     userID.String(),
		ObjectType: activity.ObjectTypeCustomizations,
		ObjectID:   "hall",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
	if sink.records[0].ActorID != userID {
		t.Fatalf("expected actor to default to user, got %s", sink.records[0].ActorID)
	}
}

func TestHookNotifyFiltersDashboardScopes(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Scopes: []string{"kitchen"}}

	for _, scope := range []string{"wall-panel", "Kitchen"} {
		event := activity.BuildCustomizationsChangedEvent(activity.CustomizationEventInput{Scope: scope, Sections: []string{"pages"}})
		if err := hook.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if len(sink.records) != 1 || sink.records[0].ObjectID != "Kitchen" {
		t.Fatalf("expected only the kitchen dashboard forwarded, got %+v", sink.records)
	}
}

func TestHookNotifyIgnoresOtherObjectTypes(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbCustomizationsChanged,
		ObjectType: "dashboard.card",
		ObjectID:   "light.kitchen",
	})
	if len(sink.records) != 0 {
		t.Fatalf("expected non-customization events to be ignored, got %+v", sink.records)
	}
}

func TestRecordSummarizesDashboardChange(t *testing.T) {
	cases := []struct {
		name  string
		event activity.Event
		want  string
	}{
		{
			name:  "sections",
			event: activity.BuildCustomizationsChangedEvent(activity.CustomizationEventInput{Scope: "kitchen", Sections: []string{"pages", "home"}}),
			want:  "customized home, pages on the kitchen dashboard",
		},
		{
			name:  "reset",
			event: activity.BuildCustomizationsResetEvent(activity.CustomizationEventInput{Scope: "hall"}),
			want:  "reset the hall dashboard",
		},
		{
			name:  "migrated",
			event: activity.BuildCustomizationsMigratedEvent(activity.CustomizationEventInput{Scope: "hall", SnapshotID: "snap-7"}),
			want:  "upgraded saved hall dashboard preferences",
		},
		{
			name: "decoded sections",
			event: activity.Event{
				Verb:       activity.VerbCustomizationsChanged,
				ObjectType: activity.ObjectTypeCustomizations,
				ObjectID:   "garage",
				Metadata:   map[string]any{"sections": []any{"home", 3, ""}},
			},
			want: "customized home on the garage dashboard",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := usersink.Record(activity.NormalizeEvent(tc.event))
			if record.Data["summary"] != tc.want {
				t.Fatalf("expected summary %q, got %v", tc.want, record.Data["summary"])
			}
			if record.Data["scope"] != record.ObjectID {
				t.Fatalf("expected scope %q in data, got %v", record.ObjectID, record.Data["scope"])
			}
		})
	}
}
