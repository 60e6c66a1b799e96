package activity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "dashboard"

// Config controls emission. The zero value emits every verb on
// DefaultChannel whenever hooks are attached.
type Config struct {
	Disabled bool
	Channel  string
	// Verbs restricts emission to the listed verbs when non-empty.
	Verbs []string
	Now   func() time.Time
}

// Emitter fans out events to hooks while applying channel and clock defaults.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   []string
	now     func() time.Time
}

// NewEmitter constructs an emitter from hooks and configuration. Nil hooks
// are dropped.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	normalizedHooks := cloneHooks(hooks)
	return &Emitter{
		hooks:   normalizedHooks,
		enabled: !cfg.Disabled && len(normalizedHooks) > 0,
		channel: channel,
		verbs:   slices.Clone(cfg.Verbs),
		now:     now,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit forwards event to all hooks, filling in the channel and timestamp
// when missing. Verbs outside Config.Verbs are skipped.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if len(e.verbs) > 0 && !slices.Contains(e.verbs, strings.TrimSpace(event.Verb)) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	return e.hooks.Notify(ctx, event)
}

// Customization builds the customization event for verb and emits it.
func (e *Emitter) Customization(ctx context.Context, verb string, input CustomizationEventInput) error {
	if !e.Enabled() {
		return nil
	}
	var event Event
	switch verb {
	case VerbCustomizationsChanged:
		event = BuildCustomizationsChangedEvent(input)
	case VerbCustomizationsReset:
		event = BuildCustomizationsResetEvent(input)
	case VerbCustomizationsMigrated:
		event = BuildCustomizationsMigratedEvent(input)
	default:
		return fmt.Errorf("activity: unknown customization verb %q", verb)
	}
	return e.Emit(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			normalized = append(normalized, hook)
		}
	}
	return normalized
}
