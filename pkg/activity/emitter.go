package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "ldb2pg"

// Config sets the defaults an Emitter stamps on every event of one run.
type Config struct {
	Enabled bool
	Channel string
	// RunID fills events that carry no run ID.
	RunID string
	// Now fills OccurredAt. Defaults to time.Now.
	Now func() time.Time
}

// Emitter fans out the events of one run to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	runID   string
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
	var live Hooks
	for _, hook := range hooks {
		if hook != nil {
			live = append(live, hook)
		}
	}
	return &Emitter{
		hooks:   live,
		enabled: cfg.Enabled && len(live) > 0,
		channel: channel,
		runID:   strings.TrimSpace(cfg.RunID),
		now:     now,
	}
}

// Enabled reports whether any hook will see an event.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit stamps the run defaults on event and forwards it to all hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.RunID) == "" {
		event.RunID = e.runID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	return e.hooks.Notify(ctx, event)
}
