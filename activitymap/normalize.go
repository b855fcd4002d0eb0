// Package activitymap flattens auth activity events into a shape suited for
// log pipelines and audit stores.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-auth-legacy"
)

const (
	// MetadataKeyUsername stores the username the event refers to.
	MetadataKeyUsername = "username"
	// MetadataKeyOutcome stores the federation outcome derived from the verb.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity record.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Fields returns the record as key/value pairs for structured loggers.
func (n Normalized) Fields() []any {
	fields := []any{
		"actor_id", n.ActorID,
		"verb", n.Verb,
		"object_id", n.ObjectID,
		"channel", n.Channel,
		"occurred_at", n.OccurredAt.Format(time.RFC3339),
	}
	if len(n.Metadata) > 0 {
		fields = append(fields, "metadata", n.Metadata)
	}
	return fields
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent. The event source, when set,
// becomes the channel so federated and local logins stay apart.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	channel := firstNonEmpty(strings.TrimSpace(event.Source), options.channel)
	objectID := firstNonEmpty(strings.TrimSpace(event.UserID), strings.TrimSpace(event.Username))

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   objectID,
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// WithDefaultChannel is used when the event carries no source.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if c := strings.TrimSpace(channel); c != "" {
			opts.channel = c
		}
	}
}

func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used for anonymous events such as
// failed logins.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// Sink wraps next so every event is normalized before it is forwarded.
func Sink(next func(Normalized), opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		if next != nil {
			next(Normalize(event, opts...))
		}
		return nil
	})
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if username := strings.TrimSpace(event.Username); username != "" {
		if _, exists := metadata[MetadataKeyUsername]; !exists {
			metadata[MetadataKeyUsername] = username
		}
	}

	if outcome := outcomeFor(event.EventType); outcome != "" {
		metadata[MetadataKeyOutcome] = outcome
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func outcomeFor(eventType auth.ActivityEventType) string {
	switch eventType {
	case auth.ActivityEventLoginSuccess, auth.ActivityEventFederationProvisioned:
		return "success"
	case auth.ActivityEventLoginFailure:
		return "failure"
	case auth.ActivityEventFederationUnsynced:
		return "degraded"
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
