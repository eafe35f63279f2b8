package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agora/internal/models"
	"agora/internal/observability"
)

// Broadcaster is the live-delivery primitive the activity router talks to.
// When Redis is available events go through pub/sub so users connected to
// other instances are reached; otherwise delivery is local-hub only. Either
// way there is no acknowledgment, retry or cross-recipient ordering
// guarantee -- durable notifications are the catch-up path.
type Broadcaster struct {
	hub      *Hub
	notifier *Notifier
}

// NewBroadcaster wires a Broadcaster to the local hub and an optional notifier.
func NewBroadcaster(hub *Hub, notifier *Notifier) *Broadcaster {
	return &Broadcaster{hub: hub, notifier: notifier}
}

// envelope is the wire frame: {"type": <event kind>, "payload": {...}}.
type envelope struct {
	Type    string    `json:"type"`
	Payload eventBody `json:"payload"`
}

type eventBody struct {
	Type      string            `json:"type"`
	Actor     models.UserRef    `json:"actor"`
	Target    string            `json:"target,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func marshalEvent(event models.LiveEvent) (string, string, error) {
	kind := event.Kind
	if kind == "" {
		kind = models.EventNewActivity
	}
	frame := envelope{
		Type: kind,
		Payload: eventBody{
			Type:      event.Type,
			Actor:     event.Actor,
			Target:    event.Target,
			Metadata:  event.Metadata,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return "", "", fmt.Errorf("marshal live event: %w", err)
	}
	return string(data), kind, nil
}

// Broadcast emits the event to every currently connected client.
func (b *Broadcaster) Broadcast(ctx context.Context, event models.LiveEvent) error {
	payload, kind, err := marshalEvent(event)
	if err != nil {
		return err
	}

	if b.notifier != nil && b.notifier.rdb != nil {
		observability.LiveEventsTotal.WithLabelValues(kind, "pubsub").Inc()
		return b.notifier.PublishBroadcast(ctx, payload)
	}
	observability.LiveEventsTotal.WithLabelValues(kind, "local").Inc()
	b.hub.BroadcastAll(payload)
	return nil
}

// SendToUsers emits the event only to the listed users' channels. Offline
// users are silently skipped.
func (b *Broadcaster) SendToUsers(ctx context.Context, userIDs []string, event models.LiveEvent) error {
	payload, kind, err := marshalEvent(event)
	if err != nil {
		return err
	}

	if b.notifier != nil && b.notifier.rdb != nil {
		observability.LiveEventsTotal.WithLabelValues(kind, "pubsub").Inc()
		var firstErr error
		for _, userID := range userIDs {
			if err := b.notifier.PublishUser(ctx, userID, payload); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	observability.LiveEventsTotal.WithLabelValues(kind, "local").Inc()
	b.hub.SendToUsers(userIDs, payload)
	return nil
}

// IsConnected reports whether the user has an active live channel.
func (b *Broadcaster) IsConnected(userID string) bool {
	return b.hub.IsConnected(userID)
}
