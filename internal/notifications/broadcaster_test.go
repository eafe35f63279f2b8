package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() models.LiveEvent {
	return models.LiveEvent{
		Type:      models.ActivityLike,
		Actor:     models.UserRef{ID: "u1", DisplayName: "Avery"},
		Target:    "thread:t1",
		Metadata:  map[string]string{"thread_title": "Hello"},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMarshalEventEnvelope(t *testing.T) {
	payload, kind, err := marshalEvent(sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, models.EventNewActivity, kind, "empty kind defaults to new_activity")

	var frame struct {
		Type    string `json:"type"`
		Payload struct {
			Type      string            `json:"type"`
			Actor     models.UserRef    `json:"actor"`
			Target    string            `json:"target"`
			Metadata  map[string]string `json:"metadata"`
			Timestamp string            `json:"timestamp"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &frame))
	assert.Equal(t, models.EventNewActivity, frame.Type)
	assert.Equal(t, models.ActivityLike, frame.Payload.Type)
	assert.Equal(t, "u1", frame.Payload.Actor.ID)
	assert.Equal(t, "thread:t1", frame.Payload.Target)
	assert.Equal(t, "Hello", frame.Payload.Metadata["thread_title"])
	assert.Equal(t, "2026-03-01T12:00:00Z", frame.Payload.Timestamp)
}

func TestMarshalEventKeepsExplicitKind(t *testing.T) {
	event := sampleEvent()
	event.Kind = models.EventActivityUpdate

	payload, kind, err := marshalEvent(event)
	require.NoError(t, err)
	assert.Equal(t, models.EventActivityUpdate, kind)
	assert.Contains(t, payload, `"type":"activity_update"`)
}

func TestBroadcasterLocalBroadcast(t *testing.T) {
	h := newTestHub(t)
	c1 := register(t, h, "u1")
	c2 := register(t, h, "u2")

	b := NewBroadcaster(h, nil)
	require.NoError(t, b.Broadcast(context.Background(), sampleEvent()))

	for _, c := range []*Client{c1, c2} {
		var frame envelope
		require.NoError(t, json.Unmarshal(recvOn(t, c), &frame))
		assert.Equal(t, models.EventNewActivity, frame.Type)
		assert.Equal(t, models.ActivityLike, frame.Payload.Type)
	}
}

func TestBroadcasterLocalSendToUsers(t *testing.T) {
	h := newTestHub(t)
	target := register(t, h, "u1")
	bystander := register(t, h, "u2")

	b := NewBroadcaster(h, nil)
	require.NoError(t, b.SendToUsers(context.Background(), []string{"u1", "offline-user"}, sampleEvent()))

	var frame envelope
	require.NoError(t, json.Unmarshal(recvOn(t, target), &frame))
	assert.Equal(t, "thread:t1", frame.Payload.Target)

	select {
	case msg := <-bystander.Send:
		t.Fatalf("bystander received targeted event: %s", msg)
	default:
	}
}

func TestBroadcasterPubSubDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewHub(rdb)
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	c := register(t, h, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := NewNotifier(rdb)
	require.NoError(t, h.StartWiring(ctx, n))
	time.Sleep(100 * time.Millisecond)

	b := NewBroadcaster(h, n)
	require.NoError(t, b.SendToUsers(ctx, []string{"u1"}, sampleEvent()))

	var frame envelope
	require.NoError(t, json.Unmarshal(recvOn(t, c), &frame))
	assert.Equal(t, models.ActivityLike, frame.Payload.Type)
}

func TestBroadcasterIsConnected(t *testing.T) {
	h := newTestHub(t)
	register(t, h, "u1")

	b := NewBroadcaster(h, nil)
	assert.True(t, b.IsConnected("u1"))
	assert.False(t, b.IsConnected("u2"))
}
