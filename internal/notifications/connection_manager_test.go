package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg ConnectionManagerConfig) (*ConnectionManager, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewConnectionManager(rdb, cfg)
	t.Cleanup(m.Stop)
	return m, rdb
}

// transitions records online/offline callbacks for assertions.
type transitions struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (tr *transitions) onOnline(userID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.online = append(tr.online, userID)
}

func (tr *transitions) onOffline(userID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.offline = append(tr.offline, userID)
}

func (tr *transitions) offlineCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.offline)
}

func (tr *transitions) onlineCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.online)
}

func TestConnectionManagerRegisterMarksPresence(t *testing.T) {
	tr := &transitions{}
	m, rdb := newTestManager(t, ConnectionManagerConfig{
		OnUserOnline:  tr.onOnline,
		OnUserOffline: tr.onOffline,
	})
	ctx := context.Background()

	m.Register(ctx, "u1")

	assert.True(t, m.IsOnline(ctx, "u1"))
	isMember, err := rdb.SIsMember(ctx, defaultPresenceOnlineSetKey, "u1").Result()
	require.NoError(t, err)
	assert.True(t, isMember)
	exists, err := rdb.Exists(ctx, defaultPresenceLastSeenKeyNS+"u1").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists)
	assert.Equal(t, 1, tr.onlineCount())
}

func TestConnectionManagerOfflineAfterGrace(t *testing.T) {
	tr := &transitions{}
	m, rdb := newTestManager(t, ConnectionManagerConfig{
		OfflineGracePeriod: 20 * time.Millisecond,
		OnUserOffline:      tr.onOffline,
	})
	ctx := context.Background()

	m.Register(ctx, "u1")
	// Expire the Redis marker so the offline check does not see a fresh one.
	require.NoError(t, rdb.Del(ctx, defaultPresenceLastSeenKeyNS+"u1").Err())
	m.Unregister(ctx, "u1")

	require.Eventually(t, func() bool {
		return tr.offlineCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.False(t, m.IsOnline(ctx, "u1"))
}

func TestConnectionManagerReconnectWithinGraceStaysOnline(t *testing.T) {
	tr := &transitions{}
	m, _ := newTestManager(t, ConnectionManagerConfig{
		OfflineGracePeriod: 50 * time.Millisecond,
		OnUserOffline:      tr.onOffline,
	})
	ctx := context.Background()

	m.Register(ctx, "u1")
	m.Unregister(ctx, "u1")
	m.Register(ctx, "u1") // reconnect before the grace window elapses

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, tr.offlineCount(), "offline fired despite reconnect")
	assert.True(t, m.IsOnline(ctx, "u1"))
}

func TestConnectionManagerSecondConnectionDefersOffline(t *testing.T) {
	tr := &transitions{}
	m, rdb := newTestManager(t, ConnectionManagerConfig{
		OfflineGracePeriod: 20 * time.Millisecond,
		OnUserOffline:      tr.onOffline,
	})
	ctx := context.Background()

	m.Register(ctx, "u1")
	m.Register(ctx, "u1")
	m.Unregister(ctx, "u1")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, tr.offlineCount(), "offline fired while a connection remains")
	assert.True(t, m.IsOnline(ctx, "u1"))

	require.NoError(t, rdb.Del(ctx, defaultPresenceLastSeenKeyNS+"u1").Err())
	m.Unregister(ctx, "u1")
	require.Eventually(t, func() bool {
		return tr.offlineCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestConnectionManagerIsOnlineViaRedisMarker(t *testing.T) {
	m, rdb := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()

	// No local connection, but another instance left a fresh marker.
	require.NoError(t, rdb.Set(ctx, defaultPresenceLastSeenKeyNS+"u9", "1", time.Minute).Err())
	assert.True(t, m.IsOnline(ctx, "u9"))

	require.NoError(t, rdb.Del(ctx, defaultPresenceLastSeenKeyNS+"u9").Err())
	assert.False(t, m.IsOnline(ctx, "u9"))
}

func TestConnectionManagerGetOnlineUserIDsFiltersStale(t *testing.T) {
	m, rdb := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()

	m.Register(ctx, "local-1")
	// Fresh remote user
	require.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "remote-1").Err())
	require.NoError(t, rdb.Set(ctx, defaultPresenceLastSeenKeyNS+"remote-1", "1", time.Minute).Err())
	// Stale member with no last-seen marker
	require.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "stale-1").Err())

	ids := m.GetOnlineUserIDs(ctx)
	assert.ElementsMatch(t, []string{"local-1", "remote-1"}, ids)

	// The stale member was evicted from the online set as a side effect.
	members, err := rdb.SMembers(ctx, defaultPresenceOnlineSetKey).Result()
	require.NoError(t, err)
	assert.NotContains(t, members, "stale-1")
}

func TestConnectionManagerReapOnceEmitsOffline(t *testing.T) {
	tr := &transitions{}
	m, rdb := newTestManager(t, ConnectionManagerConfig{
		OnUserOffline: tr.onOffline,
	})
	ctx := context.Background()

	require.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "gone-1").Err())

	m.reapOnce(ctx)

	assert.Equal(t, 1, tr.offlineCount())
	members, err := rdb.SMembers(ctx, defaultPresenceOnlineSetKey).Result()
	require.NoError(t, err)
	assert.NotContains(t, members, "gone-1")
}

func TestConnectionManagerWithoutRedis(t *testing.T) {
	m := NewConnectionManager(nil, ConnectionManagerConfig{})
	t.Cleanup(m.Stop)
	ctx := context.Background()

	assert.False(t, m.IsOnline(ctx, "u1"))
	m.Register(ctx, "u1")
	assert.True(t, m.IsOnline(ctx, "u1"))
	assert.Equal(t, []string{"u1"}, m.GetOnlineUserIDs(ctx))
}
