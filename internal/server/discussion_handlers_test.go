package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/service"
	"agora/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

// memThreadStore is an in-memory ThreadStore for handler tests.
type memThreadStore struct {
	threads map[string]*models.Thread
}

func newMemThreadStore() *memThreadStore {
	return &memThreadStore{threads: make(map[string]*models.Thread)}
}

func (s *memThreadStore) Insert(_ context.Context, t *models.Thread) error {
	s.threads[t.ID] = t
	return nil
}

func (s *memThreadStore) FindByID(_ context.Context, id string) (*models.Thread, error) {
	t, ok := s.threads[id]
	if !ok {
		return nil, models.NewNotFoundError("thread", id)
	}
	copied := *t
	return &copied, nil
}

func (s *memThreadStore) Replace(_ context.Context, t *models.Thread) error {
	if _, ok := s.threads[t.ID]; !ok {
		return models.NewNotFoundError("thread", t.ID)
	}
	s.threads[t.ID] = t
	return nil
}

func (s *memThreadStore) Find(_ context.Context, q store.ThreadQuery) ([]*models.Thread, error) {
	var out []*models.Thread
	for _, t := range s.threads {
		if q.Category != "" && t.Category != q.Category {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (s *memThreadStore) Count(_ context.Context, q store.ThreadQuery) (int64, error) {
	return int64(len(s.threads)), nil
}

func (s *memThreadStore) IncViewCount(_ context.Context, id string) error {
	if t, ok := s.threads[id]; ok {
		t.ViewCount++
		return nil
	}
	return models.NewNotFoundError("thread", id)
}

// memNotificationStore is an in-memory NotificationStore for handler tests.
type memNotificationStore struct {
	records map[string]*models.Notification
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{records: make(map[string]*models.Notification)}
}

func (s *memNotificationStore) Insert(_ context.Context, n *models.Notification) error {
	copied := *n
	s.records[n.ID] = &copied
	return nil
}

func (s *memNotificationStore) FindByID(_ context.Context, id string) (*models.Notification, error) {
	n, ok := s.records[id]
	if !ok {
		return nil, models.NewNotFoundError("notification", id)
	}
	return n, nil
}

func (s *memNotificationStore) FindRecentDuplicate(
	_ context.Context, key store.DedupKey, since time.Time,
) (*models.Notification, error) {
	for _, n := range s.records {
		if n.Recipient == key.Recipient && n.Type == key.Type &&
			(key.ThreadID == "" || n.Data.ThreadID == key.ThreadID) &&
			!n.CreatedAt.Before(since) {
			return n, nil
		}
	}
	return nil, nil
}

func (s *memNotificationStore) List(
	_ context.Context, recipient string, _ store.NotificationFilter, now time.Time,
) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range s.records {
		if n.Recipient == recipient && !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memNotificationStore) UpdateStatus(
	_ context.Context, id, recipient, status string, readAt *time.Time,
) error {
	n, ok := s.records[id]
	if !ok || n.Recipient != recipient {
		return models.NewNotFoundError("notification", id)
	}
	n.Status = status
	n.ReadAt = readAt
	return nil
}

func (s *memNotificationStore) MarkAllRead(
	_ context.Context, recipient string, readAt time.Time,
) (int64, error) {
	var count int64
	for _, n := range s.records {
		if n.Recipient == recipient && n.Status == models.NotificationUnread {
			n.Status = models.NotificationRead
			count++
		}
	}
	return count, nil
}

func (s *memNotificationStore) Delete(_ context.Context, id, recipient string) error {
	n, ok := s.records[id]
	if !ok || n.Recipient != recipient {
		return models.NewNotFoundError("notification", id)
	}
	delete(s.records, id)
	return nil
}

func (s *memNotificationStore) UnreadCount(
	_ context.Context, recipient string, now time.Time,
) (int64, error) {
	var count int64
	for _, n := range s.records {
		if n.Recipient == recipient && n.Status == models.NotificationUnread && !n.Expired(now) {
			count++
		}
	}
	return count, nil
}

func (s *memNotificationStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for id, n := range s.records {
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			delete(s.records, id)
			count++
		}
	}
	return count, nil
}

type testEnv struct {
	server        *Server
	app           *fiber.App
	threads       *memThreadStore
	notifications *memNotificationStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Port:      "0",
		JWTSecret: testJWTSecret,
		MongoURI:  "mongodb://localhost:27017",
		MongoDB:   "agora_test",
	}
	middleware.InitMiddleware(cfg)

	threads := newMemThreadStore()
	notificationStore := newMemNotificationStore()

	srv := &Server{
		config:            cfg,
		threadStore:       threads,
		notificationStore: notificationStore,
	}
	srv.discussions = service.NewDiscussionService(threads)
	srv.notifications = service.NewNotificationService(notificationStore)
	srv.hub = notifications.NewHub()
	srv.hubs = []wireableHub{srv.hub}
	srv.broadcaster = notifications.NewBroadcaster(srv.hub, nil)
	srv.router = service.NewActivityRouter(srv.notifications, srv.broadcaster, srv.discussions)

	app := fiber.New()
	srv.SetupRoutes(app)
	t.Cleanup(func() { _ = srv.hub.Shutdown(context.Background()) })

	return &testEnv{server: srv, app: app, threads: threads, notifications: notificationStore}
}

func bearerFor(t *testing.T, userID, name, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func doJSON(t *testing.T, env *testEnv, method, path, auth string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateThreadEndpoint(t *testing.T) {
	env := newTestEnv(t)
	auth := bearerFor(t, "u1", "Avery", "")

	resp := doJSON(t, env, http.MethodPost, "/api/threads", auth, CreateThreadRequest{
		Title:    "How do I profile allocations?",
		Body:     "pprof keeps pointing at runtime internals",
		Category: models.CategoryQuestion,
		Tags:     []string{"go", "pprof"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var thread models.Thread
	decodeBody(t, resp, &thread)
	assert.Equal(t, "u1", thread.Author.ID)
	assert.Equal(t, models.ThreadStatusOpen, thread.Status)
	assert.Contains(t, env.threads.threads, thread.ID)

	// Unauthenticated creation is rejected.
	resp = doJSON(t, env, http.MethodPost, "/api/threads", "", CreateThreadRequest{
		Title: "x", Body: "y", Category: models.CategoryQuestion,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	// Invalid category surfaces as 400 with the taxonomy code.
	resp = doJSON(t, env, http.MethodPost, "/api/threads", auth, CreateThreadRequest{
		Title: "x", Body: "y", Category: "rant",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody models.ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Equal(t, models.CodeValidation, errBody.Code)
}

func TestGetThreadFiltersDeletedPosts(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.threads.threads["t1"] = &models.Thread{
		ID: "t1", Title: "T", Body: "B", Category: models.CategoryDiscussion,
		Author: models.UserRef{ID: "u1"}, Status: models.ThreadStatusOpen,
		Posts: []models.Post{
			{ID: "p1", Content: "visible", Author: models.UserRef{ID: "u2"}},
			{ID: "p2", Content: "gone", Author: models.UserRef{ID: "u3"}, IsDeleted: true},
		},
		TotalPosts: 2, LastActivity: now, CreatedAt: now, UpdatedAt: now,
	}

	resp := doJSON(t, env, http.MethodGet, "/api/threads/t1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var thread models.Thread
	decodeBody(t, resp, &thread)
	require.Len(t, thread.Posts, 1)
	assert.Equal(t, "p1", thread.Posts[0].ID)
	assert.Equal(t, 2, thread.TotalPosts, "deleted posts still count")
	assert.Equal(t, 1, thread.ViewCount, "view recorded")

	resp = doJSON(t, env, http.MethodGet, "/api/threads/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAddPostEndpointStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.threads.threads["t1"] = &models.Thread{
		ID: "t1", Title: "T", Body: "B", Category: models.CategoryQuestion,
		Author: models.UserRef{ID: "owner"}, Status: models.ThreadStatusOpen,
		LastActivity: now, CreatedAt: now, UpdatedAt: now,
	}
	env.threads.threads["locked"] = &models.Thread{
		ID: "locked", Title: "T", Body: "B", Category: models.CategoryQuestion,
		Author: models.UserRef{ID: "owner"}, Status: models.ThreadStatusOpen, IsLocked: true,
		LastActivity: now, CreatedAt: now, UpdatedAt: now,
	}
	auth := bearerFor(t, "u2", "Blair", "")

	resp := doJSON(t, env, http.MethodPost, "/api/threads/t1/posts", auth,
		AddPostRequest{Content: "answer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post models.Post
	decodeBody(t, resp, &post)
	assert.Equal(t, "u2", post.Author.ID)

	// Locked thread maps to 423.
	resp = doJSON(t, env, http.MethodPost, "/api/threads/locked/posts", auth,
		AddPostRequest{Content: "nope"})
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAcceptAnswerEndpoint(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.threads.threads["t1"] = &models.Thread{
		ID: "t1", Title: "T", Body: "B", Category: models.CategoryQuestion,
		Author: models.UserRef{ID: "owner"}, Status: models.ThreadStatusOpen,
		Posts: []models.Post{
			{ID: "p1", Author: models.UserRef{ID: "u2"}, CreatedAt: now},
		},
		LastActivity: now, CreatedAt: now, UpdatedAt: now,
	}

	// Non-author gets 403.
	resp := doJSON(t, env, http.MethodPost, "/api/threads/t1/posts/p1/accept",
		bearerFor(t, "u9", "Nosy", ""), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, env, http.MethodPost, "/api/threads/t1/posts/p1/accept",
		bearerFor(t, "owner", "Owner", ""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var thread models.Thread
	decodeBody(t, resp, &thread)
	assert.Equal(t, models.ThreadStatusSolved, thread.Status)
	require.NotNil(t, thread.AcceptedAnswerID)
	assert.Equal(t, "p1", *thread.AcceptedAnswerID)
}

func TestModerationEndpointsRequireRights(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.threads.threads["t1"] = &models.Thread{
		ID: "t1", Title: "T", Body: "B", Category: models.CategoryDiscussion,
		Author: models.UserRef{ID: "owner"}, Status: models.ThreadStatusOpen,
		Moderators:   []string{"mod-1"},
		LastActivity: now, CreatedAt: now, UpdatedAt: now,
	}

	resp := doJSON(t, env, http.MethodPost, "/api/threads/t1/pin",
		bearerFor(t, "rando", "Rando", ""), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	// Thread moderator may pin.
	resp = doJSON(t, env, http.MethodPost, "/api/threads/t1/pin",
		bearerFor(t, "mod-1", "Mod", ""), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Elevated role may close without being in the moderator set.
	resp = doJSON(t, env, http.MethodPost, "/api/threads/t1/close",
		bearerFor(t, "staff", "Staff", "admin"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var thread models.Thread
	decodeBody(t, resp, &thread)
	assert.Equal(t, models.ThreadStatusClosed, thread.Status)
}
