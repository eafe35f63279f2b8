package store

import (
	"context"
	"errors"
	"time"

	"agora/internal/models"
	"agora/internal/observability"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NotificationFilter narrows a recipient's notification listing.
type NotificationFilter struct {
	Category string
	Status   string
	Priority string
	Skip     int64
	Limit    int64
}

// DedupKey identifies "the same" notification for the dedup window:
// recipient, type and the thread/expert references in the payload.
type DedupKey struct {
	Recipient string
	Type      string
	ThreadID  string
	ExpertID  string
}

// NotificationStore is the persistence surface of the notification service.
type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	FindRecentDuplicate(ctx context.Context, key DedupKey, since time.Time) (*models.Notification, error)
	List(ctx context.Context, recipient string, f NotificationFilter, now time.Time) ([]*models.Notification, error)
	UpdateStatus(ctx context.Context, id, recipient, status string, readAt *time.Time) error
	MarkAllRead(ctx context.Context, recipient string, readAt time.Time) (int64, error)
	Delete(ctx context.Context, id, recipient string) error
	UnreadCount(ctx context.Context, recipient string, now time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type notificationStore struct {
	coll *mongo.Collection
}

// NewNotificationStore returns a NotificationStore backed by the
// "notifications" collection.
func NewNotificationStore(db *mongo.Database) NotificationStore {
	return &notificationStore{coll: db.Collection("notifications")}
}

func (s *notificationStore) Insert(ctx context.Context, n *models.Notification) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("insert", "notifications")()

	_, err := s.coll.InsertOne(ctx, n)
	return wrapErr(err, "notification", n.ID)
}

func (s *notificationStore) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("find_by_id", "notifications")()

	var n models.Notification
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrapErr(err, "notification", id)
	}
	return &n, nil
}

// FindRecentDuplicate returns the newest notification matching the dedup key
// created at or after `since`, or nil when none exists.
func (s *notificationStore) FindRecentDuplicate(
	ctx context.Context, key DedupKey, since time.Time,
) (*models.Notification, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("find_recent_duplicate", "notifications")()

	filter := bson.M{
		"recipient":  key.Recipient,
		"type":       key.Type,
		"created_at": bson.M{"$gte": since},
	}
	if key.ThreadID != "" {
		filter["data.thread_id"] = key.ThreadID
	}
	if key.ExpertID != "" {
		filter["data.expert_id"] = key.ExpertID
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var n models.Notification
	err := s.coll.FindOne(ctx, filter, opts).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "notification", "")
	}
	return &n, nil
}

func (s *notificationStore) List(
	ctx context.Context, recipient string, f NotificationFilter, now time.Time,
) ([]*models.Notification, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("list", "notifications")()

	filter := bson.M{
		"recipient": recipient,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(err, "notification", "")
	}
	defer cursor.Close(ctx)

	var out []*models.Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr(err, "notification", "")
	}
	return out, nil
}

func (s *notificationStore) UpdateStatus(
	ctx context.Context, id, recipient, status string, readAt *time.Time,
) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("update_status", "notifications")()

	set := bson.M{"status": status}
	if readAt != nil {
		set["read_at"] = readAt
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": set})
	if err != nil {
		return wrapErr(err, "notification", id)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("notification", id)
	}
	return nil
}

func (s *notificationStore) MarkAllRead(
	ctx context.Context, recipient string, readAt time.Time,
) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("mark_all_read", "notifications")()

	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient": recipient, "status": models.NotificationUnread},
		bson.M{"$set": bson.M{"status": models.NotificationRead, "read_at": readAt}})
	if err != nil {
		return 0, wrapErr(err, "notification", "")
	}
	return res.ModifiedCount, nil
}

func (s *notificationStore) Delete(ctx context.Context, id, recipient string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("delete", "notifications")()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "recipient": recipient})
	if err != nil {
		return wrapErr(err, "notification", id)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFoundError("notification", id)
	}
	return nil
}

// UnreadCount excludes expired records even when the purge loop has not
// removed them yet.
func (s *notificationStore) UnreadCount(
	ctx context.Context, recipient string, now time.Time,
) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("unread_count", "notifications")()

	n, err := s.coll.CountDocuments(ctx, bson.M{
		"recipient": recipient,
		"status":    models.NotificationUnread,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	})
	if err != nil {
		return 0, wrapErr(err, "notification", "")
	}
	return n, nil
}

func (s *notificationStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("purge_expired", "notifications")()

	res, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, wrapErr(err, "notification", "")
	}
	return res.DeletedCount, nil
}
