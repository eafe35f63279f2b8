package store

import (
	"context"

	"agora/internal/models"
	"agora/internal/observability"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ThreadQuery narrows and orders a thread listing. Zero values mean "no
// filter"; Sort is one of the Sort* constants.
type ThreadQuery struct {
	Category string
	Tag      string
	Status   string
	Pinned   *bool
	Featured *bool
	Sort     string
	Skip     int64
	Limit    int64
}

// Thread listing sort orders.
const (
	SortRecentActivity = "recent_activity"
	SortNewest         = "newest"
	SortMostLiked      = "most_liked"
)

// ThreadStore is the persistence surface the discussion engine depends on.
// A thread document embeds all of its posts, so Replace is the single-write
// atomicity unit for post mutations.
type ThreadStore interface {
	Insert(ctx context.Context, thread *models.Thread) error
	FindByID(ctx context.Context, id string) (*models.Thread, error)
	Replace(ctx context.Context, thread *models.Thread) error
	Find(ctx context.Context, q ThreadQuery) ([]*models.Thread, error)
	Count(ctx context.Context, q ThreadQuery) (int64, error)
	IncViewCount(ctx context.Context, id string) error
}

type threadStore struct {
	coll *mongo.Collection
}

// NewThreadStore returns a ThreadStore backed by the "threads" collection.
func NewThreadStore(db *mongo.Database) ThreadStore {
	return &threadStore{coll: db.Collection("threads")}
}

func (s *threadStore) Insert(ctx context.Context, thread *models.Thread) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("insert", "threads")()

	_, err := s.coll.InsertOne(ctx, thread)
	return wrapErr(err, "thread", thread.ID)
}

func (s *threadStore) FindByID(ctx context.Context, id string) (*models.Thread, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("find_by_id", "threads")()

	var thread models.Thread
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&thread); err != nil {
		return nil, wrapErr(err, "thread", id)
	}
	return &thread, nil
}

// Replace persists the whole document in one write. Last writer wins;
// approximate counters may race under concurrent appends, which is
// acceptable here.
func (s *threadStore) Replace(ctx context.Context, thread *models.Thread) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("replace", "threads")()

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": thread.ID}, thread)
	if err != nil {
		return wrapErr(err, "thread", thread.ID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("thread", thread.ID)
	}
	return nil
}

func (s *threadStore) Find(ctx context.Context, q ThreadQuery) ([]*models.Thread, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("find", "threads")()

	opts := options.Find().SetSort(sortSpec(q.Sort))
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := s.coll.Find(ctx, filterSpec(q), opts)
	if err != nil {
		return nil, wrapErr(err, "thread", "")
	}
	defer cursor.Close(ctx)

	var threads []*models.Thread
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, wrapErr(err, "thread", "")
	}
	return threads, nil
}

func (s *threadStore) Count(ctx context.Context, q ThreadQuery) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("count", "threads")()

	n, err := s.coll.CountDocuments(ctx, filterSpec(q))
	if err != nil {
		return 0, wrapErr(err, "thread", "")
	}
	return n, nil
}

// IncViewCount bumps the view counter without rewriting the document, so
// concurrent reads never clobber post content.
func (s *threadStore) IncViewCount(ctx context.Context, id string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	defer observability.TrackStoreOp("inc_view_count", "threads")()

	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"view_count": 1}})
	return wrapErr(err, "thread", id)
}

func filterSpec(q ThreadQuery) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Tag != "" {
		filter["tags"] = q.Tag
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Pinned != nil {
		filter["is_pinned"] = *q.Pinned
	}
	if q.Featured != nil {
		filter["is_featured"] = *q.Featured
	}
	return filter
}

func sortSpec(sort string) bson.D {
	switch sort {
	case SortNewest:
		return bson.D{{Key: "created_at", Value: -1}}
	case SortMostLiked:
		return bson.D{{Key: "like_count", Value: -1}, {Key: "last_activity", Value: -1}}
	default:
		return bson.D{{Key: "last_activity", Value: -1}}
	}
}
