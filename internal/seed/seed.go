package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"agora/internal/models"
	"agora/internal/store"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumThreads  int
	MaxDays     int
	ShouldClean bool
	// RandSeed pins the generator for reproducible runs; zero means random.
	RandSeed int64
}

var (
	categories = []string{
		models.CategoryQuestion, models.CategoryQuestion, models.CategoryQuestion,
		models.CategoryDiscussion, models.CategoryDiscussion,
		models.CategoryAnnouncement, models.CategoryShowcase,
	}

	reactionTypes = []string{
		models.ReactionLike, models.ReactionLove, models.ReactionInsightful,
		models.ReactionDisagree, models.ReactionQuestion,
	}

	notificationTypes = []string{
		models.NotificationReply, models.NotificationLiked, models.NotificationFollowed,
		models.NotificationAnswered, models.NotificationMention, models.NotificationResearchUpdate,
	}

	topicTags = []string{
		"golang", "databases", "distributed-systems", "websockets", "redis",
		"mongodb", "kubernetes", "observability", "testing", "performance",
		"security", "api-design", "caching", "messaging", "frontend",
		"backend", "devops", "cloud", "machine-learning", "startups",
		"homelab", "linux", "networking", "architecture", "career",
	}
)

// Seeder populates the database with generated discussion and notification
// data via the same stores the services use.
type Seeder struct {
	db            *mongo.Database
	threads       store.ThreadStore
	notifications store.NotificationStore
	factory       *Factory
}

// NewSeeder creates a Seeder bound to the provided database.
func NewSeeder(db *mongo.Database, opts Options) *Seeder {
	return &Seeder{
		db:            db,
		threads:       store.NewThreadStore(db),
		notifications: store.NewNotificationStore(db),
		factory:       NewFactory(opts),
	}
}

// ClearAll drops the seeded collections.
func (s *Seeder) ClearAll(ctx context.Context) error {
	for _, name := range []string{"threads", "notifications"} {
		if err := s.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop %s: %w", name, err)
		}
	}
	return nil
}

// Seed generates users, threads with embedded posts and a notification
// backlog. Counts are approximate: engagement is randomized per thread.
func (s *Seeder) Seed(ctx context.Context, opts Options) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 25
	}
	if opts.NumThreads <= 0 {
		opts.NumThreads = 60
	}
	log.Printf("🌱 Seeding %d users and %d threads...", opts.NumUsers, opts.NumThreads)

	users := make([]models.UserRef, opts.NumUsers)
	for i := range users {
		users[i] = s.factory.BuildUser()
	}

	var totalPosts, solved int
	for i := 0; i < opts.NumThreads; i++ {
		author := users[s.factory.rng.Intn(len(users))]
		thread := s.factory.BuildThread(author)
		totalPosts += s.populateThread(thread, users)
		if thread.Status == models.ThreadStatusSolved {
			solved++
		}
		if err := s.threads.Insert(ctx, thread); err != nil {
			return fmt.Errorf("failed to insert thread: %w", err)
		}
	}
	log.Printf("✓ %d threads created (%d posts, %d solved)", opts.NumThreads, totalPosts, solved)

	notified := 0
	for _, recipient := range users {
		n := s.factory.rng.Intn(6)
		for j := 0; j < n; j++ {
			sender := users[s.factory.rng.Intn(len(users))]
			if sender.ID == recipient.ID {
				continue
			}
			record := s.factory.BuildNotification(recipient.ID, sender)
			if err := s.notifications.Insert(ctx, record); err != nil {
				return fmt.Errorf("failed to insert notification: %w", err)
			}
			notified++
		}
	}
	log.Printf("✓ %d notifications created", notified)

	log.Println("✨ All done! Your database is now populated with test data.")
	return nil
}

// populateThread attaches posts, reactions and likes to the thread, accepting
// an answer on about half of the question threads that got replies. Returns
// the number of posts added.
func (s *Seeder) populateThread(thread *models.Thread, users []models.UserRef) int {
	f := s.factory
	numPosts := f.rng.Intn(10)

	for i := 0; i < numPosts; i++ {
		author := users[f.rng.Intn(len(users))]
		post := f.BuildPost(author, thread.CreatedAt)

		// Nest some replies under an earlier post
		if len(thread.Posts) > 0 && f.rng.Intn(3) == 0 {
			parent := thread.Posts[f.rng.Intn(len(thread.Posts))]
			post.ParentID = &parent.ID
		}
		for _, reactor := range users {
			if reactor.ID != post.Author.ID && f.rng.Intn(8) == 0 {
				post.Reactions = append(post.Reactions, f.BuildReaction(reactor, post.CreatedAt.Add(time.Minute)))
			}
		}
		thread.Posts = append(thread.Posts, post)
		if post.CreatedAt.After(thread.LastActivity) {
			thread.LastActivity = post.CreatedAt
		}
	}

	for _, u := range users {
		if f.rng.Intn(5) == 0 {
			thread.ToggleLike(u.ID)
		}
		if f.rng.Intn(12) == 0 {
			thread.ToggleBookmark(u.ID)
		}
	}
	thread.ViewCount = thread.LikeCount*7 + f.rng.Intn(200)

	if thread.Category == models.CategoryQuestion && len(thread.Posts) > 0 && f.rng.Intn(2) == 0 {
		answer := thread.Posts[f.rng.Intn(len(thread.Posts))]
		thread.AcceptAnswer(answer.ID, thread.LastActivity)
	}

	thread.Recount()
	return numPosts
}
