// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"agora/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Factory builds domain entities without persisting them. The Seeder feeds
// its output to the stores; tests use it directly.
type Factory struct {
	opts Options
	rng  *rand.Rand
}

// NewFactory creates a Factory. A zero Options gets sensible defaults.
func NewFactory(opts Options) *Factory {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	seedVal := opts.RandSeed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	gofakeit.Seed(seedVal)
	// #nosec G404: acceptable for seeding
	return &Factory{opts: opts, rng: rand.New(rand.NewSource(seedVal))}
}

// BuildUser generates a synthetic user reference. Roughly one in ten users
// carries an elevated role so moderation paths get exercised.
func (f *Factory) BuildUser(overrides ...func(*models.UserRef)) models.UserRef {
	user := models.UserRef{
		ID:          uuid.NewString(),
		DisplayName: gofakeit.Name(),
	}
	switch f.rng.Intn(10) {
	case 0:
		user.Role = "verified_expert"
	case 1:
		user.Role = "moderator"
	}

	for _, override := range overrides {
		override(&user)
	}
	return user
}

// BuildThread generates a thread with no posts. Category, tags and timestamps
// are randomized; pass overrides to pin any of them.
func (f *Factory) BuildThread(author models.UserRef, overrides ...func(*models.Thread)) *models.Thread {
	category := categories[f.rng.Intn(len(categories))]
	createdAt := f.pastTime()

	thread := &models.Thread{
		ID:           uuid.NewString(),
		Title:        f.titleFor(category),
		Body:         gofakeit.Paragraph(1, 3, 8, "\n"),
		Category:     category,
		Tags:         f.pickTags(),
		Author:       author,
		Status:       models.ThreadStatusOpen,
		Posts:        []models.Post{},
		LastActivity: createdAt,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	for _, override := range overrides {
		override(thread)
	}
	thread.Recount()
	return thread
}

// BuildPost generates a reply created after the thread it belongs to.
func (f *Factory) BuildPost(author models.UserRef, after time.Time, overrides ...func(*models.Post)) models.Post {
	createdAt := f.timeAfter(after)
	post := models.Post{
		ID:               uuid.NewString(),
		Content:          gofakeit.Paragraph(1, 2, 10, "\n"),
		Author:           author,
		ModerationStatus: models.ModerationApproved,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}

	for _, override := range overrides {
		override(&post)
	}
	return post
}

// BuildReaction generates a reaction from the given user.
func (f *Factory) BuildReaction(user models.UserRef, at time.Time) models.Reaction {
	return models.Reaction{
		UserID:    user.ID,
		Type:      reactionTypes[f.rng.Intn(len(reactionTypes))],
		CreatedAt: at,
	}
}

// BuildNotification generates a durable notification record. Most come out
// unread; a third are already read so inbox filters have data to chew on.
func (f *Factory) BuildNotification(recipient string, sender models.UserRef, overrides ...func(*models.Notification)) *models.Notification {
	notifType := notificationTypes[f.rng.Intn(len(notificationTypes))]
	senderRef := sender
	createdAt := f.pastTime()

	n := &models.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Sender:    &senderRef,
		Type:      notifType,
		Title:     fmt.Sprintf("%s from %s", notifType, sender.DisplayName),
		Message:   gofakeit.Sentence(10),
		Priority:  models.PriorityMedium,
		Status:    models.NotificationUnread,
		Category:  "engagement",
		CreatedAt: createdAt,
	}
	if f.rng.Intn(3) == 0 {
		readAt := f.timeAfter(createdAt)
		n.Status = models.NotificationRead
		n.ReadAt = &readAt
	}

	for _, override := range overrides {
		override(n)
	}
	return n
}

func (f *Factory) titleFor(category string) string {
	switch category {
	case models.CategoryQuestion:
		return gofakeit.Question()
	case models.CategoryAnnouncement:
		return "Announcing: " + gofakeit.Sentence(4)
	default:
		return gofakeit.Sentence(5)
	}
}

func (f *Factory) pickTags() []string {
	n := f.rng.Intn(4) + 1
	seen := make(map[string]bool, n)
	tags := make([]string, 0, n)
	for len(tags) < n {
		tag := topicTags[f.rng.Intn(len(topicTags))]
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// pastTime spreads timestamps over the configured window so listings look
// lived-in rather than all created in the same second.
func (f *Factory) pastTime() time.Time {
	daysBack := f.rng.Intn(f.opts.MaxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
}

// timeAfter returns a timestamp between `after` and now.
func (f *Factory) timeAfter(after time.Time) time.Time {
	span := time.Since(after)
	if span <= 0 {
		return after
	}
	return after.Add(time.Duration(f.rng.Int63n(int64(span))))
}
