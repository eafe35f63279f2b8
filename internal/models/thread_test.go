package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleThread() *Thread {
	return &Thread{
		ID:       "t1",
		Title:    "How do I shard a counter?",
		Category: CategoryQuestion,
		Author:   UserRef{ID: "author-1", DisplayName: "Avery"},
		Status:   ThreadStatusOpen,
		Posts: []Post{
			{ID: "p1", Author: UserRef{ID: "u1"}},
			{ID: "p2", Author: UserRef{ID: "u2"}},
			{ID: "p3", Author: UserRef{ID: "u1"}, IsDeleted: true},
		},
	}
}

func TestRecount(t *testing.T) {
	thread := sampleThread()
	thread.Recount()

	// Deleted posts still count toward the total.
	assert.Equal(t, 3, thread.TotalPosts)
	// Participants: author-1, u1, u2. The deleted post's author u1 still
	// participates via p1.
	assert.Equal(t, 3, thread.ParticipantCount)
}

func TestRecountDropsDeletedOnlyAuthors(t *testing.T) {
	thread := sampleThread()
	thread.Posts = append(thread.Posts, Post{ID: "p4", Author: UserRef{ID: "u3"}, IsDeleted: true})
	thread.Recount()

	assert.Equal(t, 4, thread.TotalPosts)
	assert.Equal(t, 3, thread.ParticipantCount, "u3 only authored a deleted post")
}

func TestLivePost(t *testing.T) {
	thread := sampleThread()

	require.NotNil(t, thread.LivePost("p1"))
	assert.Nil(t, thread.LivePost("p3"), "deleted post is not live")
	assert.Nil(t, thread.LivePost("missing"))
}

func TestAcceptAnswerSingleWinner(t *testing.T) {
	thread := sampleThread()
	thread.Posts[0].IsAcceptedAnswer = true
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	thread.AcceptAnswer("p2", now)

	assert.False(t, thread.Posts[0].IsAcceptedAnswer, "previous winner cleared")
	assert.True(t, thread.Posts[1].IsAcceptedAnswer)
	require.NotNil(t, thread.AcceptedAnswerID)
	assert.Equal(t, "p2", *thread.AcceptedAnswerID)
	assert.Equal(t, ThreadStatusSolved, thread.Status)
	assert.Equal(t, now, thread.UpdatedAt)
}

func TestToggleLike(t *testing.T) {
	thread := sampleThread()

	assert.True(t, thread.ToggleLike("u1"))
	assert.Equal(t, 1, thread.LikeCount)
	assert.True(t, thread.HasLiked("u1"))

	assert.False(t, thread.ToggleLike("u1"))
	assert.Equal(t, 0, thread.LikeCount)
	assert.False(t, thread.HasLiked("u1"))
}

func TestToggleLikeClampsAtZero(t *testing.T) {
	thread := sampleThread()
	// Counter drifted below membership, e.g. after a bad migration.
	thread.LikedBy = []string{"u1"}
	thread.LikeCount = 0

	assert.False(t, thread.ToggleLike("u1"))
	assert.Equal(t, 0, thread.LikeCount)
}

func TestToggleBookmark(t *testing.T) {
	thread := sampleThread()

	assert.True(t, thread.ToggleBookmark("u1"))
	assert.True(t, thread.ToggleBookmark("u2"))
	assert.Equal(t, 2, thread.BookmarkCount)

	assert.False(t, thread.ToggleBookmark("u1"))
	assert.Equal(t, 1, thread.BookmarkCount)
	assert.True(t, thread.HasBookmarked("u2"))
}

func TestVisiblePosts(t *testing.T) {
	thread := sampleThread()

	visible := thread.VisiblePosts()
	require.Len(t, visible, 2)
	for _, p := range visible {
		assert.False(t, p.IsDeleted)
	}
}

func TestIsModerator(t *testing.T) {
	thread := sampleThread()
	thread.Moderators = []string{"mod-1", "mod-2"}

	assert.True(t, thread.IsModerator("mod-1"))
	assert.False(t, thread.IsModerator("author-1"))
}

func TestPostReactionCounts(t *testing.T) {
	post := Post{
		Reactions: []Reaction{
			{UserID: "u1", Type: ReactionLike},
			{UserID: "u2", Type: ReactionLike},
			{UserID: "u1", Type: ReactionInsightful},
		},
	}

	counts := post.ReactionCounts()
	assert.Equal(t, 2, counts[ReactionLike])
	assert.Equal(t, 1, counts[ReactionInsightful])
	assert.True(t, post.HasReaction("u1", ReactionLike))
	assert.False(t, post.HasReaction("u2", ReactionInsightful))
}

func TestNotificationExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Notification{}).Expired(now), "no TTL never expires")
	assert.True(t, (&Notification{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&Notification{ExpiresAt: &now}).Expired(now), "boundary counts as expired")
	assert.False(t, (&Notification{ExpiresAt: &future}).Expired(now))
}
