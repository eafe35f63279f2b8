// Package models contains data structures for the application's domain entities.
package models

import (
	"time"
)

// Thread categories form a closed enum; CreateThread rejects anything else.
const (
	CategoryQuestion     = "question"
	CategoryDiscussion   = "discussion"
	CategoryAnnouncement = "announcement"
	CategoryShowcase     = "showcase"
)

// Thread statuses. Pinned and featured are orthogonal flags, not statuses,
// so pinning never loses the open/solved information.
const (
	ThreadStatusOpen   = "open"
	ThreadStatusClosed = "closed"
	ThreadStatusSolved = "solved"
)

// Post moderation statuses.
const (
	ModerationApproved = "approved"
	ModerationPending  = "pending"
	ModerationFlagged  = "flagged"
	ModerationRemoved  = "removed"
)

// Reaction types form a closed enum; one reaction of each type per user per
// post (set semantics, re-reacting the same type removes it).
const (
	ReactionLike       = "like"
	ReactionLove       = "love"
	ReactionInsightful = "insightful"
	ReactionDisagree   = "disagree"
	ReactionQuestion   = "question"
)

// ValidCategories enumerates the recognized thread categories.
var ValidCategories = map[string]bool{
	CategoryQuestion:     true,
	CategoryDiscussion:   true,
	CategoryAnnouncement: true,
	CategoryShowcase:     true,
}

// ValidReactions enumerates the recognized reaction types.
var ValidReactions = map[string]bool{
	ReactionLike:       true,
	ReactionLove:       true,
	ReactionInsightful: true,
	ReactionDisagree:   true,
	ReactionQuestion:   true,
}

// UserRef denormalizes the identity fields the UI renders next to content.
// The verified user id comes from the identity provider; display fields are
// copied at write time.
type UserRef struct {
	ID          string `bson:"id" json:"id"`
	DisplayName string `bson:"display_name" json:"display_name"`
	Role        string `bson:"role,omitempty" json:"role,omitempty"`
}

// Reaction is embedded per post: {userId, type, timestamp}.
type Reaction struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Type      string    `bson:"type" json:"type"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Post is a reply within a thread, optionally nested under another post via
// ParentID. Posts are soft-deleted: the record stays attached so children
// remain visible as replies to a removed post.
type Post struct {
	ID               string     `bson:"id" json:"id"`
	Content          string     `bson:"content" json:"content"`
	Author           UserRef    `bson:"author" json:"author"`
	ParentID         *string    `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Reactions        []Reaction `bson:"reactions,omitempty" json:"reactions,omitempty"`
	IsAcceptedAnswer bool       `bson:"is_accepted_answer" json:"is_accepted_answer"`
	IsEdited         bool       `bson:"is_edited" json:"is_edited"`
	IsDeleted        bool       `bson:"is_deleted" json:"is_deleted"`
	DeletedAt        *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	ModerationStatus string     `bson:"moderation_status" json:"moderation_status"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// ReactionCounts summarizes reactions by type, skipping nothing: the set
// semantics guarantee at most one entry per (user, type).
func (p *Post) ReactionCounts() map[string]int {
	counts := make(map[string]int, len(p.Reactions))
	for _, r := range p.Reactions {
		counts[r.Type]++
	}
	return counts
}

// HasReaction reports whether userID already reacted with the given type.
func (p *Post) HasReaction(userID, reactionType string) bool {
	for _, r := range p.Reactions {
		if r.UserID == userID && r.Type == reactionType {
			return true
		}
	}
	return false
}

// Thread is a discussion root. Posts are embedded: one thread document is the
// unit of consistency for all of its posts.
type Thread struct {
	ID               string    `bson:"_id" json:"id"`
	Title            string    `bson:"title" json:"title"`
	Body             string    `bson:"body" json:"body"`
	Category         string    `bson:"category" json:"category"`
	Tags             []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	Author           UserRef   `bson:"author" json:"author"`
	Status           string    `bson:"status" json:"status"`
	IsPinned         bool      `bson:"is_pinned" json:"is_pinned"`
	IsFeatured       bool      `bson:"is_featured" json:"is_featured"`
	IsLocked         bool      `bson:"is_locked" json:"is_locked"`
	AcceptedAnswerID *string   `bson:"accepted_answer_id,omitempty" json:"accepted_answer_id,omitempty"`
	Moderators       []string  `bson:"moderators,omitempty" json:"moderators,omitempty"`
	Posts            []Post    `bson:"posts" json:"posts"`
	ViewCount        int       `bson:"view_count" json:"view_count"`
	LikeCount        int       `bson:"like_count" json:"like_count"`
	LikedBy          []string  `bson:"liked_by,omitempty" json:"-"`
	BookmarkCount    int       `bson:"bookmark_count" json:"bookmark_count"`
	BookmarkedBy     []string  `bson:"bookmarked_by,omitempty" json:"-"`
	TotalPosts       int       `bson:"total_posts" json:"total_posts"`
	ParticipantCount int       `bson:"participant_count" json:"participant_count"`
	LastActivity     time.Time `bson:"last_activity" json:"last_activity"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// FindPost returns a pointer into Posts for the given id, or nil.
func (t *Thread) FindPost(postID string) *Post {
	for i := range t.Posts {
		if t.Posts[i].ID == postID {
			return &t.Posts[i]
		}
	}
	return nil
}

// LivePost returns the post only if it exists and is not soft-deleted.
func (t *Thread) LivePost(postID string) *Post {
	p := t.FindPost(postID)
	if p == nil || p.IsDeleted {
		return nil
	}
	return p
}

// Recount recomputes TotalPosts and ParticipantCount from the embedded post
// list. TotalPosts counts deleted posts too; participants are the distinct
// non-deleted post authors plus the thread author.
func (t *Thread) Recount() {
	t.TotalPosts = len(t.Posts)
	participants := map[string]struct{}{t.Author.ID: {}}
	for i := range t.Posts {
		if t.Posts[i].IsDeleted {
			continue
		}
		participants[t.Posts[i].Author.ID] = struct{}{}
	}
	t.ParticipantCount = len(participants)
}

// IsModerator reports whether userID is in the thread's moderator set.
func (t *Thread) IsModerator(userID string) bool {
	for _, m := range t.Moderators {
		if m == userID {
			return true
		}
	}
	return false
}

// HasLiked reports whether userID is in the liked-by set.
func (t *Thread) HasLiked(userID string) bool {
	return containsID(t.LikedBy, userID)
}

// HasBookmarked reports whether userID is in the bookmarked-by set.
func (t *Thread) HasBookmarked(userID string) bool {
	return containsID(t.BookmarkedBy, userID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ToggleLike flips userID's membership in the liked-by set and returns the
// new state. The counter is clamped at zero on decrement.
func (t *Thread) ToggleLike(userID string) bool {
	if t.HasLiked(userID) {
		t.LikedBy = removeID(t.LikedBy, userID)
		if t.LikeCount > 0 {
			t.LikeCount--
		}
		return false
	}
	t.LikedBy = append(t.LikedBy, userID)
	t.LikeCount++
	return true
}

// ToggleBookmark flips userID's membership in the bookmarked-by set and
// returns the new state.
func (t *Thread) ToggleBookmark(userID string) bool {
	if t.HasBookmarked(userID) {
		t.BookmarkedBy = removeID(t.BookmarkedBy, userID)
		if t.BookmarkCount > 0 {
			t.BookmarkCount--
		}
		return false
	}
	t.BookmarkedBy = append(t.BookmarkedBy, userID)
	t.BookmarkCount++
	return true
}

// AcceptAnswer clears IsAcceptedAnswer on every other post, sets it on the
// target and marks the thread solved. The caller persists the whole document
// in one write so the at-most-one invariant holds at all times.
func (t *Thread) AcceptAnswer(postID string, now time.Time) {
	for i := range t.Posts {
		t.Posts[i].IsAcceptedAnswer = t.Posts[i].ID == postID
	}
	id := postID
	t.AcceptedAnswerID = &id
	t.Status = ThreadStatusSolved
	t.UpdatedAt = now
}

// VisiblePosts filters soft-deleted posts for display. Deleted posts still
// count toward TotalPosts and keep their children attached.
func (t *Thread) VisiblePosts() []Post {
	out := make([]Post, 0, len(t.Posts))
	for _, p := range t.Posts {
		if !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out
}
