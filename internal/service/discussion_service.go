// Package service contains the discussion engine, notification service and
// activity router.
package service

import (
	"context"
	"strings"
	"time"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/store"

	"github.com/google/uuid"
)

const (
	maxTitleLen = 200
	maxBodyLen  = 50000
	maxPostLen  = 20000
	maxTags     = 10

	// Posts are editable by their author for this long after creation.
	editWindow = 24 * time.Hour
)

// Roles granted moderation rights platform-wide, in addition to a thread's
// own moderator set.
var elevatedRoles = map[string]bool{
	"moderator":       true,
	"admin":           true,
	"verified_expert": true,
}

// DiscussionService owns thread and post lifecycle: creation, replies,
// reactions, moderation and the accepted-answer state machine. All writes go
// through the thread store as whole-document replacements, so each mutation
// is atomic at the thread level.
type DiscussionService struct {
	threads store.ThreadStore
	now     func() time.Time
}

// NewDiscussionService creates a DiscussionService backed by the given store.
func NewDiscussionService(threads store.ThreadStore) *DiscussionService {
	return &DiscussionService{threads: threads, now: time.Now}
}

// CreateThreadInput carries the fields for a new discussion root.
type CreateThreadInput struct {
	Author   models.UserRef
	Title    string
	Body     string
	Category string
	Tags     []string
}

// AddPostInput carries the fields for a new reply.
type AddPostInput struct {
	ThreadID string
	Author   models.UserRef
	Content  string
	ParentID *string
}

// EditPostInput carries the fields for a post edit.
type EditPostInput struct {
	ThreadID string
	PostID   string
	EditorID string
	Content  string
}

// CreateThread validates input and persists a new open thread with zeroed counters.
func (s *DiscussionService) CreateThread(ctx context.Context, in CreateThreadInput) (*models.Thread, error) {
	ctx, span := observability.TraceServiceCall(ctx, "discussion", "CreateThread")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 200 characters)")
	}
	if body == "" {
		return nil, models.NewValidationError("Body is required")
	}
	if len(body) > maxBodyLen {
		return nil, models.NewValidationError("Body too long (max 50000 characters)")
	}
	if !models.ValidCategories[in.Category] {
		return nil, models.NewValidationError("Unrecognized category")
	}
	if len(in.Tags) > maxTags {
		return nil, models.NewValidationError("Too many tags (max 10)")
	}

	now := s.now()
	thread := &models.Thread{
		ID:           uuid.NewString(),
		Title:        title,
		Body:         body,
		Category:     in.Category,
		Tags:         dedupeTags(in.Tags),
		Author:       in.Author,
		Status:       models.ThreadStatusOpen,
		Posts:        []models.Post{},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	thread.Recount()

	if err := withStorageRetry(ctx, func(ctx context.Context) error {
		return s.threads.Insert(ctx, thread)
	}); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThread loads a thread and bumps its view counter.
func (s *DiscussionService) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	thread, err := s.loadThread(ctx, id)
	if err != nil {
		return nil, err
	}
	// View counts are approximate; a failed increment is not worth failing the read.
	if err := s.threads.IncViewCount(ctx, id); err == nil {
		thread.ViewCount++
	}
	return thread, nil
}

// ListThreads is a thin pass-through to the store's filtered listing.
func (s *DiscussionService) ListThreads(ctx context.Context, q store.ThreadQuery) ([]*models.Thread, error) {
	var threads []*models.Thread
	err := withStorageRetry(ctx, func(ctx context.Context) error {
		var innerErr error
		threads, innerErr = s.threads.Find(ctx, q)
		return innerErr
	})
	return threads, err
}

// AddPost appends a reply to a thread. The parent post, when supplied, must
// be a live post of the same thread; that is checked at creation time only,
// so deleting a parent later leaves its children attached.
func (s *DiscussionService) AddPost(ctx context.Context, in AddPostInput) (*models.Thread, *models.Post, error) {
	ctx, span := observability.TraceServiceCall(ctx, "discussion", "AddPost")
	defer span.End()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxPostLen {
		return nil, nil, models.NewValidationError("Post too long (max 20000 characters)")
	}

	thread, err := s.loadThread(ctx, in.ThreadID)
	if err != nil {
		return nil, nil, err
	}

	if thread.IsLocked {
		return nil, nil, models.NewLockedError("Thread is locked against new posts")
	}
	if thread.Status == models.ThreadStatusClosed {
		return nil, nil, models.NewLockedError("Thread is closed")
	}
	if in.ParentID != nil {
		if parent := thread.LivePost(*in.ParentID); parent == nil {
			return nil, nil, models.NewNotFoundError("parent post", *in.ParentID)
		}
	}

	now := s.now()
	post := models.Post{
		ID:               uuid.NewString(),
		Content:          content,
		Author:           in.Author,
		ParentID:         in.ParentID,
		ModerationStatus: models.ModerationApproved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	thread.Posts = append(thread.Posts, post)
	thread.LastActivity = now
	thread.UpdatedAt = now
	thread.Recount()

	if err := s.replaceThread(ctx, thread); err != nil {
		return nil, nil, err
	}
	return thread, thread.FindPost(post.ID), nil
}

// EditPost updates a post's content. Only the original author may edit, and
// only within the 24h window from creation.
func (s *DiscussionService) EditPost(ctx context.Context, in EditPostInput) (*models.Post, error) {
	ctx, span := observability.TraceServiceCall(ctx, "discussion", "EditPost")
	defer span.End()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxPostLen {
		return nil, models.NewValidationError("Post too long (max 20000 characters)")
	}

	thread, err := s.loadThread(ctx, in.ThreadID)
	if err != nil {
		return nil, err
	}

	post := thread.LivePost(in.PostID)
	if post == nil {
		return nil, models.NewNotFoundError("post", in.PostID)
	}
	if post.Author.ID != in.EditorID {
		return nil, models.NewPermissionError("Only the author can edit this post")
	}
	now := s.now()
	if now.Sub(post.CreatedAt) > editWindow {
		return nil, models.NewWindowExpiredError("Edit window of 24 hours has elapsed")
	}

	post.Content = content
	post.IsEdited = true
	post.UpdatedAt = now
	thread.UpdatedAt = now

	if err := s.replaceThread(ctx, thread); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost soft-deletes a post. Allowed for the author, a member of the
// thread's moderator set, or a holder of an elevated role. Children stay
// attached and visible as replies to a removed post.
func (s *DiscussionService) DeletePost(ctx context.Context, threadID, postID string, requester models.UserRef) error {
	ctx, span := observability.TraceServiceCall(ctx, "discussion", "DeletePost")
	defer span.End()

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return err
	}

	post := thread.LivePost(postID)
	if post == nil {
		return models.NewNotFoundError("post", postID)
	}
	if !canModerate(thread, requester) && post.Author.ID != requester.ID {
		return models.NewPermissionError("Only the author or a moderator can delete this post")
	}

	now := s.now()
	post.IsDeleted = true
	post.DeletedAt = &now
	post.UpdatedAt = now
	thread.UpdatedAt = now
	thread.Recount()

	return s.replaceThread(ctx, thread)
}

// ToggleLike flips the requester's like on a thread and returns the new
// state with the updated counter.
func (s *DiscussionService) ToggleLike(ctx context.Context, threadID, userID string) (bool, int, error) {
	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return false, 0, err
	}
	liked := thread.ToggleLike(userID)
	thread.UpdatedAt = s.now()
	if err := s.replaceThread(ctx, thread); err != nil {
		return false, 0, err
	}
	return liked, thread.LikeCount, nil
}

// ToggleBookmark flips the requester's bookmark on a thread and returns the
// new state with the updated counter.
func (s *DiscussionService) ToggleBookmark(ctx context.Context, threadID, userID string) (bool, int, error) {
	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return false, 0, err
	}
	bookmarked := thread.ToggleBookmark(userID)
	thread.UpdatedAt = s.now()
	if err := s.replaceThread(ctx, thread); err != nil {
		return false, 0, err
	}
	return bookmarked, thread.BookmarkCount, nil
}

// ToggleReaction flips a reaction on a post. Set semantics: at most one
// reaction per (user, type) per post; reacting again with the same type
// removes it.
func (s *DiscussionService) ToggleReaction(
	ctx context.Context, threadID, postID, userID, reactionType string,
) (*models.Post, bool, error) {
	if !models.ValidReactions[reactionType] {
		return nil, false, models.NewValidationError("Unrecognized reaction type")
	}

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, false, err
	}
	post := thread.LivePost(postID)
	if post == nil {
		return nil, false, models.NewNotFoundError("post", postID)
	}

	now := s.now()
	added := true
	if post.HasReaction(userID, reactionType) {
		kept := post.Reactions[:0]
		for _, r := range post.Reactions {
			if r.UserID == userID && r.Type == reactionType {
				continue
			}
			kept = append(kept, r)
		}
		post.Reactions = kept
		added = false
	} else {
		post.Reactions = append(post.Reactions, models.Reaction{
			UserID:    userID,
			Type:      reactionType,
			CreatedAt: now,
		})
	}
	post.UpdatedAt = now
	thread.UpdatedAt = now

	if err := s.replaceThread(ctx, thread); err != nil {
		return nil, false, err
	}
	return post, added, nil
}

// AcceptAnswer marks a post as the thread's accepted answer. Only the thread
// author may accept, only on question threads, and only for a live post of
// the thread. Clearing the previous answer and setting the new one happen in
// one document write so at most one post is ever marked.
func (s *DiscussionService) AcceptAnswer(ctx context.Context, threadID, requesterID, postID string) (*models.Thread, error) {
	ctx, span := observability.TraceServiceCall(ctx, "discussion", "AcceptAnswer")
	defer span.End()

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if thread.Author.ID != requesterID {
		return nil, models.NewPermissionError("Only the thread author can accept an answer")
	}
	if thread.Category != models.CategoryQuestion {
		return nil, models.NewInvalidStateError("Answers can only be accepted on question threads")
	}
	if thread.LivePost(postID) == nil {
		return nil, models.NewNotFoundError("post", postID)
	}

	thread.AcceptAnswer(postID, s.now())

	if err := s.replaceThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// CloseThread sets status=closed. Moderators only. Closing does not touch the
// pinned/featured flags.
func (s *DiscussionService) CloseThread(ctx context.Context, threadID string, requester models.UserRef) (*models.Thread, error) {
	return s.moderateThread(ctx, threadID, requester, func(t *models.Thread) {
		t.Status = models.ThreadStatusClosed
	})
}

// SetLocked toggles the lock flag that blocks new posts regardless of status.
func (s *DiscussionService) SetLocked(ctx context.Context, threadID string, requester models.UserRef, locked bool) (*models.Thread, error) {
	return s.moderateThread(ctx, threadID, requester, func(t *models.Thread) {
		t.IsLocked = locked
	})
}

// SetPinned toggles the pinned flag. Pinning is orthogonal to status so a
// solved thread stays solved while pinned.
func (s *DiscussionService) SetPinned(ctx context.Context, threadID string, requester models.UserRef, pinned bool) (*models.Thread, error) {
	return s.moderateThread(ctx, threadID, requester, func(t *models.Thread) {
		t.IsPinned = pinned
	})
}

// SetFeatured toggles the featured flag.
func (s *DiscussionService) SetFeatured(ctx context.Context, threadID string, requester models.UserRef, featured bool) (*models.Thread, error) {
	return s.moderateThread(ctx, threadID, requester, func(t *models.Thread) {
		t.IsFeatured = featured
	})
}

// ModeratePost sets a post's moderation status. Moderators only.
func (s *DiscussionService) ModeratePost(
	ctx context.Context, threadID, postID string, requester models.UserRef, status string,
) (*models.Post, error) {
	switch status {
	case models.ModerationApproved, models.ModerationPending, models.ModerationFlagged, models.ModerationRemoved:
	default:
		return nil, models.NewValidationError("Unrecognized moderation status")
	}

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !canModerate(thread, requester) {
		return nil, models.NewPermissionError("Moderator rights required")
	}
	post := thread.FindPost(postID)
	if post == nil {
		return nil, models.NewNotFoundError("post", postID)
	}

	post.ModerationStatus = status
	post.UpdatedAt = s.now()
	thread.UpdatedAt = post.UpdatedAt

	if err := s.replaceThread(ctx, thread); err != nil {
		return nil, err
	}
	return post, nil
}

// ContentOwner resolves the author of a piece of content, used by the
// activity router to target like/comment notifications.
func (s *DiscussionService) ContentOwner(ctx context.Context, targetType, targetID string) (string, error) {
	switch targetType {
	case models.TargetThread:
		thread, err := s.loadThread(ctx, targetID)
		if err != nil {
			return "", err
		}
		return thread.Author.ID, nil
	case models.TargetPost:
		// Post ids are unique per thread; the router passes "threadID/postID".
		threadID, postID, ok := strings.Cut(targetID, "/")
		if !ok {
			return "", models.NewValidationError("post target must be threadID/postID")
		}
		thread, err := s.loadThread(ctx, threadID)
		if err != nil {
			return "", err
		}
		post := thread.LivePost(postID)
		if post == nil {
			return "", models.NewNotFoundError("post", postID)
		}
		return post.Author.ID, nil
	default:
		return "", models.NewValidationError("unknown content type " + targetType)
	}
}

func (s *DiscussionService) moderateThread(
	ctx context.Context, threadID string, requester models.UserRef, mutate func(*models.Thread),
) (*models.Thread, error) {
	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !canModerate(thread, requester) {
		return nil, models.NewPermissionError("Moderator rights required")
	}
	mutate(thread)
	thread.UpdatedAt = s.now()
	if err := s.replaceThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

func (s *DiscussionService) loadThread(ctx context.Context, id string) (*models.Thread, error) {
	var thread *models.Thread
	err := withStorageRetry(ctx, func(ctx context.Context) error {
		var innerErr error
		thread, innerErr = s.threads.FindByID(ctx, id)
		return innerErr
	})
	return thread, err
}

func (s *DiscussionService) replaceThread(ctx context.Context, thread *models.Thread) error {
	return withStorageRetry(ctx, func(ctx context.Context) error {
		return s.threads.Replace(ctx, thread)
	})
}

func canModerate(thread *models.Thread, user models.UserRef) bool {
	return thread.IsModerator(user.ID) || elevatedRoles[user.Role]
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// withStorageRetry retries a storage operation exactly once when it fails
// with StorageUnavailable; every other error surfaces immediately.
func withStorageRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !models.HasCode(err, models.CodeStorageUnavailable) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return op(ctx)
}
