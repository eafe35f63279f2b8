package server

import (
	"agora/internal/models"
	"agora/internal/service"
	"agora/internal/store"

	"github.com/gofiber/fiber/v2"
)

// CreateThreadRequest is the request body for creating a thread.
type CreateThreadRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// CreateThread handles POST /api/threads
func (s *Server) CreateThread(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	var req CreateThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	thread, err := s.discussions.CreateThread(c.UserContext(), service.CreateThreadInput{
		Author:   user,
		Title:    req.Title,
		Body:     req.Body,
		Category: req.Category,
		Tags:     req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(thread)
}

// ListThreads handles GET /api/threads
func (s *Server) ListThreads(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	var pinned, featured *bool
	if c.Query("pinned") != "" {
		v := c.QueryBool("pinned")
		pinned = &v
	}
	if c.Query("featured") != "" {
		v := c.QueryBool("featured")
		featured = &v
	}

	threads, err := s.discussions.ListThreads(c.UserContext(), store.ThreadQuery{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Status:   c.Query("status"),
		Pinned:   pinned,
		Featured: featured,
		Sort:     c.Query("sort", store.SortRecentActivity),
		Skip:     p.Offset,
		Limit:    p.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"threads": threads,
		"limit":   p.Limit,
		"offset":  p.Offset,
	})
}

// GetThread handles GET /api/threads/:id
func (s *Server) GetThread(c *fiber.Ctx) error {
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}

	thread, err := s.discussions.GetThread(c.UserContext(), threadID)
	if err != nil {
		return respondError(c, err)
	}

	// Soft-deleted posts are filtered at the edge; they still count in totals.
	view := *thread
	view.Posts = thread.VisiblePosts()
	return c.JSON(view)
}

// AddPostRequest is the request body for adding a post.
type AddPostRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id"`
}

// AddPost handles POST /api/threads/:id/posts
func (s *Server) AddPost(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}

	var req AddPostRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	thread, post, err := s.discussions.AddPost(c.UserContext(), service.AddPostInput{
		ThreadID: threadID,
		Author:   user,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.emitCommentActivity(user, thread, post)

	return c.Status(fiber.StatusCreated).JSON(post)
}

// EditPostRequest is the request body for editing a post.
type EditPostRequest struct {
	Content string `json:"content"`
}

// EditPost handles PUT /api/threads/:id/posts/:postId
func (s *Server) EditPost(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}
	postID, err := postParam(c)
	if err != nil {
		return nil
	}

	var req EditPostRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	post, err := s.discussions.EditPost(c.UserContext(), service.EditPostInput{
		ThreadID: threadID,
		PostID:   postID,
		EditorID: user.ID,
		Content:  req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(post)
}

// DeletePost handles DELETE /api/threads/:id/posts/:postId
func (s *Server) DeletePost(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}
	postID, err := postParam(c)
	if err != nil {
		return nil
	}

	if err := s.discussions.DeletePost(c.UserContext(), threadID, postID, user); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/threads/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}

	liked, count, err := s.discussions.ToggleLike(c.UserContext(), threadID, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	if liked {
		s.emitLikeActivity(user, threadID)
	}

	return c.JSON(fiber.Map{
		"liked":      liked,
		"like_count": count,
	})
}

// ToggleBookmark handles POST /api/threads/:id/bookmark
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}

	bookmarked, count, err := s.discussions.ToggleBookmark(c.UserContext(), threadID, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"bookmarked":     bookmarked,
		"bookmark_count": count,
	})
}

// ToggleReactionRequest is the request body for toggling a reaction.
type ToggleReactionRequest struct {
	Type string `json:"type"`
}

// ToggleReaction handles POST /api/threads/:id/posts/:postId/reactions
func (s *Server) ToggleReaction(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}
	postID, err := postParam(c)
	if err != nil {
		return nil
	}

	var req ToggleReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	post, added, err := s.discussions.ToggleReaction(c.UserContext(), threadID, postID, user.ID, req.Type)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"added":     added,
		"reactions": post.ReactionCounts(),
	})
}

// AcceptAnswer handles POST /api/threads/:id/posts/:postId/accept
func (s *Server) AcceptAnswer(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}
	postID, err := postParam(c)
	if err != nil {
		return nil
	}

	thread, err := s.discussions.AcceptAnswer(c.UserContext(), threadID, user.ID, postID)
	if err != nil {
		return respondError(c, err)
	}

	if post := thread.FindPost(postID); post != nil {
		s.emitAnswerAccepted(user, thread, post)
	}

	return c.JSON(thread)
}

// CloseThread handles POST /api/threads/:id/close
func (s *Server) CloseThread(c *fiber.Ctx) error {
	return s.moderationAction(c, func(user models.UserRef, threadID string) (*models.Thread, error) {
		return s.discussions.CloseThread(c.UserContext(), threadID, user)
	})
}

// SetLocked handles POST /api/threads/:id/lock
func (s *Server) SetLocked(c *fiber.Ctx) error {
	locked := c.QueryBool("locked", true)
	return s.moderationAction(c, func(user models.UserRef, threadID string) (*models.Thread, error) {
		return s.discussions.SetLocked(c.UserContext(), threadID, user, locked)
	})
}

// SetPinned handles POST /api/threads/:id/pin
func (s *Server) SetPinned(c *fiber.Ctx) error {
	pinned := c.QueryBool("pinned", true)
	return s.moderationAction(c, func(user models.UserRef, threadID string) (*models.Thread, error) {
		return s.discussions.SetPinned(c.UserContext(), threadID, user, pinned)
	})
}

// SetFeatured handles POST /api/threads/:id/feature
func (s *Server) SetFeatured(c *fiber.Ctx) error {
	featured := c.QueryBool("featured", true)
	return s.moderationAction(c, func(user models.UserRef, threadID string) (*models.Thread, error) {
		return s.discussions.SetFeatured(c.UserContext(), threadID, user, featured)
	})
}

// ModeratePostRequest is the request body for moderating a post.
type ModeratePostRequest struct {
	Status string `json:"status"`
}

// ModeratePost handles POST /api/threads/:id/posts/:postId/moderate
func (s *Server) ModeratePost(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}
	postID, err := postParam(c)
	if err != nil {
		return nil
	}

	var req ModeratePostRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	post, err := s.discussions.ModeratePost(c.UserContext(), threadID, postID, user, req.Status)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(post)
}

func (s *Server) moderationAction(
	c *fiber.Ctx, action func(user models.UserRef, threadID string) (*models.Thread, error),
) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	threadID, err := threadParam(c)
	if err != nil {
		return nil
	}

	thread, err := action(user, threadID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(thread)
}
