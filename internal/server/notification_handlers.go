package server

import (
	"agora/internal/store"

	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	p := parsePagination(c, 20)

	list, err := s.notifications.List(c.UserContext(), user.ID, store.NotificationFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Skip:     p.Offset,
		Limit:    p.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": list,
		"limit":         p.Limit,
		"offset":        p.Offset,
	})
}

// UnreadCount handles GET /api/notifications/unread-count
func (s *Server) UnreadCount(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	count, err := s.notifications.UnreadCount(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// MarkRead handles POST /api/notifications/:id/read
func (s *Server) MarkRead(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	if err := s.notifications.MarkRead(c.UserContext(), c.Params("id"), user.ID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (s *Server) MarkAllRead(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	count, err := s.notifications.MarkAllRead(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"marked_read": count})
}

// ArchiveNotification handles POST /api/notifications/:id/archive
func (s *Server) ArchiveNotification(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	if err := s.notifications.Archive(c.UserContext(), c.Params("id"), user.ID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteNotification handles DELETE /api/notifications/:id
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	if err := s.notifications.Delete(c.UserContext(), c.Params("id"), user.ID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
