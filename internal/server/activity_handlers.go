package server

import (
	"time"

	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// PostActivityRequest is the ingestion body for collaborating services
// (follow graphs, expert onboarding) that emit activities into the router.
type PostActivityRequest struct {
	Type       string            `json:"type"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Metadata   map[string]string `json:"metadata"`
}

// PostActivity handles POST /api/activities. Unlike the async emission from
// discussion handlers, ingestion is synchronous so callers learn about
// unrouted types immediately.
func (s *Server) PostActivity(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	var req PostActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if req.Type == "" {
		return respondError(c, models.NewValidationError("Activity type is required"))
	}

	activity := models.Activity{
		Type:       req.Type,
		Actor:      user,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Metadata:   req.Metadata,
		Timestamp:  time.Now(),
		IsLive:     true,
	}

	if err := s.router.RouteActivity(c.UserContext(), activity); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"routed": true})
}

// OnlineUsers handles GET /api/presence/online
func (s *Server) OnlineUsers(c *fiber.Ctx) error {
	if _, err := s.currentUser(c); err != nil {
		return nil
	}
	return c.JSON(fiber.Map{
		"online":      s.hub.ConnectedUserIDs(),
		"connections": s.hub.ConnectedCount(),
	})
}
