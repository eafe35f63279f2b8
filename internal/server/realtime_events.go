package server

import (
	"context"
	"log"
	"time"

	"agora/internal/models"
	"agora/internal/service"
)

// routeAsync runs the activity router off the request path. Handlers never
// block or fail on live delivery; the canonical state change is already
// persisted by the time an activity is emitted.
func (s *Server) routeAsync(activity models.Activity) {
	if s.router == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.router.RouteActivity(ctx, activity); err != nil {
			log.Printf("failed to route %s activity: %v", activity.Type, err)
		}
	}()
}

// emitCommentActivity emits a comment activity for a new post. Nested replies
// target the parent post so its author is the one notified; top-level posts
// target the thread.
func (s *Server) emitCommentActivity(actor models.UserRef, thread *models.Thread, post *models.Post) {
	activity := models.Activity{
		Type:      models.ActivityComment,
		Actor:     actor,
		Timestamp: time.Now(),
		IsLive:    true,
		Metadata:  map[string]string{"thread_title": thread.Title},
	}
	if post.ParentID != nil {
		activity.TargetType = models.TargetPost
		activity.TargetID = thread.ID + "/" + *post.ParentID
	} else {
		activity.TargetType = models.TargetThread
		activity.TargetID = thread.ID
	}
	s.routeAsync(activity)
}

// emitLikeActivity emits a like activity targeting the thread.
func (s *Server) emitLikeActivity(actor models.UserRef, threadID string) {
	s.routeAsync(models.Activity{
		Type:       models.ActivityLike,
		Actor:      actor,
		TargetType: models.TargetThread,
		TargetID:   threadID,
		Timestamp:  time.Now(),
		IsLive:     true,
	})
}

// emitAnswerAccepted notifies the answer's author durably and pushes a live
// update. Accepting your own answer stays silent.
func (s *Server) emitAnswerAccepted(actor models.UserRef, thread *models.Thread, post *models.Post) {
	if post.Author.ID == actor.ID {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, _, err := s.notifications.Notify(ctx, service.NotifyInput{
			Recipient: post.Author.ID,
			Sender:    &actor,
			Type:      models.NotificationAnswered,
			Title:     "Answer accepted",
			Message:   "Your answer on \"" + thread.Title + "\" was accepted",
			Data:      models.NotificationData{ThreadID: thread.ID, PostID: post.ID},
			Priority:  models.PriorityHigh,
			Category:  "engagement",
		})
		if err != nil {
			log.Printf("failed to persist answer-accepted notification: %v", err)
			return
		}

		if s.broadcaster != nil {
			event := models.LiveEvent{
				Kind:      models.EventActivityUpdate,
				Type:      models.NotificationAnswered,
				Actor:     actor,
				Target:    models.TargetThread + ":" + thread.ID,
				Timestamp: time.Now(),
			}
			if err := s.broadcaster.SendToUsers(ctx, []string{post.Author.ID}, event); err != nil {
				log.Printf("failed to push answer-accepted event: %v", err)
			}
		}
	}()
}
