package service

import (
	"context"
	"strings"

	"agora/internal/models"
	"agora/internal/observability"

	"github.com/google/uuid"
)

// LiveBroadcaster is the push surface the router needs from the live layer.
type LiveBroadcaster interface {
	Broadcast(ctx context.Context, event models.LiveEvent) error
	SendToUsers(ctx context.Context, userIDs []string, event models.LiveEvent) error
}

// OwnerLookup resolves the author of a content target so like/comment
// activities can be pointed at them. DiscussionService.ContentOwner satisfies it.
type OwnerLookup interface {
	ContentOwner(ctx context.Context, targetType, targetID string) (string, error)
}

// ActivityRouter decides, per activity type, who gets a durable notification
// and who gets a live push. Persist-then-push: the notification record is
// written before any live delivery is attempted, so a push failure never
// loses the fact.
type ActivityRouter struct {
	notifications *NotificationService
	live          LiveBroadcaster
	owners        OwnerLookup
}

// NewActivityRouter wires the router to its notification, live and lookup
// collaborators.
func NewActivityRouter(
	notifications *NotificationService, live LiveBroadcaster, owners OwnerLookup,
) *ActivityRouter {
	return &ActivityRouter{notifications: notifications, live: live, owners: owners}
}

// RouteActivity applies the routing table:
//
//	follow       -> durable notification + targeted push to the followed user
//	like/comment -> durable notification + targeted push to the content owner
//	expert_join  -> broadcast push only, no durable record
//
// Any other type returns an UnroutedActivityError so new types force an
// explicit routing decision.
func (r *ActivityRouter) RouteActivity(ctx context.Context, activity models.Activity) error {
	ctx, span := observability.TraceServiceCall(ctx, "activity_router", "RouteActivity")
	defer span.End()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}

	var err error
	switch activity.Type {
	case models.ActivityFollow:
		err = r.routeFollow(ctx, activity)
	case models.ActivityLike:
		err = r.routeToOwner(ctx, activity, models.NotificationLiked,
			activity.Actor.DisplayName+" liked your content")
	case models.ActivityComment:
		err = r.routeToOwner(ctx, activity, models.NotificationReply,
			activity.Actor.DisplayName+" commented on your content")
	case models.ActivityExpertJoin:
		err = r.routeExpertJoin(ctx, activity)
	default:
		observability.ActivitiesRouted.WithLabelValues(activity.Type, "unrouted").Inc()
		return models.NewUnroutedActivityError(activity.Type)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.ActivitiesRouted.WithLabelValues(activity.Type, outcome).Inc()
	return err
}

func (r *ActivityRouter) routeFollow(ctx context.Context, activity models.Activity) error {
	if activity.TargetType != models.TargetUser || activity.TargetID == "" {
		return models.NewValidationError("follow activity requires a user target")
	}
	if activity.TargetID == activity.Actor.ID {
		return models.NewValidationError("cannot follow yourself")
	}

	_, _, err := r.notifications.Notify(ctx, NotifyInput{
		Recipient: activity.TargetID,
		Sender:    &activity.Actor,
		Type:      models.NotificationFollowed,
		Title:     "New follower",
		Message:   activity.Actor.DisplayName + " started following you",
		Data:      dataFromActivity(activity),
		Category:  "social",
	})
	if err != nil {
		return err
	}

	r.push(ctx, []string{activity.TargetID}, activity)
	return nil
}

// routeToOwner handles like and comment: resolve the content owner, notify
// them, push to them. A failed owner lookup is logged and swallowed: the
// activity itself already happened and must not be rejected for it.
func (r *ActivityRouter) routeToOwner(
	ctx context.Context, activity models.Activity, notifType, message string,
) error {
	owner, err := r.owners.ContentOwner(ctx, activity.TargetType, activity.TargetID)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "content owner lookup failed, skipping notification",
			"activity_type", activity.Type,
			"target_type", activity.TargetType,
			"target_id", activity.TargetID,
			"error", err.Error(),
		)
		return nil
	}
	if owner == activity.Actor.ID {
		// Acting on your own content never notifies you.
		return nil
	}

	_, _, err = r.notifications.Notify(ctx, NotifyInput{
		Recipient: owner,
		Sender:    &activity.Actor,
		Type:      notifType,
		Title:     titleFor(activity.Type),
		Message:   message,
		Data:      dataFromActivity(activity),
		Category:  "engagement",
	})
	if err != nil {
		return err
	}

	r.push(ctx, []string{owner}, activity)
	return nil
}

// routeExpertJoin is broadcast-only. Everyone connected sees it live; nobody
// gets a durable record, so offline users simply miss it.
func (r *ActivityRouter) routeExpertJoin(ctx context.Context, activity models.Activity) error {
	if r.live == nil {
		return nil
	}
	event := liveEventFromActivity(activity)
	if err := r.live.Broadcast(ctx, event); err != nil {
		observability.LogDeliveryFailure(ctx, "broadcast", err)
	}
	return nil
}

// push delivers the live event to the listed users. Failures are logged, not
// returned: the durable notification already landed.
func (r *ActivityRouter) push(ctx context.Context, userIDs []string, activity models.Activity) {
	if r.live == nil {
		return
	}
	event := liveEventFromActivity(activity)
	if err := r.live.SendToUsers(ctx, userIDs, event); err != nil {
		for _, userID := range userIDs {
			observability.LogDeliveryFailure(ctx, userID, err)
		}
	}
}

func liveEventFromActivity(activity models.Activity) models.LiveEvent {
	kind := models.EventNewActivity
	if !activity.IsLive {
		kind = models.EventActivityUpdate
	}
	target := activity.TargetID
	if activity.TargetType == models.TargetPost || activity.TargetType == models.TargetThread {
		target = activity.TargetType + ":" + activity.TargetID
	}
	return models.LiveEvent{
		Kind:      kind,
		Type:      activity.Type,
		Actor:     activity.Actor,
		Target:    target,
		Metadata:  activity.Metadata,
		Timestamp: activity.Timestamp,
	}
}

func dataFromActivity(activity models.Activity) models.NotificationData {
	data := models.NotificationData{Meta: activity.Metadata}
	switch activity.TargetType {
	case models.TargetThread:
		data.ThreadID = activity.TargetID
	case models.TargetPost:
		// Post targets arrive as "threadID/postID".
		if threadID, postID, ok := strings.Cut(activity.TargetID, "/"); ok {
			data.ThreadID = threadID
			data.PostID = postID
		} else {
			data.PostID = activity.TargetID
		}
	}
	return data
}

func titleFor(activityType string) string {
	switch activityType {
	case models.ActivityLike:
		return "New like"
	case models.ActivityComment:
		return "New comment"
	default:
		return "New activity"
	}
}
