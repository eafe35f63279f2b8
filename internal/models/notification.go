package models

import (
	"time"
)

// Notification types form a closed enum.
const (
	NotificationReply          = "reply"
	NotificationAnswered       = "answered"
	NotificationFollowed       = "followed"
	NotificationLiked          = "liked"
	NotificationMention        = "mention"
	NotificationSystem         = "system"
	NotificationInvite         = "invite"
	NotificationResearchUpdate = "research_update"
	NotificationAchievement    = "achievement"
	NotificationMilestone      = "milestone"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification statuses.
const (
	NotificationUnread   = "unread"
	NotificationRead     = "read"
	NotificationArchived = "archived"
)

// ValidNotificationTypes enumerates the recognized notification types.
var ValidNotificationTypes = map[string]bool{
	NotificationReply:          true,
	NotificationAnswered:       true,
	NotificationFollowed:       true,
	NotificationLiked:          true,
	NotificationMention:        true,
	NotificationSystem:         true,
	NotificationInvite:         true,
	NotificationResearchUpdate: true,
	NotificationAchievement:    true,
	NotificationMilestone:      true,
}

// NotificationData is the structured payload attached to a notification.
// Each field is optional; the (ThreadID, ExpertID) pair also keys the dedup
// window. Meta carries per-type extras with statically known string values
// rather than an untyped bag.
type NotificationData struct {
	ThreadID  string            `bson:"thread_id,omitempty" json:"thread_id,omitempty"`
	PostID    string            `bson:"post_id,omitempty" json:"post_id,omitempty"`
	ExpertID  string            `bson:"expert_id,omitempty" json:"expert_id,omitempty"`
	InsightID string            `bson:"insight_id,omitempty" json:"insight_id,omitempty"`
	Meta      map[string]string `bson:"meta,omitempty" json:"meta,omitempty"`
}

// Notification is a durable per-user record. Live push is best-effort; this
// record is what an offline recipient fetches on reconnect or poll.
type Notification struct {
	ID             string           `bson:"_id" json:"id"`
	Recipient      string           `bson:"recipient" json:"recipient"`
	Sender         *UserRef         `bson:"sender,omitempty" json:"sender,omitempty"`
	Type           string           `bson:"type" json:"type"`
	Title          string           `bson:"title" json:"title"`
	Message        string           `bson:"message" json:"message"`
	Data           NotificationData `bson:"data,omitempty" json:"data,omitempty"`
	Priority       string           `bson:"priority" json:"priority"`
	Status         string           `bson:"status" json:"status"`
	Category       string           `bson:"category,omitempty" json:"category,omitempty"`
	ActionRequired bool             `bson:"action_required" json:"action_required"`
	ExpiresAt      *time.Time       `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	ReadAt         *time.Time       `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt      time.Time        `bson:"created_at" json:"created_at"`
}

// Expired reports whether the notification's TTL has passed. Expired records
// are excluded from lists and unread counts even before the purge loop
// removes them.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}
