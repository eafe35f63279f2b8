package service

import (
	"context"
	"time"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/store"

	"github.com/google/uuid"
)

// Identical notifications inside this window collapse into the earlier record.
const dedupWindow = time.Hour

const defaultPurgeInterval = 10 * time.Minute

// NotificationService owns durable per-user notifications: creation with
// dedup, read-state transitions and expiry cleanup.
type NotificationService struct {
	notifications store.NotificationStore
	now           func() time.Time

	purgeCancel context.CancelFunc
	purgeDone   chan struct{}
}

// NewNotificationService creates a NotificationService backed by the given store.
func NewNotificationService(notifications store.NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications, now: time.Now}
}

// NotifyInput carries the fields for a new notification.
type NotifyInput struct {
	Recipient      string
	Sender         *models.UserRef
	Type           string
	Title          string
	Message        string
	Data           models.NotificationData
	Priority       string
	Category       string
	ActionRequired bool
	TTL            time.Duration
}

// Notify persists a notification unless an identical one (same recipient,
// type, thread and expert references) was created within the last hour. The
// deduplicated case returns the earlier record and created=false.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, bool, error) {
	ctx, span := observability.TraceServiceCall(ctx, "notification", "Notify")
	defer span.End()

	if in.Recipient == "" {
		return nil, false, models.NewValidationError("Recipient is required")
	}
	if !models.ValidNotificationTypes[in.Type] {
		return nil, false, models.NewValidationError("Unrecognized notification type")
	}
	if in.Title == "" {
		return nil, false, models.NewValidationError("Title is required")
	}

	now := s.now()
	key := store.DedupKey{
		Recipient: in.Recipient,
		Type:      in.Type,
		ThreadID:  in.Data.ThreadID,
		ExpertID:  in.Data.ExpertID,
	}

	var existing *models.Notification
	err := withStorageRetry(ctx, func(ctx context.Context) error {
		var innerErr error
		existing, innerErr = s.notifications.FindRecentDuplicate(ctx, key, now.Add(-dedupWindow))
		return innerErr
	})
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		observability.NotificationsDeduplicated.WithLabelValues(in.Type).Inc()
		return existing, false, nil
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	n := &models.Notification{
		ID:             uuid.NewString(),
		Recipient:      in.Recipient,
		Sender:         in.Sender,
		Type:           in.Type,
		Title:          in.Title,
		Message:        in.Message,
		Data:           in.Data,
		Priority:       priority,
		Status:         models.NotificationUnread,
		Category:       in.Category,
		ActionRequired: in.ActionRequired,
		CreatedAt:      now,
	}
	if in.TTL > 0 {
		expires := now.Add(in.TTL)
		n.ExpiresAt = &expires
	}

	if err := withStorageRetry(ctx, func(ctx context.Context) error {
		return s.notifications.Insert(ctx, n)
	}); err != nil {
		return nil, false, err
	}

	observability.NotificationsCreated.WithLabelValues(in.Type).Inc()
	return n, true, nil
}

// List returns the recipient's notifications newest first, excluding expired
// records.
func (s *NotificationService) List(
	ctx context.Context, recipient string, f store.NotificationFilter,
) ([]*models.Notification, error) {
	var out []*models.Notification
	err := withStorageRetry(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = s.notifications.List(ctx, recipient, f, s.now())
		return innerErr
	})
	return out, err
}

// UnreadCount returns the recipient's live unread count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	var n int64
	err := withStorageRetry(ctx, func(ctx context.Context) error {
		var innerErr error
		n, innerErr = s.notifications.UnreadCount(ctx, recipient, s.now())
		return innerErr
	})
	return n, err
}

// MarkRead transitions a notification to read. The store scopes the update to
// the recipient so another user's id yields NotFound rather than a leak.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipient string) error {
	now := s.now()
	return withStorageRetry(ctx, func(ctx context.Context) error {
		return s.notifications.UpdateStatus(ctx, id, recipient, models.NotificationRead, &now)
	})
}

// MarkAllRead marks every unread notification read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	var n int64
	now := s.now()
	err := withStorageRetry(ctx, func(ctx context.Context) error {
		var innerErr error
		n, innerErr = s.notifications.MarkAllRead(ctx, recipient, now)
		return innerErr
	})
	return n, err
}

// Archive transitions a notification to archived.
func (s *NotificationService) Archive(ctx context.Context, id, recipient string) error {
	return withStorageRetry(ctx, func(ctx context.Context) error {
		return s.notifications.UpdateStatus(ctx, id, recipient, models.NotificationArchived, nil)
	})
}

// Delete removes a notification permanently.
func (s *NotificationService) Delete(ctx context.Context, id, recipient string) error {
	return withStorageRetry(ctx, func(ctx context.Context) error {
		return s.notifications.Delete(ctx, id, recipient)
	})
}

// PurgeExpired removes all expired notifications and returns the count.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.notifications.PurgeExpired(ctx, s.now())
	if n > 0 {
		observability.NotificationsPurged.Add(float64(n))
	}
	return n, err
}

// StartPurgeLoop runs PurgeExpired on a ticker until Stop or ctx cancellation.
func (s *NotificationService) StartPurgeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	s.purgeCancel = cancel
	s.purgeDone = make(chan struct{})

	go func() {
		defer close(s.purgeDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.PurgeExpired(ctx); err != nil {
					observability.GlobalLogger.Warn("notification purge failed", "error", err)
				} else if n > 0 {
					observability.GlobalLogger.Debug("purged expired notifications", "count", n)
				}
			}
		}
	}()
}

// Stop halts the purge loop and waits for it to exit.
func (s *NotificationService) Stop() {
	if s.purgeCancel == nil {
		return
	}
	s.purgeCancel()
	<-s.purgeDone
	s.purgeCancel = nil
}
