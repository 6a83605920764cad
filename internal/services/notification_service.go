package services

import (
	"context"
	"log/slog"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/anonto42/pulse/backend/internal/realtime"
	"github.com/anonto42/pulse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// EmitRequest describes a notification to append
type EmitRequest struct {
	RecipientID    primitive.ObjectID
	ActorID        primitive.ObjectID
	Type           models.NotificationType
	SourceEntityID primitive.ObjectID
	TargetID       primitive.ObjectID
	Message        string
}

// Notifier appends notifications. ToggleCoordinator and CommentService depend on it.
type Notifier interface {
	Emit(ctx context.Context, req EmitRequest) (primitive.ObjectID, error)
}

// NotificationPage is one page of a user's inbox
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
}

type NotificationService struct {
	repo      repositories.NotificationRepository
	publisher realtime.Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

func NewNotificationService(repo repositories.NotificationRepository, publisher realtime.Publisher, metrics *Metrics, logger *slog.Logger) *NotificationService {
	if publisher == nil {
		publisher = realtime.NoopPublisher{}
	}
	return &NotificationService{repo: repo, publisher: publisher, metrics: metrics, logger: logger}
}

// Emit stores the notification and then pushes it to the recipient's realtime channel.
// Only the store write can fail the call.
func (s *NotificationService) Emit(ctx context.Context, req EmitRequest) (primitive.ObjectID, error) {
	if req.RecipientID.IsZero() {
		return primitive.NilObjectID, &ValidationError{Field: "recipient_id", Message: "is required"}
	}
	switch req.Type {
	case models.NotificationFollow, models.NotificationLike, models.NotificationComment:
	default:
		return primitive.NilObjectID, &ValidationError{Field: "type", Message: "unknown notification type " + string(req.Type)}
	}

	n := &models.Notification{
		RecipientID:    req.RecipientID,
		ActorID:        req.ActorID,
		Type:           req.Type,
		SourceEntityID: req.SourceEntityID,
		TargetID:       req.TargetID,
		Message:        req.Message,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.metrics.NotificationFailures.WithLabelValues("store").Inc()
		return primitive.NilObjectID, storageErr("emit notification", err)
	}
	s.metrics.NotificationsEmitted.WithLabelValues(string(n.Type)).Inc()

	if err := s.publisher.PublishNotification(ctx, n); err != nil {
		s.metrics.NotificationFailures.WithLabelValues("publish").Inc()
		s.logger.Warn("realtime publish failed", "notification_id", n.ID.Hex(), "recipient_id", n.RecipientID.Hex(), "error", err)
	}
	return n.ID, nil
}

// ListForUser returns a page of the inbox, newest first, and marks the returned unread
// notifications as read. The returned items keep the read state they had when fetched.
func (s *NotificationService) ListForUser(ctx context.Context, userID primitive.ObjectID, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	skip := int64((page - 1) * limit)
	notifications, total, err := s.repo.GetByRecipientID(ctx, userID, skip, int64(limit))
	if err != nil {
		return nil, storageErr("list notifications", err)
	}

	var unread []primitive.ObjectID
	for _, n := range notifications {
		if !n.IsRead {
			unread = append(unread, n.ID)
		}
	}
	if err := s.repo.MarkManyAsRead(ctx, userID, unread); err != nil {
		return nil, storageErr("mark notifications read", err)
	}

	return &NotificationPage{Notifications: notifications, Total: total, Page: page, Limit: limit}, nil
}

// MarkRead marks a single notification read. Marking an already-read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID primitive.ObjectID) error {
	if err := s.repo.MarkAsRead(ctx, notificationID, recipientID); err != nil {
		return notFoundOr("notification", notificationID.Hex(), "mark notification read", err)
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, storageErr("count unread notifications", err)
	}
	return count, nil
}
