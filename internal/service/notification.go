package service

import (
	"context"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/telemetry"
)

// NotificationRepositoryInterface defines the repository interface for durable notifications
type NotificationRepositoryInterface interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []int64) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID string, id int64) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

const defaultNotificationLimit = 50

// NotificationService is the durable side of notification delivery: the
// poll endpoint clients fall back to when they miss realtime pushes.
type NotificationService struct {
	repo NotificationRepositoryInterface
}

func NewNotificationService(repo NotificationRepositoryInterface) *NotificationService {
	return &NotificationService{repo: repo}
}

type ListNotificationsInput struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]*domain.Notification, error) {
	ctx, span := telemetry.StartSpan(ctx, "NotificationService.List", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list",
	})
	defer span.End()

	limit := input.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	return s.repo.ListByUser(ctx, input.UserID, input.UnreadOnly, limit)
}

// MarkRead marks the given notifications as read and returns how many
// rows changed. An empty id list marks everything read.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "NotificationService.MarkRead", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "mark_read",
	})
	defer span.End()

	if len(ids) == 0 {
		return s.repo.MarkAllRead(ctx, userID)
	}
	return s.repo.MarkRead(ctx, userID, ids)
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID string, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "NotificationService.Delete", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "delete",
	})
	defer span.End()

	return s.repo.Delete(ctx, userID, id)
}

// CountUnread returns the user's unread notification count.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
