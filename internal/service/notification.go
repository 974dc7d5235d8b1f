package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/repository"
)

var ErrNotificationNotFound = errors.New("notification not found")

const defaultNotificationLimit = 50

type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// Record stores the admin notification for an event. The event id is
// reused, so a redelivered event does not create a second row.
func (s *NotificationService) Record(ctx context.Context, event model.Event) error {
	severity := event.Severity
	if !severity.Valid() {
		severity = model.NotificationInfo
	}
	n := &model.Notification{
		ID:      event.ID,
		Message: event.Message,
		Type:    severity,
		OrderID: event.OrderID,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, unreadOnly bool, limit int) (*dto.NotificationListResponse, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	list, err := s.notificationRepo.List(ctx, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.notificationRepo.CountUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	items := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewNotificationResponse(&list[i]))
	}
	return &dto.NotificationListResponse{Notifications: items, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := s.notificationRepo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	n, err := s.notificationRepo.MarkAllRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}
