package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/brackets"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/repositories"
)

// NotificationService — приёмник событий жизненного цикла турнира.
// Notify работает по принципу fire-and-forget: сбой доставки логируется,
// но никогда не прерывает вызвавшую операцию.
type NotificationService interface {
	Notify(ctx context.Context, userID int, title, message string, notifType models.NotificationType)
	ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	hub              *brackets.Hub
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		hub:              hub,
		logger:           logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, userID int, title, message string, notifType models.NotificationType) {
	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notifType,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist notification",
			slog.Int("user_id", userID),
			slog.String("type", string(notifType)),
			slog.Any("error", err),
		)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(fmt.Sprintf("user_%d", userID), brackets.WebSocketMessage{
			Type:    "NOTIFICATION",
			Payload: n,
		})
	}
}

func (s *notificationService) ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]*models.Notification, error) {
	notifications, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID int) error {
	if err := s.notificationRepo.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
