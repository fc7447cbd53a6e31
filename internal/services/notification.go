package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
	"go.uber.org/zap"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	ListByRecipient(ctx context.Context, uid string) ([]types.Notification, error)
	Create(ctx context.Context, n types.Notification) (types.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, uid string) error
	GetRecipient(ctx context.Context, id string) (string, error)
}

// NotificationService encapsulates the notification inbox. Records are
// created by the relay worker, never deleted, and only the read flag is
// ever mutated.
type NotificationService struct {
	repo NotificationRepository
	bus  Publisher
	log  *zap.SugaredLogger
}

func NewNotificationService(repo NotificationRepository, bus Publisher, log *zap.SugaredLogger) *NotificationService {
	return &NotificationService{repo: repo, bus: bus, log: log}
}

func (s *NotificationService) ListForUser(ctx context.Context, uid string) ([]types.Notification, error) {
	return s.repo.ListByRecipient(ctx, uid)
}

// UnreadCount returns how many of uid's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, uid string) (int, error) {
	notifications, err := s.repo.ListByRecipient(ctx, uid)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range notifications {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Create inserts a notification record. Called by the relay worker.
func (s *NotificationService) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	if n.UserID == "" || n.ProblemID == "" {
		return types.Notification{}, fmt.Errorf("recipient and problem are required: %w", store.ErrInvalid)
	}
	n.ID = uuid.NewString()
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return types.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	s.publishNotificationChange(ctx, created.UserID)
	return created, nil
}

// MarkRead flips one notification to read. Only the recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, uid, id string) error {
	recipient, err := s.repo.GetRecipient(ctx, id)
	if err != nil {
		return err
	}
	if recipient != uid {
		return fmt.Errorf("not the recipient: %w", store.ErrForbidden)
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return err
	}
	s.publishNotificationChange(ctx, uid)
	return nil
}

// MarkAllRead flips every unread notification for uid in one write.
func (s *NotificationService) MarkAllRead(ctx context.Context, uid string) error {
	if err := s.repo.MarkAllRead(ctx, uid); err != nil {
		return err
	}
	s.publishNotificationChange(ctx, uid)
	return nil
}

func (s *NotificationService) publishNotificationChange(ctx context.Context, uid string) {
	publishChange(ctx, s.bus, s.log, eventsNotificationChannel, map[string]string{attrUser: uid})
}
