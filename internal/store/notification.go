package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lucas6028/silver-server/types"
)

// NotificationRepository handles persistence for notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListByRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, uid string) ([]types.Notification, error) {
	const query = `
		SELECT id, user_id, problem_id, problem_title, assigned_by, assigned_by_name, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]types.Notification, 0)
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.ProblemID,
			&n.ProblemTitle,
			&n.AssignedBy,
			&n.AssignedByName,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	n.CreatedAt = time.Now()
	n.IsRead = false

	const query = `
		INSERT INTO notifications (id, user_id, problem_id, problem_title, assigned_by, assigned_by_name, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		n.ID,
		n.UserID,
		n.ProblemID,
		n.ProblemTitle,
		n.AssignedBy,
		n.AssignedByName,
		n.IsRead,
		n.CreatedAt,
	); err != nil {
		return types.Notification{}, err
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification for the recipient in one
// statement, the bulk equivalent of MarkRead.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, uid string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	_, err := r.db.ExecContext(ctx, query, uid)
	return err
}

// GetRecipient returns the recipient id for a notification, used by the
// service layer to reject reads of someone else's inbox.
func (r *NotificationRepository) GetRecipient(ctx context.Context, id string) (string, error) {
	const query = `SELECT user_id FROM notifications WHERE id = $1`
	var uid string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return uid, nil
}
