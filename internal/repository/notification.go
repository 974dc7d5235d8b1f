package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crestrock/storefront/internal/model"
)

// NotificationRepository has no delete: notifications are kept and only
// their read flag changes.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context) (int64, error)
}

type pgNotificationRepo struct{ pool *pgxpool.Pool }

func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepo{pool: pool}
}

// Create keeps a caller-supplied id so replayed events map to one row.
func (r *pgNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, message, type, order_id, read, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, NOW())
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING read, created_at`,
		n.ID, n.Message, n.Type, n.OrderID,
	).Scan(&n.Read, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *pgNotificationRepo) List(ctx context.Context, unreadOnly bool, limit int) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, message, type, order_id, read, created_at FROM notifications
		 WHERE (NOT $1 OR NOT read) ORDER BY created_at DESC LIMIT $2`,
		unreadOnly, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Message, &n.Type, &n.OrderID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *pgNotificationRepo) CountUnread(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE NOT read`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (r *pgNotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgNotificationRepo) MarkAllRead(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE NOT read`)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return ct.RowsAffected(), nil
}
