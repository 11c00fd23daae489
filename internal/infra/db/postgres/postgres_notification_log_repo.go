package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

type notificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) *notificationLogRepo {
	return &notificationLogRepo{pool: pool}
}

func (r *notificationLogRepo) Create(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	const q = `
INSERT INTO notifications (
  id, subscription_id, branch_id, type, recipient_email, channel, status,
  subject, body, created_at, sent_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	_, err := execSQL(ctx, r.pool, tx, q,
		n.ID, n.SubscriptionID, n.BranchID, n.Type, n.RecipientEmail, n.Channel, n.Status,
		n.Subject, n.Body, n.CreatedAt, n.SentAt,
	)
	return err
}

func (r *notificationLogRepo) MarkSent(ctx context.Context, tx repository.Tx, id string, sentAt time.Time) error {
	const q = `UPDATE notifications SET status='sent', sent_at=$2 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExistsSince counts pending rows too: a send that failed still blocks a retry inside the window.
func (r *notificationLogRepo) ExistsSince(ctx context.Context, tx repository.Tx, subscriptionID string, kind model.NotificationType, since time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM notifications
   WHERE subscription_id=$1 AND type=$2 AND created_at >= $3
);`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, kind, since)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, scanError(err)
	}
	return exists, nil
}
