package repository

import (
	"context"
	"time"

	"laundry-billing/internal/domain/model"
)

// -----------------------------
// Notifications Log
// -----------------------------

type NotificationLogRepository interface {
	// Create stores a new notification record.
	Create(ctx context.Context, tx Tx, n *model.Notification) error
	// MarkSent flags a record as delivered.
	MarkSent(ctx context.Context, tx Tx, id string, sentAt time.Time) error
	// ExistsSince reports whether a record of this type was created for the subscription at or after since.
	ExistsSince(ctx context.Context, tx Tx, subscriptionID string, kind model.NotificationType, since time.Time) (bool, error)
}
