package repository

import (
	"context"
	"time"

	"laundry-billing/internal/domain/model"
)

// SubscriptionRepository is the port for branch subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByBranch(ctx context.Context, tx Tx, branchID string) (*model.Subscription, error)

	// ListByStatus pages subscriptions of one status ordered by id, starting after afterID.
	ListByStatus(ctx context.Context, tx Tx, status model.SubscriptionStatus, afterID string, limit int) ([]*model.Subscription, error)

	// ApplyTransition writes the transition only if the row is still in t.From.
	// It reports whether a row was changed.
	ApplyTransition(ctx context.Context, tx Tx, id string, t model.Transition) (bool, error)

	// Reactivate sets the subscription active with the given period end and clears past_due_since.
	Reactivate(ctx context.Context, tx Tx, id string, periodEnd, now time.Time) error

	// Cancel moves the subscription to cancelled unless it is already cancelled.
	Cancel(ctx context.Context, tx Tx, id string, now time.Time) (bool, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
