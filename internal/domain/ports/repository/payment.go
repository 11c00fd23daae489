package repository

import (
	"context"

	"laundry-billing/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	// FindByID locks the row FOR UPDATE when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// ListPendingReview returns pending payments that carry a receipt, oldest first.
	ListPendingReview(ctx context.Context, tx Tx, limit int) ([]*model.Payment, error)
	// UpdateReviewIfPending persists a review decision only while the row is still pending.
	UpdateReviewIfPending(ctx context.Context, tx Tx, p *model.Payment) (bool, error)
}
