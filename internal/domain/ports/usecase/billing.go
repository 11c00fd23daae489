package usecase

import (
	"context"

	"laundry-billing/internal/domain/model"
)

// BillingRunner is what background workers and the manual trigger need from the billing engine.
type BillingRunner interface {
	Run(ctx context.Context, req model.RunRequest) (*model.RunReport, error)
}
