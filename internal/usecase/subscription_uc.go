package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/infra/logging"
	"laundry-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// ProvisionTrial starts the single trial subscription a branch is allowed.
	ProvisionTrial(ctx context.Context, branchID, planID string, interval model.BillingInterval) (*model.Subscription, error)
	GetByBranch(ctx context.Context, branchID string) (*model.Subscription, error)
	// Cancel is an owner action. Cancelled subscriptions are never evaluated again.
	Cancel(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	// StatusCounts returns the subscription count per status and refreshes the status gauge.
	StatusCounts(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
	now   func() time.Time
	log   *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, plans repository.PlanRepository, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{subs: subs, plans: plans, now: time.Now, log: &l}
}

// WithClock replaces the time source. Used by tests.
func (u *subscriptionUC) WithClock(now func() time.Time) *subscriptionUC {
	u.now = now
	return u
}

func (u *subscriptionUC) ProvisionTrial(ctx context.Context, branchID, planID string, interval model.BillingInterval) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.ProvisionTrial")()
	existing, err := u.subs.FindByBranch(ctx, repository.NoTX, branchID)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrAlreadyExists
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	sub, err := model.NewTrialSubscription(branchID, plan, interval, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	u.log.Info().Str("subscription_id", sub.ID).Str("branch_id", branchID).Time("trial_ends_at", *sub.TrialEndsAt).Msg("trial provisioned")
	return sub, nil
}

func (u *subscriptionUC) GetByBranch(ctx context.Context, branchID string) (*model.Subscription, error) {
	return u.subs.FindByBranch(ctx, repository.NoTX, branchID)
}

func (u *subscriptionUC) Cancel(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Cancel")()
	sub, err := u.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	changed, err := u.subs.Cancel(ctx, repository.NoTX, subscriptionID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domain.ErrSubscriptionCancelled
	}
	metrics.IncTransition(string(sub.Status), string(model.SubscriptionStatusCancelled))
	sub.Status = model.SubscriptionStatusCancelled
	sub.UpdatedAt = now
	u.log.Info().Str("subscription_id", sub.ID).Msg("subscription cancelled")
	return sub, nil
}

func (u *subscriptionUC) StatusCounts(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	counts, err := u.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	for _, s := range model.AllSubscriptionStatuses {
		metrics.SetSubscriptionCount(string(s), counts[s])
	}
	return counts, nil
}
