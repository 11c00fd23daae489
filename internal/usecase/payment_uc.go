package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/infra/logging"
	"laundry-billing/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const defaultPendingReviewLimit = 100

type PaymentUseCase interface {
	// Submit records an uploaded receipt against the branch's subscription.
	Submit(ctx context.Context, branchID string, method model.PaymentMethod, receiptRef, currency string) (*model.Payment, error)
	// ListPendingReview returns receipts awaiting an owner decision, oldest first.
	ListPendingReview(ctx context.Context, limit int) ([]*model.Payment, error)
	// Approve completes the payment and reactivates its subscription atomically.
	Approve(ctx context.Context, paymentID, rawAmount, reviewerID string) (*model.Payment, *model.Subscription, error)
	// Reject fails the payment. The subscription is left as is.
	Reject(ctx context.Context, paymentID, reason, reviewerID string) (*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	tm       repository.TransactionManager
	currency string
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	defaultCurrency string,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{payments: payments, subs: subs, plans: plans, tm: tm, currency: defaultCurrency, now: time.Now, log: &l}
}

// WithClock replaces the time source. Used by tests.
func (u *paymentUC) WithClock(now func() time.Time) *paymentUC {
	u.now = now
	return u
}

func (u *paymentUC) Submit(ctx context.Context, branchID string, method model.PaymentMethod, receiptRef, currency string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Submit")()
	sub, err := u.subs.FindByBranch(ctx, repository.NoTX, branchID)
	if err != nil {
		return nil, err
	}
	if sub.Status == model.SubscriptionStatusCancelled {
		return nil, domain.ErrSubscriptionCancelled
	}
	if currency == "" && sub.PlanID != nil {
		plan, err := u.plans.FindByID(ctx, repository.NoTX, *sub.PlanID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if plan != nil {
			currency = plan.Currency
		}
	}
	if currency == "" {
		currency = u.currency
	}

	p, err := model.NewReceiptPayment(sub, method, receiptRef, currency, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment("submitted")
	u.log.Info().Str("payment_id", p.ID).Str("branch_id", branchID).Msg("payment receipt submitted")
	return p, nil
}

func (u *paymentUC) ListPendingReview(ctx context.Context, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = defaultPendingReviewLimit
	}
	return u.payments.ListPendingReview(ctx, repository.NoTX, limit)
}

func (u *paymentUC) Approve(ctx context.Context, paymentID, rawAmount, reviewerID string) (*model.Payment, *model.Subscription, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Approve")()
	amount, err := model.ParseApprovalAmount(rawAmount)
	if err != nil {
		return nil, nil, err
	}

	now := u.now()
	var (
		payment *model.Payment
		sub     *model.Subscription
		from    model.SubscriptionStatus
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if err := p.Complete(amount, reviewerID, now); err != nil {
			return err
		}
		ok, err := u.payments.UpdateReviewIfPending(ctx, tx, p)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPaymentNotPending
		}

		s, err := u.subs.FindByID(ctx, tx, p.SubscriptionID)
		if err != nil {
			return fmt.Errorf("load subscription %s: %w", p.SubscriptionID, err)
		}
		if s.Status == model.SubscriptionStatusCancelled {
			return domain.ErrSubscriptionCancelled
		}
		from = s.Status
		s.Reactivate(now)
		if err := u.subs.Reactivate(ctx, tx, s.ID, *s.CurrentPeriodEnd, now); err != nil {
			return err
		}
		payment, sub = p, s
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue(payment.Currency, payment.Amount.InexactFloat64())
	if from != model.SubscriptionStatusActive {
		metrics.IncTransition(string(from), string(model.SubscriptionStatusActive))
	}
	u.log.Info().
		Str("payment_id", payment.ID).
		Str("subscription_id", sub.ID).
		Str("amount", payment.Amount.String()).
		Str("reviewer_id", reviewerID).
		Msg("payment approved")
	return payment, sub, nil
}

func (u *paymentUC) Reject(ctx context.Context, paymentID, reason, reviewerID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reject")()
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrRejectionReasonRequired
	}
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if err := p.Fail(reason, reviewerID, u.now()); err != nil {
		return nil, err
	}
	ok, err := u.payments.UpdateReviewIfPending(ctx, repository.NoTX, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrPaymentNotPending
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	u.log.Info().Str("payment_id", p.ID).Str("reviewer_id", reviewerID).Msg("payment rejected")
	return p, nil
}
