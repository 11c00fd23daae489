//go:build !integration

package api_test

import (
	"context"
	"time"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
)

type fakeBilling struct {
	got    []model.RunRequest
	report *model.RunReport
	err    error
}

func (f *fakeBilling) Run(ctx context.Context, req model.RunRequest) (*model.RunReport, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &model.RunReport{RunID: "01HRUN", Manual: req.Manual(), Errors: []string{}}, nil
}

type fakePayments struct {
	SubmitFunc  func(branchID string, method model.PaymentMethod, receiptRef, currency string) (*model.Payment, error)
	ApproveFunc func(paymentID, rawAmount, reviewerID string) (*model.Payment, *model.Subscription, error)
	RejectFunc  func(paymentID, reason, reviewerID string) (*model.Payment, error)
	pending     []*model.Payment
	lastLimit   int
}

func (f *fakePayments) Submit(ctx context.Context, branchID string, method model.PaymentMethod, receiptRef, currency string) (*model.Payment, error) {
	return f.SubmitFunc(branchID, method, receiptRef, currency)
}
func (f *fakePayments) ListPendingReview(ctx context.Context, limit int) ([]*model.Payment, error) {
	f.lastLimit = limit
	return f.pending, nil
}
func (f *fakePayments) Approve(ctx context.Context, paymentID, rawAmount, reviewerID string) (*model.Payment, *model.Subscription, error) {
	return f.ApproveFunc(paymentID, rawAmount, reviewerID)
}
func (f *fakePayments) Reject(ctx context.Context, paymentID, reason, reviewerID string) (*model.Payment, error) {
	return f.RejectFunc(paymentID, reason, reviewerID)
}

type fakeSubscriptions struct {
	byBranch map[string]*model.Subscription
}

func (f *fakeSubscriptions) ProvisionTrial(ctx context.Context, branchID, planID string, interval model.BillingInterval) (*model.Subscription, error) {
	if _, ok := f.byBranch[branchID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	if planID != "plan-1" {
		return nil, domain.ErrNotFound
	}
	end := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	pid := planID
	s := &model.Subscription{ID: "sub-new", BranchID: branchID, PlanID: &pid, Status: model.SubscriptionStatusTrial,
		BillingInterval: model.BillingIntervalMonthly, TrialEndsAt: &end}
	f.byBranch[branchID] = s
	return s, nil
}
func (f *fakeSubscriptions) GetByBranch(ctx context.Context, branchID string) (*model.Subscription, error) {
	s, ok := f.byBranch[branchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}
func (f *fakeSubscriptions) Cancel(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	for _, s := range f.byBranch {
		if s.ID == subscriptionID {
			if s.Status == model.SubscriptionStatusCancelled {
				return nil, domain.ErrSubscriptionCancelled
			}
			s.Status = model.SubscriptionStatusCancelled
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeSubscriptions) StatusCounts(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return map[model.SubscriptionStatus]int{}, nil
}

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, nil
}

// blockingBilling holds the run until the request context ends, then returns what it managed.
type blockingBilling struct {
	deadline    time.Time
	hasDeadline bool
}

func (b *blockingBilling) Run(ctx context.Context, req model.RunRequest) (*model.RunReport, error) {
	b.deadline, b.hasDeadline = ctx.Deadline()
	<-ctx.Done()
	return &model.RunReport{RunID: "01HSLOW", Manual: req.Manual(), TrialsExpired: 7, Errors: []string{}}, ctx.Err()
}
