package model

import (
	"time"

	"laundry-billing/internal/domain"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// AllSubscriptionStatuses lists every status in lifecycle order.
var AllSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusSuspended,
	SubscriptionStatusCancelled,
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue,
		SubscriptionStatusSuspended, SubscriptionStatusCancelled:
		return true
	}
	return false
}

type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

func (b BillingInterval) Valid() bool {
	return b == BillingIntervalMonthly || b == BillingIntervalAnnual
}

// Subscription is the billing state of a single branch. There is exactly one per branch.
type Subscription struct {
	ID               string
	BranchID         string
	PlanID           *string // nil when the plan row was removed
	Status           SubscriptionStatus
	BillingInterval  BillingInterval
	TrialEndsAt      *time.Time
	CurrentPeriodEnd *time.Time
	PastDueSince     *time.Time
	SuspendedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewTrialSubscription creates the subscription a branch receives at provisioning.
func NewTrialSubscription(branchID string, plan *Plan, interval BillingInterval, now time.Time) (*Subscription, error) {
	if branchID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if interval == "" {
		interval = BillingIntervalMonthly
	}
	if !interval.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	trialEnds := now.Add(Days(plan.TrialDays))
	planID := plan.ID
	return &Subscription{
		ID:              uuid.NewString(),
		BranchID:        branchID,
		PlanID:          &planID,
		Status:          SubscriptionStatusTrial,
		BillingInterval: interval,
		TrialEndsAt:     &trialEnds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Validate checks the per-status timestamp invariants.
func (s *Subscription) Validate() error {
	if s == nil || s.ID == "" || s.BranchID == "" || !s.Status.Valid() {
		return domain.ErrInvalidArgument
	}
	switch s.Status {
	case SubscriptionStatusTrial:
		if s.TrialEndsAt == nil {
			return domain.ErrInvalidArgument
		}
	case SubscriptionStatusPastDue:
		if s.PastDueSince == nil {
			return domain.ErrInvalidArgument
		}
	}
	return nil
}

// Reactivate moves the subscription to active with a fresh period starting at now.
// The period is always counted from the approval moment, not from the previous period end.
func (s *Subscription) Reactivate(now time.Time) {
	end := now.Add(ApprovalPeriod)
	s.Status = SubscriptionStatusActive
	s.CurrentPeriodEnd = &end
	s.PastDueSince = nil
	s.UpdatedAt = now
}

// Apply copies the effects of a transition onto the subscription.
func (s *Subscription) Apply(t Transition) {
	if !t.Changed() {
		return
	}
	s.Status = t.To
	switch t.To {
	case SubscriptionStatusPastDue:
		at := t.At
		s.PastDueSince = &at
	case SubscriptionStatusSuspended:
		at := t.At
		s.SuspendedAt = &at
	}
	s.UpdatedAt = t.At
}
