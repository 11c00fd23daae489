package model

import (
	"strings"
	"time"

	"laundry-billing/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultGracePeriodDays applies when a subscription has no plan row to read from.
const DefaultGracePeriodDays = 5

// Plan is platform-owned reference data; the billing engine only reads it.
type Plan struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	PriceMonthly    decimal.Decimal `json:"price_monthly"`
	PriceAnnual     decimal.Decimal `json:"price_annual"`
	Currency        string          `json:"currency"`
	TrialDays       int             `json:"trial_days"`
	GracePeriodDays int             `json:"grace_period_days"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// GraceDays returns the plan's grace period, falling back to DefaultGracePeriodDays for a missing plan.
func (p *Plan) GraceDays() int {
	if p.IsZero() {
		return DefaultGracePeriodDays
	}
	return p.GracePeriodDays
}

// PriceFor returns the list price for the given billing interval.
func (p *Plan) PriceFor(interval BillingInterval) decimal.Decimal {
	if interval == BillingIntervalAnnual {
		return p.PriceAnnual
	}
	return p.PriceMonthly
}

// NewPlan validates and constructs a plan.
func NewPlan(name string, monthly, annual decimal.Decimal, currency string, trialDays, graceDays int) (*Plan, error) {
	name = strings.TrimSpace(name)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if name == "" || currency == "" || trialDays < 0 || graceDays < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if monthly.IsNegative() || annual.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:              uuid.NewString(),
		Name:            name,
		PriceMonthly:    monthly,
		PriceAnnual:     annual,
		Currency:        currency,
		TrialDays:       trialDays,
		GracePeriodDays: graceDays,
		CreatedAt:       time.Now(),
	}, nil
}
