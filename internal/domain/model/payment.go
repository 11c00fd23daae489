package model

import (
	"strings"
	"time"

	"laundry-billing/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // receipt uploaded, awaiting review
	PaymentStatusCompleted PaymentStatus = "completed" // approved by a reviewer
	PaymentStatusFailed    PaymentStatus = "failed"    // rejected by a reviewer
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodBankTransfer
}

// Payment is one submitted or confirmed payment event for a subscription.
type Payment struct {
	ID              string          `json:"id"`
	SubscriptionID  string          `json:"subscription_id"`
	BranchID        string          `json:"branch_id"`
	Amount          decimal.Decimal `json:"amount"` // 0 until a reviewer confirms it
	Currency        string          `json:"currency"`
	Method          PaymentMethod   `json:"method"`
	Status          PaymentStatus   `json:"status"`
	ReceiptRef      *string         `json:"receipt_ref,omitempty"`
	ReviewerID      *string         `json:"reviewer_id,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	UploadedAt      time.Time       `json:"uploaded_at"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
}

// NewReceiptPayment creates the pending payment a branch user submits with a receipt.
func NewReceiptPayment(sub *Subscription, method PaymentMethod, receiptRef, currency string, now time.Time) (*Payment, error) {
	receiptRef = strings.TrimSpace(receiptRef)
	if sub == nil || sub.ID == "" || !method.Valid() || receiptRef == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Payment{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		BranchID:       sub.BranchID,
		Amount:         decimal.Zero,
		Currency:       strings.ToUpper(strings.TrimSpace(currency)),
		Method:         method,
		Status:         PaymentStatusPending,
		ReceiptRef:     &receiptRef,
		UploadedAt:     now,
	}, nil
}

// Amounts are stored as NUMERIC(12,2).
const AmountScale = 2

var maxApprovalAmount = decimal.New(1, 12-AmountScale)

// ParseApprovalAmount validates a reviewer-entered amount. It must be numeric, strictly
// positive, have at most two decimal places and fit the stored precision.
func ParseApprovalAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(AmountScale)) || amount.GreaterThanOrEqual(maxApprovalAmount) {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return amount.Round(AmountScale), nil
}

// Complete records a reviewer approval.
func (p *Payment) Complete(amount decimal.Decimal, reviewerID string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return domain.ErrPaymentNotPending
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	p.Status = PaymentStatusCompleted
	p.Amount = amount
	p.ReviewerID = &reviewerID
	p.ReviewedAt = &now
	return nil
}

// Fail records a reviewer rejection.
func (p *Payment) Fail(reason, reviewerID string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return domain.ErrPaymentNotPending
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.ErrRejectionReasonRequired
	}
	p.Status = PaymentStatusFailed
	p.RejectionReason = &reason
	p.ReviewerID = &reviewerID
	p.ReviewedAt = &now
	return nil
}
