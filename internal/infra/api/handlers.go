package api

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/infra/logging"
	"laundry-billing/internal/infra/metrics"
	red "laundry-billing/internal/infra/redis"
)

// ---- DTOs ----

type runRequest struct {
	Manual bool   `json:"manual"`
	Email  string `json:"email,omitempty"`
}

type approveRequest struct {
	// Amount may be a JSON string or number; the use case validates the text.
	Amount json.RawMessage `json:"amount"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type submitPaymentRequest struct {
	Method     string `json:"method"`
	ReceiptRef string `json:"receipt_ref"`
	Currency   string `json:"currency,omitempty"`
}

type provisionRequest struct {
	PlanID          string `json:"plan_id"`
	BillingInterval string `json:"billing_interval,omitempty"`
}

type subscriptionDTO struct {
	ID               string     `json:"id"`
	BranchID         string     `json:"branch_id"`
	PlanID           *string    `json:"plan_id"`
	Status           string     `json:"status"`
	BillingInterval  string     `json:"billing_interval"`
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	PastDueSince     *time.Time `json:"past_due_since,omitempty"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toSubscriptionDTO(s *model.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ID:               s.ID,
		BranchID:         s.BranchID,
		PlanID:           s.PlanID,
		Status:           string(s.Status),
		BillingInterval:  string(s.BillingInterval),
		TrialEndsAt:      s.TrialEndsAt,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		PastDueSince:     s.PastDueSince,
		SuspendedAt:      s.SuspendedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// interruptedRunResponse carries the counts of a run that stopped early.
type interruptedRunResponse struct {
	Error   string           `json:"error"`
	TraceID string           `json:"trace_id,omitempty"`
	Report  *model.RunReport `json:"report"`
}

type approveResponse struct {
	Payment      *model.Payment  `json:"payment"`
	Subscription subscriptionDTO `json:"subscription"`
}

// ---- billing ----

func (s *Server) handleBillingRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := decodeJSON(w, r, &body, true); err != nil {
		s.fail(w, r, err)
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	if body.Email != "" {
		if _, err := mail.ParseAddress(body.Email); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "email is not a valid address")
			return
		}
	}

	caller := principalFrom(r.Context())
	if s.limiter != nil && s.opts.RunTriggerLimit > 0 {
		ok, err := s.limiter.Allow(r.Context(), red.RunTriggerKey(caller.ID), s.opts.RunTriggerLimit, time.Minute)
		if err != nil {
			s.log.Warn().Err(err).Msg("run trigger limiter unavailable")
		} else if !ok {
			metrics.IncRateLimited("billing_run")
			writeError(w, http.StatusTooManyRequests, "too many billing runs requested")
			return
		}
	}

	trigger := model.RunTriggerScheduled
	if body.Manual {
		trigger = model.RunTriggerManual
	}
	report, err := s.billing.Run(r.Context(), model.RunRequest{Trigger: trigger, EmailOverride: body.Email})
	if err != nil && report != nil {
		code := statusFor(err)
		logging.With(r.Context(), s.log).Warn().Err(err).Str("run_id", report.RunID).Msg("billing run did not finish")
		writeJSON(w, code, interruptedRunResponse{
			Error:   "billing run did not finish",
			TraceID: w.Header().Get(traceHeader),
			Report:  report,
		})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ---- payments ----

func (s *Server) handleListPendingPayments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a number")
			return
		}
		limit = n
	}
	if limit < 0 || limit > 500 {
		writeError(w, http.StatusUnprocessableEntity, "limit must be between 0 and 500")
		return
	}
	items, err := s.payUC.ListPendingReview(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*model.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleApprovePayment(w http.ResponseWriter, r *http.Request) {
	var body approveRequest
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	p, sub, err := s.payUC.Approve(r.Context(), chi.URLParam(r, "paymentID"), rawAmount(body.Amount), principalFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approveResponse{Payment: p, Subscription: toSubscriptionDTO(sub)})
}

// rawAmount returns the amount text without losing precision to float64.
func rawAmount(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func (s *Server) handleRejectPayment(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.payUC.Reject(r.Context(), chi.URLParam(r, "paymentID"), body.Reason, principalFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var body submitPaymentRequest
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	method := model.PaymentMethod(strings.TrimSpace(body.Method))
	if !method.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "method must be card or bank_transfer")
		return
	}
	p, err := s.payUC.Submit(r.Context(), chi.URLParam(r, "branchID"), method, body.ReceiptRef, body.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ---- subscriptions ----

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.GetByBranch(r.Context(), chi.URLParam(r, "branchID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(sub))
}

func (s *Server) handleProvisionTrial(w http.ResponseWriter, r *http.Request) {
	var body provisionRequest
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(body.PlanID) == "" {
		s.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	sub, err := s.subUC.ProvisionTrial(r.Context(), chi.URLParam(r, "branchID"), body.PlanID, model.BillingInterval(body.BillingInterval))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionDTO(sub))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.Cancel(r.Context(), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(sub))
}
