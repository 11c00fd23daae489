package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/adapter"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/domain/ports/usecase"
	"laundry-billing/internal/infra/metrics"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// RunLockKey serialises billing runs across replicas.
const RunLockKey = "billing:run"

type BillingUseCase interface {
	usecase.BillingRunner
}

// BillingOptions tunes a billing run.
type BillingOptions struct {
	PageSize       int
	LockTTL        time.Duration
	LapseActive    bool
	ReminderPolicy model.ReminderPolicy
}

func (o BillingOptions) withDefaults() BillingOptions {
	if o.PageSize <= 0 {
		o.PageSize = 200
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	if len(o.ReminderPolicy.TrialDays) == 0 && o.ReminderPolicy.PastDueWindowDays == 0 {
		o.ReminderPolicy = model.DefaultReminderPolicy
	}
	return o
}

type billingUC struct {
	subs       repository.SubscriptionRepository
	plans      repository.PlanRepository
	dispatcher NotificationUseCase
	locker     adapter.Locker
	opts       BillingOptions
	now        func() time.Time
	log        *zerolog.Logger
}

// NewBillingUseCase wires the engine. locker may be nil, in which case runs are not serialised.
func NewBillingUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	dispatcher NotificationUseCase,
	locker adapter.Locker,
	opts BillingOptions,
	logger *zerolog.Logger,
) *billingUC {
	l := logger.With().Str("component", "BillingUseCase").Logger()
	return &billingUC{
		subs:       subs,
		plans:      plans,
		dispatcher: dispatcher,
		locker:     locker,
		opts:       opts.withDefaults(),
		now:        time.Now,
		log:        &l,
	}
}

// WithClock replaces the time source. Used by tests.
func (u *billingUC) WithClock(now func() time.Time) *billingUC {
	u.now = now
	return u
}

// billingRun carries per-run state.
type billingRun struct {
	req    model.RunRequest
	now    time.Time
	report *model.RunReport
	plans  map[string]*model.Plan
	log    zerolog.Logger
}

func (r *billingRun) fail(subID string, err error) {
	r.report.Errors = append(r.report.Errors, fmt.Sprintf("subscription %s: %v", subID, err))
	r.log.Error().Err(err).Str("subscription_id", subID).Msg("billing step failed")
}

// Run evaluates every non-terminal subscription once. Per-subscription failures are
// recorded in the report and do not stop the run.
func (u *billingUC) Run(ctx context.Context, req model.RunRequest) (*model.RunReport, error) {
	if req.Trigger == "" {
		req.Trigger = model.RunTriggerScheduled
	}
	startedAt := u.now()

	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, RunLockKey, u.opts.LockTTL)
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			metrics.IncBillingRun(string(req.Trigger), "locked")
			return nil, err
		case err != nil:
			u.log.Warn().Err(err).Msg("run lock unavailable; continuing without it")
		default:
			defer func() {
				if uerr := u.locker.Unlock(context.WithoutCancel(ctx), RunLockKey, token); uerr != nil {
					u.log.Warn().Err(uerr).Msg("failed to release run lock")
				}
			}()
		}
	}

	run := &billingRun{
		req: req,
		now: startedAt,
		report: &model.RunReport{
			RunID:     ulid.Make().String(),
			Manual:    req.Manual(),
			StartedAt: startedAt,
			Errors:    []string{},
		},
		plans: map[string]*model.Plan{},
	}
	run.log = u.log.With().Str("run_id", run.report.RunID).Str("trigger", string(req.Trigger)).Logger()
	run.log.Info().Msg("billing run started")

	statuses := []model.SubscriptionStatus{model.SubscriptionStatusTrial}
	if u.opts.LapseActive {
		statuses = append(statuses, model.SubscriptionStatusActive)
	}
	// past_due goes last so subscriptions that just entered it get their first reminder in this run.
	statuses = append(statuses, model.SubscriptionStatusPastDue)

	var runErr error
	for _, status := range statuses {
		if err := u.sweep(ctx, run, status); err != nil {
			runErr = err
			break
		}
	}

	r := run.report
	r.FinishedAt = u.now()
	outcome := "ok"
	switch {
	case runErr != nil:
		outcome = "failed"
	case len(r.Errors) > 0:
		outcome = "partial"
	}
	metrics.ObserveBillingRun(string(req.Trigger), outcome, r.FinishedAt.Sub(r.StartedAt).Seconds())

	run.log.Info().
		Int("trials_expired", r.TrialsExpired).
		Int("periods_lapsed", r.PeriodsLapsed).
		Int("suspended", r.SubscriptionsSuspended).
		Int("sent", r.NotificationsSent).
		Int("skipped", r.NotificationsSkipped).
		Int("errors", len(r.Errors)).
		Dur("took", r.FinishedAt.Sub(r.StartedAt)).
		Msg("billing run finished")

	if runErr != nil {
		return r, runErr
	}
	return r, nil
}

// sweep pages through one status. A list failure is recorded and ends the sweep;
// only context cancellation aborts the whole run.
func (u *billingUC) sweep(ctx context.Context, run *billingRun, status model.SubscriptionStatus) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := u.subs.ListByStatus(ctx, repository.NoTX, status, afterID, u.opts.PageSize)
		if err != nil {
			run.report.Errors = append(run.report.Errors, fmt.Sprintf("list %s subscriptions: %v", status, err))
			run.log.Error().Err(err).Str("status", string(status)).Msg("failed to list subscriptions")
			return nil
		}
		for _, sub := range page {
			u.process(ctx, run, sub)
		}
		if len(page) < u.opts.PageSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}

func (u *billingUC) process(ctx context.Context, run *billingRun, sub *model.Subscription) {
	plan, err := u.planFor(ctx, run, sub)
	if err != nil {
		run.fail(sub.ID, err)
		return
	}

	t := model.EvaluateTransition(sub, plan, run.now)
	if t.Changed() {
		ok, err := u.subs.ApplyTransition(ctx, repository.NoTX, sub.ID, t)
		if err != nil {
			run.fail(sub.ID, err)
			return
		}
		if !ok {
			// status moved underneath us (approved or cancelled concurrently)
			run.log.Debug().Str("subscription_id", sub.ID).Str("from", string(t.From)).Msg("transition skipped; row changed")
			return
		}
		sub.Apply(t)
		metrics.IncTransition(string(t.From), string(t.To))

		switch {
		case t.From == model.SubscriptionStatusTrial:
			run.report.TrialsExpired++
		case t.From == model.SubscriptionStatusActive:
			run.report.PeriodsLapsed++
		case t.To == model.SubscriptionStatusSuspended:
			run.report.SubscriptionsSuspended++
			u.notify(ctx, run, sub, plan, model.NotificationTypeSuspended)
		}
		return
	}

	if kind, ok := u.opts.ReminderPolicy.DueReminder(sub, plan, run.now); ok {
		u.notify(ctx, run, sub, plan, kind)
	}
}

func (u *billingUC) notify(ctx context.Context, run *billingRun, sub *model.Subscription, plan *model.Plan, kind model.NotificationType) {
	outcome, err := u.dispatcher.Dispatch(ctx, DispatchRequest{
		Subscription:  sub,
		Plan:          plan,
		Kind:          kind,
		EmailOverride: run.req.EmailOverride,
		Now:           run.now,
	})
	switch outcome {
	case DispatchSent:
		run.report.NotificationsSent++
	case DispatchSkipped:
		run.report.NotificationsSkipped++
	}
	if err != nil {
		run.fail(sub.ID, fmt.Errorf("notify %s: %w", kind, err))
	}
}

// planFor resolves the plan once per run. A subscription without a plan, or whose
// plan no longer exists, is evaluated with the default grace period.
func (u *billingUC) planFor(ctx context.Context, run *billingRun, sub *model.Subscription) (*model.Plan, error) {
	if sub.PlanID == nil || *sub.PlanID == "" {
		return nil, nil
	}
	id := *sub.PlanID
	if p, ok := run.plans[id]; ok {
		return p, nil
	}
	p, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		run.log.Warn().Str("plan_id", id).Msg("subscription references a missing plan; using default grace period")
		p, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}
	run.plans[id] = p
	return p, nil
}
