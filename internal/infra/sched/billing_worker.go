package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/usecase"
)

// BillingWorker triggers a scheduled billing run every interval.
type BillingWorker struct {
	interval   time.Duration
	runTimeout time.Duration
	runOnStart bool
	runner     usecase.BillingRunner
	log        *zerolog.Logger
}

func NewBillingWorker(interval, runTimeout time.Duration, runOnStart bool, runner usecase.BillingRunner, logger *zerolog.Logger) *BillingWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	l := logger.With().Str("component", "BillingWorker").Logger()
	return &BillingWorker{
		interval:   interval,
		runTimeout: runTimeout,
		runOnStart: runOnStart,
		runner:     runner,
		log:        &l,
	}
}

func (w *BillingWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting billing worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if w.runOnStart {
		w.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping billing worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *BillingWorker) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	report, err := w.runner.Run(runCtx, model.RunRequest{Trigger: model.RunTriggerScheduled})
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		w.log.Info().Msg("billing run skipped: another run holds the lock")
		return
	case err != nil:
		w.log.Error().Err(err).Msg("billing run failed")
	}
	if report == nil {
		return
	}
	ev := w.log.Info()
	if len(report.Errors) > 0 {
		ev = w.log.Warn().Strs("errors", report.Errors)
	}
	ev.Str("run_id", report.RunID).
		Int("trials_expired", report.TrialsExpired).
		Int("periods_lapsed", report.PeriodsLapsed).
		Int("suspended", report.SubscriptionsSuspended).
		Int("notifications_sent", report.NotificationsSent).
		Int("notifications_skipped", report.NotificationsSkipped).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("billing run finished")
}
