package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"laundry-billing/internal/domain/model"
)

// StatusCounter refreshes the subscriptions-by-status gauge as a side effect.
type StatusCounter interface {
	StatusCounts(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

// StatusGaugeWorker keeps the subscription status gauge current between billing runs.
type StatusGaugeWorker struct {
	interval time.Duration
	counter  StatusCounter
	log      *zerolog.Logger
}

func NewStatusGaugeWorker(interval time.Duration, counter StatusCounter, logger *zerolog.Logger) *StatusGaugeWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "StatusGaugeWorker").Logger()
	return &StatusGaugeWorker{interval: interval, counter: counter, log: &l}
}

func (w *StatusGaugeWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *StatusGaugeWorker) refresh(ctx context.Context) {
	if _, err := w.counter.StatusCounts(ctx); err != nil {
		w.log.Warn().Err(err).Msg("subscription status gauge refresh failed")
	}
}
