package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/adapter"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/infra/logging"
	"laundry-billing/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type DispatchOutcome int

const (
	DispatchFailed DispatchOutcome = iota
	DispatchSkipped
	// DispatchUnsent means the record was written but the provider refused the message.
	DispatchUnsent
	DispatchSent
)

type DispatchRequest struct {
	Subscription  *model.Subscription
	Plan          *model.Plan
	Kind          model.NotificationType
	EmailOverride string
	Now           time.Time
}

type NotificationUseCase interface {
	// Dispatch sends one billing email unless the same type went out within the dedup window.
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchOutcome, error)
}

type notificationUC struct {
	logs      repository.NotificationLogRepository
	directory repository.DirectoryRepository
	mailer    adapter.Mailer
	composer  *MessageComposer
	dev       bool
	log       *zerolog.Logger
}

func NewNotificationUseCase(
	logs repository.NotificationLogRepository,
	directory repository.DirectoryRepository,
	mailer adapter.Mailer,
	composer *MessageComposer,
	logger *zerolog.Logger,
) *notificationUC {
	l := logger.With().Str("component", "NotificationUseCase").Logger()
	return &notificationUC{logs: logs, directory: directory, mailer: mailer, composer: composer, log: &l}
}

// WithDevLogging logs recipient addresses unredacted.
func (n *notificationUC) WithDevLogging(dev bool) *notificationUC {
	n.dev = dev
	return n
}

func (n *notificationUC) Dispatch(ctx context.Context, req DispatchRequest) (DispatchOutcome, error) {
	sub := req.Subscription
	exists, err := n.logs.ExistsSince(ctx, repository.NoTX, sub.ID, req.Kind, req.Now.Add(-model.DedupWindow))
	if err != nil {
		metrics.IncNotification(string(req.Kind), "error")
		return DispatchFailed, fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		metrics.IncNotification(string(req.Kind), "skipped")
		return DispatchSkipped, nil
	}

	contact, err := n.directory.BranchContact(ctx, repository.NoTX, sub.BranchID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.IncNotification(string(req.Kind), "error")
		return DispatchFailed, fmt.Errorf("load branch contact: %w", err)
	}

	recipients := ResolveRecipients(contact, req.EmailOverride)
	if len(recipients) == 0 {
		metrics.IncNotification(string(req.Kind), "error")
		return DispatchFailed, domain.ErrNoRecipient
	}

	msg, err := n.composer.Compose(MessageData{
		Kind:         req.Kind,
		Subscription: sub,
		Plan:         req.Plan,
		Contact:      contact,
		Now:          req.Now,
	})
	if err != nil {
		metrics.IncNotification(string(req.Kind), "error")
		return DispatchFailed, fmt.Errorf("compose: %w", err)
	}

	rec := model.NewEmailNotification(sub, req.Kind, strings.Join(recipients, ", "), msg.Subject, msg.Text, req.Now)
	if err := n.logs.Create(ctx, repository.NoTX, rec); err != nil {
		metrics.IncNotification(string(req.Kind), "error")
		return DispatchFailed, fmt.Errorf("create notification record: %w", err)
	}

	msg.To = recipients
	providerID, err := n.mailer.Send(ctx, msg)
	if err != nil {
		// the pending record still blocks a resend for the rest of the dedup window
		n.log.Error().Err(err).
			Str("subscription_id", sub.ID).
			Str("notification_id", rec.ID).
			Str("kind", string(req.Kind)).
			Str("mailer", n.mailer.Name()).
			Str("to", logging.Redact(recipients[0], n.dev)).
			Msg("email delivery failed")
		metrics.IncNotification(string(req.Kind), "unsent")
		return DispatchUnsent, nil
	}

	metrics.IncNotification(string(req.Kind), "sent")
	n.log.Info().
		Str("subscription_id", sub.ID).
		Str("kind", string(req.Kind)).
		Str("provider_id", providerID).
		Str("to", logging.Redact(recipients[0], n.dev)).
		Int("recipients", len(recipients)).
		Msg("billing email sent")

	if err := n.logs.MarkSent(ctx, repository.NoTX, rec.ID, req.Now); err != nil {
		return DispatchSent, fmt.Errorf("mark notification sent: %w", err)
	}
	return DispatchSent, nil
}
