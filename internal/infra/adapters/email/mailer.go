package email

import (
	"fmt"

	"github.com/rs/zerolog"

	"laundry-billing/internal/config"
	"laundry-billing/internal/domain/ports/adapter"
)

// New picks the mailer named by cfg.Provider. dev turns off recipient redaction in logs.
func New(cfg *config.EmailConfig, dev bool, logger *zerolog.Logger) (adapter.Mailer, error) {
	switch cfg.Provider {
	case "resend":
		return NewResendMailer(cfg.APIKey, cfg.From, cfg.ReplyTo, "")
	case "noop", "":
		return NewNoopMailer(logger).WithDevLogging(dev), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
