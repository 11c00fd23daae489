package email

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"laundry-billing/internal/domain/ports/adapter"
	"laundry-billing/internal/infra/logging"
)

var _ adapter.Mailer = (*NoopMailer)(nil)

// noopRetained caps how many suppressed messages Sent can return.
const noopRetained = 100

// NoopMailer logs messages instead of sending them. Used in development and tests.
type NoopMailer struct {
	mu   sync.Mutex
	seq  int64
	sent []adapter.Email
	dev  bool
	log  zerolog.Logger
}

func NewNoopMailer(logger *zerolog.Logger) *NoopMailer {
	return &NoopMailer{log: logger.With().Str("component", "noop_mailer").Logger()}
}

// WithDevLogging logs recipients in full.
func (m *NoopMailer) WithDevLogging(dev bool) *NoopMailer {
	m.dev = dev
	return m
}

func (m *NoopMailer) Name() string { return "noop" }

func (m *NoopMailer) Send(ctx context.Context, msg adapter.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.sent = append(m.sent, msg)
	if len(m.sent) > noopRetained {
		m.sent = append(m.sent[:0:0], m.sent[len(m.sent)-noopRetained:]...)
	}
	id := fmt.Sprintf("noop-%d", m.seq)

	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = logging.Redact(addr, m.dev)
	}
	m.log.Info().
		Str("message_id", id).
		Str("to", strings.Join(to, ", ")).
		Str("subject", msg.Subject).
		Msg("email suppressed")
	return id, nil
}

// Sent returns a copy of the most recent messages handed to Send.
func (m *NoopMailer) Sent() []adapter.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.Email, len(m.sent))
	copy(out, m.sent)
	return out
}
