package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"

	"laundry-billing/internal/domain/ports/adapter"
)

var _ adapter.Mailer = (*ResendMailer)(nil)

// ResendMailer implements adapter.Mailer on the Resend transactional API.
type ResendMailer struct {
	client  *resend.Client
	from    string
	replyTo string
}

// NewResendMailer builds a mailer with a bounded http client. baseURL is only set in tests.
func NewResendMailer(apiKey, from, replyTo, baseURL string) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key empty")
	}
	if from == "" {
		return nil, errors.New("sender address empty")
	}
	client := resend.NewCustomClient(&http.Client{Timeout: 15 * time.Second}, apiKey)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendMailer{client: client, from: from, replyTo: replyTo}, nil
}

func (m *ResendMailer) Name() string { return "resend" }

func (m *ResendMailer) Send(ctx context.Context, msg adapter.Email) (string, error) {
	if len(msg.To) == 0 {
		return "", errors.New("resend: no recipients")
	}
	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: m.replyTo,
	}
	resp, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return resp.Id, nil
}
