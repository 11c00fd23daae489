package adapter

import "context"

// Email is a provider-agnostic outbound message.
type Email struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer is the port for the transactional-email provider.
type Mailer interface {
	Name() string
	// Send hands the message to the provider and returns its message id.
	Send(ctx context.Context, msg Email) (string, error)
}
