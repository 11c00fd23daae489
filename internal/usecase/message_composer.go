package usecase

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/adapter"
)

type MessageData struct {
	Kind         model.NotificationType
	Subscription *model.Subscription
	Plan         *model.Plan
	Contact      *model.BranchContact
	Now          time.Time
}

// view is what the templates see.
type view struct {
	LaundryName string
	BranchName  string
	PlanName    string
	Price       string
	Days        int
	Deadline    string
	PortalURL   string
}

// TemplateSource supplies raw template text by key, e.g. "past_due.subject".
type TemplateSource interface {
	Lookup(key string) (string, bool)
}

var messageFamilies = []string{"trial_ending", "past_due", "suspended"}

type compiledTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// MessageComposer renders billing emails from a template catalog.
type MessageComposer struct {
	portalURL string
	templates map[string]compiledTemplate
}

func NewMessageComposer(portalURL string, src TemplateSource) (*MessageComposer, error) {
	c := &MessageComposer{portalURL: portalURL, templates: map[string]compiledTemplate{}}
	raw := func(family, part string) (string, error) {
		v, ok := src.Lookup(family + "." + part)
		if !ok {
			return "", fmt.Errorf("template not found: %s.%s", family, part)
		}
		return v, nil
	}
	for _, family := range messageFamilies {
		var parts [3]string
		for i, part := range []string{"subject", "html", "text"} {
			v, err := raw(family, part)
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		subject, err := texttemplate.New(family + ".subject").Parse(parts[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", family, err)
		}
		html, err := htmltemplate.New(family + ".html").Parse(parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", family, err)
		}
		text, err := texttemplate.New(family + ".text").Parse(parts[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", family, err)
		}
		c.templates[family] = compiledTemplate{subject: subject, html: html, text: text}
	}
	return c, nil
}

func (c *MessageComposer) Compose(d MessageData) (adapter.Email, error) {
	family, days, deadline := c.describe(d)
	t, ok := c.templates[family]
	if !ok {
		return adapter.Email{}, fmt.Errorf("template not found: %s", d.Kind)
	}

	v := view{
		LaundryName: "there",
		BranchName:  "your branch",
		Days:        days,
		Deadline:    deadline.UTC().Format("Jan 2, 2006"),
		PortalURL:   c.portalURL,
	}
	if d.Contact != nil {
		if d.Contact.Laundry.Name != "" {
			v.LaundryName = d.Contact.Laundry.Name
		}
		if d.Contact.Branch.Name != "" {
			v.BranchName = d.Contact.Branch.Name
		}
	}
	if !d.Plan.IsZero() {
		v.PlanName = d.Plan.Name
		if price := d.Plan.PriceFor(d.Subscription.BillingInterval); price.IsPositive() {
			v.Price = price.StringFixed(2) + " " + d.Plan.Currency
		}
	}

	var subject, html, text bytes.Buffer
	if err := t.subject.Execute(&subject, v); err != nil {
		return adapter.Email{}, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := t.html.Execute(&html, v); err != nil {
		return adapter.Email{}, fmt.Errorf("failed to render html: %w", err)
	}
	if err := t.text.Execute(&text, v); err != nil {
		return adapter.Email{}, fmt.Errorf("failed to render text: %w", err)
	}
	return adapter.Email{
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// describe maps a notification type to its template family, the day count shown
// to the reader and the relevant deadline.
func (c *MessageComposer) describe(d MessageData) (string, int, time.Time) {
	sub := d.Subscription
	kind := string(d.Kind)
	switch {
	case strings.HasPrefix(kind, "trial_ending_") && sub.TrialEndsAt != nil:
		return "trial_ending", model.DaysUntil(*sub.TrialEndsAt, d.Now), *sub.TrialEndsAt
	case strings.HasPrefix(kind, "past_due_"):
		if at, ok := model.SuspensionDate(sub, d.Plan); ok {
			return "past_due", model.DaysUntil(at, d.Now), at
		}
		return "past_due", 0, d.Now
	case d.Kind == model.NotificationTypeSuspended:
		at := d.Now
		if sub.SuspendedAt != nil {
			at = *sub.SuspendedAt
		}
		return "suspended", 0, at
	}
	return kind, 0, d.Now
}
