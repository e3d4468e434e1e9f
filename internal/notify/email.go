package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

// DefaultFrom is the sender used when none is configured.
const DefaultFrom = "Portfolio <onboarding@resend.dev>"

// EmailSender is the subset of the Resend emails service used here.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Email sends a copy of each note to the site owner.
type Email struct {
	sender EmailSender
	from   string
	to     string
}

// NewEmail creates an Email task backed by the Resend API.
func NewEmail(apiKey, to, from string) *Email {
	return NewEmailWithSender(resend.NewClient(apiKey).Emails, to, from)
}

// NewEmailWithSender creates an Email task with a custom sender.
func NewEmailWithSender(sender EmailSender, to, from string) *Email {
	if from == "" {
		from = DefaultFrom
	}
	return &Email{sender: sender, from: from, to: to}
}

// Name identifies the task in logs and metrics.
func (e *Email) Name() string { return "email" }

// Run sends the notification.
func (e *Email) Run(ctx context.Context, n models.Note) error {
	resp, err := e.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{e.to},
		Subject: Subject(n),
		Html:    NoteHTML(n),
	})
	if err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return fmt.Errorf("notify: send email: empty response id")
	}
	return nil
}
