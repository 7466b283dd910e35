package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/leadintake/internal/scoring"
	"github.com/leadintake/pkg/models"
)

// Message is one outbound lead announcement
type Message struct {
	LeadID  int64  `json:"lead_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SMS     string `json:"sms"`
}

// Notifier delivers a message over some channel
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// BuildMessage renders the email and SMS text for a stored lead
func BuildMessage(lead *models.Lead, to string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "New lead #%d\n\n", lead.ID)
	fmt.Fprintf(&b, "Project:  %s\n", lead.ProjectType)
	fmt.Fprintf(&b, "Budget:   %s\n", lead.Budget)
	fmt.Fprintf(&b, "Timeline: %s\n", lead.Timeline)
	fmt.Fprintf(&b, "Score:    %d/%d\n\n", lead.Score, scoring.MaxScore)
	fmt.Fprintf(&b, "Name:  %s\n", lead.Name)
	fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	if lead.Phone != nil {
		fmt.Fprintf(&b, "Phone: %s\n", *lead.Phone)
	}
	if lead.Zip != nil {
		fmt.Fprintf(&b, "ZIP:   %s\n", *lead.Zip)
	}
	if lead.Summary != "" {
		fmt.Fprintf(&b, "\nAI summary:\n%s\n", lead.Summary)
	}

	return Message{
		LeadID:  lead.ID,
		To:      to,
		Subject: fmt.Sprintf("New lead: %s (score %d/%d)", lead.ProjectType, lead.Score, scoring.MaxScore),
		Body:    b.String(),
		SMS: fmt.Sprintf("New %s lead from %s: budget %s, timeline %s, score %d/%d",
			lead.ProjectType, lead.Name, lead.Budget, lead.Timeline, lead.Score, scoring.MaxScore),
	}
}

// Multi fans a message out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only writes the message to the log. It is used when no
// delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, msg Message) error {
	log.Info().
		Int64("lead_id", msg.LeadID).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Lead notification (no delivery channel configured)")
	return nil
}
