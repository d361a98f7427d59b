package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// Message is one escalation notice addressed to the support team.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
	Ticket  domain.TicketSnapshot
	// Attempts counts failed deliveries so far.
	Attempts int
}

// Sender delivers a message over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// EscalationSubject is the subject line for a ticket that needs review.
func EscalationSubject(ticketID int64) string {
	return fmt.Sprintf("Support Ticket #%d Needs Review", ticketID)
}

// NewEscalationMessage renders the notice for an escalated ticket.
func NewEscalationMessage(cfg config.NotificationConfig, ticket domain.TicketSnapshot) Message {
	var b strings.Builder
	b.WriteString("New support ticket requires human review:\n\n")
	fmt.Fprintf(&b, "Ticket ID: %d\n", ticket.ID)
	fmt.Fprintf(&b, "Customer: %s\n", ticket.Name)
	fmt.Fprintf(&b, "Email: %s\n", ticket.Email)
	fmt.Fprintf(&b, "Category: %s\n", ticket.Category)
	fmt.Fprintf(&b, "Description: %s\n\n", ticket.Description)
	fmt.Fprintf(&b, "AI Confidence Score: %g\n", ticket.ConfidenceScore)
	fmt.Fprintf(&b, "AI Response: %s\n\n", ticket.AIResponse)
	b.WriteString("Please review and respond to this ticket.\n")

	return Message{
		From:    cfg.EmailFrom,
		To:      cfg.SupportEmail,
		Subject: EscalationSubject(ticket.ID),
		Body:    b.String(),
		Ticket:  ticket,
	}
}
