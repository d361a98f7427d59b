package events

import (
	"time"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted EventType = "ticket_submitted"
	EventTicketEscalated EventType = "ticket_escalated"
	EventTicketResolved  EventType = "ticket_resolved"
	EventMessageHandled  EventType = "message_handled"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string                   `json:"id"`
	Type      EventType                `json:"type"`
	TicketID  int64                    `json:"ticket_id"`
	Actor     domain.MessageAuthorType `json:"actor"`
	Timestamp time.Time                `json:"timestamp"`
	Payload   interface{}              `json:"payload"`
}

// TicketSubmittedPayload payload.
type TicketSubmittedPayload struct {
	Category        domain.TicketCategory `json:"category"`
	ConfidenceScore float64               `json:"confidence_score"`
	RequiresHuman   bool                  `json:"requires_human"`
}

// TicketEscalatedPayload carries the ticket as it was when escalated.
type TicketEscalatedPayload struct {
	Ticket domain.TicketSnapshot `json:"ticket"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Notes string `json:"notes,omitempty"`
}

// MessageHandledPayload payload.
type MessageHandledPayload struct {
	ConfidenceScore   float64 `json:"confidence_score"`
	Escalated         bool    `json:"escalated"`
	FollowUpRequested bool    `json:"follow_up_requested"`
}
