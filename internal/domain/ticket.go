package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusPendingReview TicketStatus = "pending_review"
	TicketStatusResolved      TicketStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPendingReview, TicketStatusResolved:
		return true
	}
	return false
}

// TicketCategory is the triage classification of a ticket.
type TicketCategory string

const (
	CategoryNetwork       TicketCategory = "network"
	CategoryHardware      TicketCategory = "hardware"
	CategorySoftware      TicketCategory = "software"
	CategoryAccess        TicketCategory = "access"
	CategoryOther         TicketCategory = "other"
	CategoryUncategorized TicketCategory = "uncategorized"
	CategoryError         TicketCategory = "error"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryNetwork, CategoryHardware, CategorySoftware, CategoryAccess,
		CategoryOther, CategoryUncategorized, CategoryError:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                     int64
	Name                   string
	Email                  string
	Description            string
	Category               TicketCategory
	Status                 TicketStatus
	AIResponse             string
	ConfidenceScore        float64
	RequiresHumanAttention bool
	ResolutionNotes        string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ResolvedAt             *time.Time
}

// Escalate flags the ticket for human review. It reports whether the flag
// transitioned from false to true.
func (t *Ticket) Escalate() bool {
	transitioned := !t.RequiresHumanAttention
	t.RequiresHumanAttention = true
	t.Status = TicketStatusPendingReview
	t.ResolvedAt = nil
	return transitioned
}

// Resolve marks the ticket resolved at the given time.
func (t *Ticket) Resolve(at time.Time, notes string) {
	t.Status = TicketStatusResolved
	t.ResolvedAt = &at
	if notes != "" {
		t.ResolutionNotes = notes
	}
}

// Snapshot returns the fields handed to the support team on escalation.
func (t *Ticket) Snapshot() TicketSnapshot {
	return TicketSnapshot{
		ID:              t.ID,
		Name:            t.Name,
		Email:           t.Email,
		Category:        t.Category,
		Description:     t.Description,
		ConfidenceScore: t.ConfidenceScore,
		AIResponse:      t.AIResponse,
	}
}

// TicketSnapshot is an immutable copy of a ticket used for notifications.
type TicketSnapshot struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Category        TicketCategory `json:"category"`
	Description     string         `json:"description"`
	ConfidenceScore float64        `json:"confidence_score"`
	AIResponse      string         `json:"ai_response"`
}
