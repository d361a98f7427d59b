package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Name        string `json:"name" form:"name" validate:"required,max=200"`
	Email       string `json:"email" form:"email" validate:"required,max=254"`
	Description string `json:"description" form:"description" validate:"required,max=10000"`
	Category    string `json:"category" form:"category" validate:"omitempty,oneof=network hardware software access other uncategorized"`
}

// SubmitTicketResponse returns the initial analysis.
type SubmitTicketResponse struct {
	Ticket        TicketSummary `json:"ticket"`
	Response      string        `json:"response"`
	RequiresHuman bool          `json:"requires_human"`
}

// ChatMessageRequest payload.
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,max=10000"`
}

// ChatMessageResponse carries the reply shown to the user.
type ChatMessageResponse struct {
	Response          string        `json:"response"`
	Escalated         bool          `json:"escalated"`
	FollowUpRequested bool          `json:"follow_up_requested"`
	Ticket            TicketSummary `json:"ticket"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Notes string `json:"notes" validate:"max=5000"`
}

// FollowUpRequest payload.
type FollowUpRequest struct {
	Message string `json:"message" validate:"required,max=10000"`
}

// FollowUpResponse reports follow-up detection.
type FollowUpResponse struct {
	NeedsFollowUp bool `json:"needs_follow_up"`
}

// DashboardQuery holds dashboard query parameters.
type DashboardQuery struct {
	Status    string `query:"status"`
	Category  string `query:"category"`
	StartDate string `query:"start_date"`
	EndDate   string `query:"end_date"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                     int64                 `json:"id"`
	Name                   string                `json:"name"`
	Email                  string                `json:"email"`
	Category               domain.TicketCategory `json:"category"`
	Status                 domain.TicketStatus   `json:"status"`
	ConfidenceScore        float64               `json:"confidence_score"`
	RequiresHumanAttention bool                  `json:"requires_human_attention"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
	ResolvedAt             *time.Time            `json:"resolved_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description     string                  `json:"description"`
	AIResponse      string                  `json:"ai_response"`
	ResolutionNotes string                  `json:"resolution_notes,omitempty"`
	Messages        []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a transcript entry.
type TicketMessageResponse struct {
	ID         int64                    `json:"id"`
	AuthorType domain.MessageAuthorType `json:"author_type"`
	Body       string                   `json:"body"`
	Confidence *float64                 `json:"confidence,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// DashboardMetrics response.
type DashboardMetrics struct {
	TotalTickets    int `json:"total_tickets"`
	ResolvedTickets int `json:"resolved_tickets"`
	PendingTickets  int `json:"pending_tickets"`
}

// DashboardResponse lists tickets with metrics.
type DashboardResponse struct {
	Tickets []TicketSummary  `json:"tickets"`
	Metrics DashboardMetrics `json:"metrics"`
}

// ChartSeries response.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// ChartDataResponse feeds the dashboard charts.
type ChartDataResponse struct {
	AgeDistribution ChartSeries `json:"age_distribution"`
	ResolutionTime  ChartSeries `json:"resolution_time"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                     t.ID,
		Name:                   t.Name,
		Email:                  t.Email,
		Category:               t.Category,
		Status:                 t.Status,
		ConfidenceScore:        t.ConfidenceScore,
		RequiresHumanAttention: t.RequiresHumanAttention,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
		ResolvedAt:             t.ResolvedAt,
	}
}

// NewTicketDetail maps a ticket and its transcript.
func NewTicketDetail(t *domain.Ticket, msgs []domain.TicketMessage) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary:   NewTicketSummary(t),
		Description:     t.Description,
		AIResponse:      t.AIResponse,
		ResolutionNotes: t.ResolutionNotes,
		Messages:        make([]TicketMessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, TicketMessageResponse{
			ID:         m.ID,
			AuthorType: m.AuthorType,
			Body:       m.Body,
			Confidence: m.Confidence,
			CreatedAt:  m.CreatedAt,
		})
	}
	return resp
}
