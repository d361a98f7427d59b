package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/events"
	"github.com/spec-kit/helpdesk-triage/internal/lock"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

const (
	escalatedByModelNote = "Ticket escalated for human review: AI confidence below threshold."
	escalatedManualNote  = "Ticket escalated for human review on request."
	resolvedNote         = "Ticket marked as resolved."
)

// TicketService coordinates ticket workflows around the triage policy.
type TicketService struct {
	policy     *triage.Policy
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Policy      *triage.Policy
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// TicketSubmitInput describes ticket creation payload.
type TicketSubmitInput struct {
	Name        string
	Email       string
	Description string
	Category    string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		policy:     deps.Policy,
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// Submit runs the initial analysis of a new ticket.
func (s *TicketService) Submit(ctx context.Context, input TicketSubmitInput) (*triage.SubmitResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	description := strings.TrimSpace(input.Description)
	switch {
	case name == "":
		return nil, apperrors.NewValidationError("name is required", nil)
	case email == "":
		return nil, apperrors.NewValidationError("email is required", nil)
	case description == "":
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	category := domain.CategoryUncategorized
	if c := strings.ToLower(strings.TrimSpace(input.Category)); c != "" {
		category = domain.TicketCategory(c)
	}

	result, err := s.policy.Submit(ctx, triage.SubmitInput{
		Name:        name,
		Email:       email,
		Description: description,
		Category:    category,
	})
	if err != nil {
		return nil, err
	}

	ticket := result.Ticket
	s.appendMessage(ctx, ticket.ID, domain.AuthorTypeUser, description, nil)
	confidence := result.Analysis.Confidence
	s.appendMessage(ctx, ticket.ID, domain.AuthorTypeAssistant, ticket.AIResponse, &confidence)
	if result.RequiresHuman {
		s.appendMessage(ctx, ticket.ID, domain.AuthorTypeSystem, escalatedByModelNote, nil)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketSubmitted,
		TicketID: ticket.ID,
		Actor:    domain.AuthorTypeUser,
		Payload: events.TicketSubmittedPayload{
			Category:        ticket.Category,
			ConfidenceScore: ticket.ConfidenceScore,
			RequiresHuman:   result.RequiresHuman,
		},
	})
	return result, nil
}

// HandleMessage analyses a chat message for an existing ticket.
func (s *TicketService) HandleMessage(ctx context.Context, ticketID int64, message string) (*triage.MessageResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}

	result, err := s.policy.HandleTurn(ctx, ticketID, message, func(ctx context.Context, turn *triage.MessageResult) {
		s.appendMessage(ctx, ticketID, domain.AuthorTypeUser, message, nil)
		confidence := turn.Analysis.Confidence
		s.appendMessage(ctx, ticketID, domain.AuthorTypeAssistant, turn.Response, &confidence)
		if turn.Escalated {
			s.appendMessage(ctx, ticketID, domain.AuthorTypeSystem, escalatedByModelNote, nil)
		}
	})
	if err != nil {
		return nil, mapTicketError(ticketID, err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessageHandled,
		TicketID: ticketID,
		Actor:    domain.AuthorTypeUser,
		Payload: events.MessageHandledPayload{
			ConfidenceScore:   result.Ticket.ConfidenceScore,
			Escalated:         result.Escalated,
			FollowUpRequested: result.FollowUpRequested,
		},
	})
	return result, nil
}

// NeedsFollowUp reports whether the issue description warrants follow-up
// questions.
func (s *TicketService) NeedsFollowUp(ctx context.Context, message string) (bool, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return false, apperrors.NewValidationError("message is required", nil)
	}
	return s.policy.NeedsFollowUp(ctx, message), nil
}

// Escalate flags a ticket for human review. The bool reports whether the
// ticket changed.
func (s *TicketService) Escalate(ctx context.Context, ticketID int64) (*domain.Ticket, bool, error) {
	ticket, changed, err := s.policy.Escalate(ctx, ticketID)
	if err != nil {
		return nil, false, mapTicketError(ticketID, err)
	}
	if changed {
		s.appendMessage(ctx, ticketID, domain.AuthorTypeSystem, escalatedManualNote, nil)
	}
	return ticket, changed, nil
}

// Resolve closes a ticket. Resolving an already resolved ticket is a conflict.
func (s *TicketService) Resolve(ctx context.Context, ticketID int64, notes string) (*domain.Ticket, error) {
	notes = strings.TrimSpace(notes)
	ticket, err := s.policy.WithTicket(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		if t.Status == domain.TicketStatusResolved {
			return false, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticketID})
		}
		t.Resolve(s.now().UTC(), notes)
		return true, nil
	})
	if err != nil {
		return nil, mapTicketError(ticketID, err)
	}

	body := resolvedNote
	if notes != "" {
		body += " " + notes
	}
	s.appendMessage(ctx, ticketID, domain.AuthorTypeSystem, body, nil)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticketID,
		Actor:    domain.AuthorTypeSystem,
		Payload:  events.TicketResolvedPayload{Notes: notes},
	})
	return ticket, nil
}

// GetTicket returns a ticket with its transcript.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, mapTicketError(ticketID, err)
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

func (s *TicketService) appendMessage(ctx context.Context, ticketID int64, author domain.MessageAuthorType, body string, confidence *float64) {
	if s.messages == nil {
		return
	}
	msg := &domain.TicketMessage{
		TicketID:   ticketID,
		AuthorType: author,
		Body:       body,
		Confidence: confidence,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Warn("failed to record ticket message",
			zap.Int64("ticket_id", ticketID), zap.String("author", string(author)), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.Timestamp = s.now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)), zap.Int64("ticket_id", event.TicketID), zap.Error(err))
	}
}

// mapTicketError turns store and lock failures into transport errors.
func mapTicketError(ticketID int64, err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, lock.ErrNotAcquired), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUnavailable("ticket is busy, try again", err)
	}
	return err
}
