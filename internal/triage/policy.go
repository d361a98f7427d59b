package triage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// EscalationThreshold is the confidence below which a human must review.
const EscalationThreshold = 0.7

// TicketStore persists tickets on behalf of the policy.
type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// Notifier tells the support team about an escalated ticket. Delivery is best
// effort and must not block the caller.
type Notifier interface {
	NotifyEscalation(ctx context.Context, ticket domain.TicketSnapshot)
}

// Locker serializes read-modify-write cycles on a single ticket.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Recorder counts triage outcomes.
type Recorder interface {
	RecordTriage(operation, outcome string)
}

// Dependencies bundles the collaborators of a Policy.
type Dependencies struct {
	Completer Completer
	Tickets   TicketStore
	Notifier  Notifier
	Locker    Locker
	Metrics   Recorder
	Logger    *zap.Logger
}

// Policy applies the triage and escalation rules to tickets.
type Policy struct {
	agent    *Agent
	tickets  TicketStore
	notifier Notifier
	locker   Locker
	metrics  Recorder
	logger   *zap.Logger
}

// NewPolicy constructs the policy.
func NewPolicy(deps Dependencies) *Policy {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		agent:    NewAgent(deps.Completer, logger),
		tickets:  deps.Tickets,
		notifier: deps.Notifier,
		locker:   deps.Locker,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// SubmitInput describes a new ticket.
type SubmitInput struct {
	Name        string
	Email       string
	Description string
	// Category is used when the model reports none.
	Category domain.TicketCategory
}

// SubmitResult is the outcome of an initial analysis.
type SubmitResult struct {
	Ticket        *domain.Ticket
	Analysis      Analysis
	RequiresHuman bool
}

// MessageResult is the outcome of a follow-up message.
type MessageResult struct {
	Ticket            *domain.Ticket
	Analysis          Analysis
	Response          string
	Escalated         bool
	FollowUpRequested bool
}

// Submit analyses a new ticket description, persists the ticket and notifies
// the support team when confidence is below EscalationThreshold.
func (p *Policy) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	analysis := p.agent.AnalyzeTicket(ctx, input.Description, "")
	requiresHuman := analysis.Confidence < EscalationThreshold

	ticket := &domain.Ticket{
		Name:                   input.Name,
		Email:                  input.Email,
		Description:            input.Description,
		Category:               resolveCategory(analysis, input.Category),
		Status:                 domain.TicketStatusOpen,
		AIResponse:             analysis.Response,
		ConfidenceScore:        analysis.Confidence,
		RequiresHumanAttention: requiresHuman,
	}
	if requiresHuman {
		ticket.Status = domain.TicketStatusPendingReview
	}

	if err := p.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	p.record("submit", analysis, requiresHuman)

	if requiresHuman {
		p.notify(ctx, ticket)
	}
	return &SubmitResult{Ticket: ticket, Analysis: analysis, RequiresHuman: requiresHuman}, nil
}

// HandleMessage analyses a chat message in the context of an existing
// ticket. Stored confidence only ever decreases, and the ticket is escalated
// at most once.
func (p *Policy) HandleMessage(ctx context.Context, ticketID int64, message string) (*MessageResult, error) {
	return p.HandleTurn(ctx, ticketID, message, nil)
}

// HandleTurn is HandleMessage with a record callback that runs after the
// ticket is persisted and before its lock is released, so the transcript
// rows of concurrent turns on one ticket never interleave.
func (p *Policy) HandleTurn(ctx context.Context, ticketID int64, message string, record func(context.Context, *MessageResult)) (*MessageResult, error) {
	current, err := p.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	analysis := p.agent.AnalyzeTicket(ctx, message, ConversationHistory(current))
	result := &MessageResult{Analysis: analysis, Response: analysis.Response}
	if p.agent.NeedsFollowUp(ctx, message) {
		result.FollowUpRequested = true
		result.Response = AugmentResponse(result.Response, message)
	}

	ticket, escalated, err := p.withTicket(ctx, ticketID,
		func(t *domain.Ticket) (bool, bool) {
			return applyAnalysis(t, analysis), true
		},
		func(t *domain.Ticket, escalated bool) {
			if record == nil {
				return
			}
			committed := *result
			committed.Ticket = t
			committed.Escalated = escalated
			record(ctx, &committed)
		})
	if err != nil {
		return nil, err
	}
	p.record("message", analysis, escalated)
	if escalated {
		p.notify(ctx, ticket)
	}

	result.Ticket = ticket
	result.Escalated = escalated
	return result, nil
}

// NeedsFollowUp reports whether the message warrants follow-up questions.
func (p *Policy) NeedsFollowUp(ctx context.Context, message string) bool {
	return p.agent.NeedsFollowUp(ctx, message)
}

// Escalate flags a ticket for human review on request. The support team is
// notified only when the flag was not already set.
func (p *Policy) Escalate(ctx context.Context, ticketID int64) (*domain.Ticket, bool, error) {
	ticket, escalated, err := p.withTicket(ctx, ticketID, func(t *domain.Ticket) (bool, bool) {
		changed := t.Status != domain.TicketStatusPendingReview || !t.RequiresHumanAttention
		return t.Escalate(), changed
	}, nil)
	if err != nil {
		return nil, false, err
	}
	if escalated {
		p.record("escalate", Analysis{}, true)
		p.notify(ctx, ticket)
	}
	return ticket, escalated, nil
}

// WithTicket runs fn under the ticket lock and persists the ticket when fn
// reports a change.
func (p *Policy) WithTicket(ctx context.Context, ticketID int64, fn func(*domain.Ticket) (changed bool, err error)) (*domain.Ticket, error) {
	var fnErr error
	ticket, _, err := p.withTicket(ctx, ticketID, func(t *domain.Ticket) (bool, bool) {
		changed, err := fn(t)
		fnErr = err
		return false, changed && err == nil
	}, nil)
	if err != nil {
		return nil, err
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return ticket, nil
}

// withTicket loads the ticket under its lock, applies mutate and persists the
// result when mutate reports a change. A non-nil committed runs with the lock
// still held. It returns a copy of the ticket.
func (p *Policy) withTicket(ctx context.Context, ticketID int64, mutate func(*domain.Ticket) (escalated, changed bool), committed func(*domain.Ticket, bool)) (*domain.Ticket, bool, error) {
	unlock, err := p.locker.Lock(ctx, lockKey(ticketID))
	if err != nil {
		return nil, false, fmt.Errorf("lock ticket %d: %w", ticketID, err)
	}
	defer unlock()

	ticket, err := p.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, false, err
	}

	escalated, changed := mutate(ticket)
	if !changed {
		copied := *ticket
		return &copied, false, nil
	}
	if err := p.tickets.Update(ctx, ticket); err != nil {
		return nil, false, fmt.Errorf("update ticket %d: %w", ticketID, err)
	}
	copied := *ticket
	if committed != nil {
		view := copied
		committed(&view, escalated)
	}
	return &copied, escalated, nil
}

// applyAnalysis folds a follow-up analysis into the ticket and reports
// whether the ticket was escalated by it.
func applyAnalysis(ticket *domain.Ticket, analysis Analysis) bool {
	if analysis.Confidence < ticket.ConfidenceScore {
		ticket.ConfidenceScore = analysis.Confidence
	}
	if !analysis.Failed() {
		ticket.AIResponse = analysis.Response
	}
	if ticket.ConfidenceScore < EscalationThreshold && !ticket.RequiresHumanAttention {
		return ticket.Escalate()
	}
	return false
}

const followUpLeadIn = "\n\nTo better assist you, could you please provide more details about:"

// AugmentResponse appends the follow-up questions triggered by keywords in
// the user's message.
func AugmentResponse(response, message string) string {
	lower := strings.ToLower(message)

	var b strings.Builder
	b.WriteString(response)
	b.WriteString(followUpLeadIn)
	if strings.Contains(lower, "error message") {
		b.WriteString("\n- The exact error message you're seeing")
	}
	if strings.Contains(lower, "not working") {
		b.WriteString("\n- When did this issue start?")
		b.WriteString("\n- Have you made any recent changes to your system?")
	}
	return b.String()
}

func resolveCategory(analysis Analysis, fallback domain.TicketCategory) domain.TicketCategory {
	if analysis.HasCategory {
		category := domain.TicketCategory(analysis.Category)
		if category.Valid() {
			return category
		}
		return domain.CategoryOther
	}
	if fallback.Valid() {
		return fallback
	}
	return domain.CategoryUncategorized
}

func (p *Policy) notify(ctx context.Context, ticket *domain.Ticket) {
	if p.notifier == nil {
		p.logger.Warn("no notifier configured; escalation not delivered", zap.Int64("ticket_id", ticket.ID))
		return
	}
	p.notifier.NotifyEscalation(ctx, ticket.Snapshot())
}

func (p *Policy) record(operation string, analysis Analysis, escalated bool) {
	if operation != "escalate" {
		p.logger.Debug("ticket analysed",
			zap.String("operation", operation),
			zap.String("category", analysis.Category),
			zap.Float64("raw_confidence", analysis.RawConfidence),
			zap.Float64("confidence", analysis.Confidence),
			zap.Bool("escalated", escalated))
	}
	if p.metrics == nil {
		return
	}
	switch {
	case analysis.Failure != FailureNone:
		p.metrics.RecordTriage(operation, "fallback_"+string(analysis.Failure))
	case operation != "escalate":
		p.metrics.RecordTriage(operation, "analysed")
	}
	if escalated {
		p.metrics.RecordTriage(operation, "escalated")
	}
}

func lockKey(ticketID int64) string {
	return fmt.Sprintf("ticket:%d", ticketID)
}
