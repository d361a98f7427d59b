package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/events"
	"github.com/spec-kit/helpdesk-triage/internal/notify"
)

// NotificationQueue accepts messages for asynchronous delivery.
type NotificationQueue interface {
	Enqueue(msg notify.Message) error
}

// NotificationService turns domain events into support team notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      NotificationQueue
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue NotificationQueue, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	n.dispatcher.Subscribe(events.EventTicketSubmitted, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.logEvent)
	n.dispatcher.Subscribe(events.EventMessageHandled, n.logEvent)
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		n.logger.Error("unexpected escalation payload", zap.Int64("ticket_id", event.TicketID))
		return nil
	}
	n.logger.Info("TicketEscalated",
		zap.Int64("ticket_id", event.TicketID),
		zap.Float64("confidence_score", payload.Ticket.ConfidenceScore))

	if n.queue == nil {
		n.logger.Warn("no notification queue configured", zap.Int64("ticket_id", event.TicketID))
		return nil
	}
	return n.queue.Enqueue(notify.NewEscalationMessage(n.cfg, payload.Ticket))
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

// EventNotifier hands escalations to the dispatcher so that delivery happens
// off the triage path.
type EventNotifier struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEventNotifier builds a notifier publishing on dispatcher.
func NewEventNotifier(dispatcher events.Dispatcher, logger *zap.Logger) *EventNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventNotifier{dispatcher: dispatcher, logger: logger}
}

// NotifyEscalation implements triage.Notifier.
func (e *EventNotifier) NotifyEscalation(ctx context.Context, ticket domain.TicketSnapshot) {
	err := e.dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Actor:    domain.AuthorTypeAssistant,
		Payload:  events.TicketEscalatedPayload{Ticket: ticket},
	})
	if err != nil {
		e.logger.Error("failed to notify support team", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}
