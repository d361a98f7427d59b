package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSender posts escalations as JSON to an HTTP endpoint.
type WebhookSender struct {
	url     string
	timeout time.Duration
}

type webhookPayload struct {
	Event   string                `json:"event"`
	Subject string                `json:"subject"`
	Text    string                `json:"text"`
	Ticket  domain.TicketSnapshot `json:"ticket"`
}

// NewWebhookSender returns nil when url is empty.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{url: url, timeout: timeout}
}

func (w *WebhookSender) Name() string { return "webhook" }

func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := w.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(w.url)
	agent.JSON(webhookPayload{
		Event:   "ticket_escalated",
		Subject: msg.Subject,
		Text:    msg.Body,
		Ticket:  msg.Ticket,
	})
	agent.Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post webhook for ticket %d: %w", msg.Ticket.ID, errors.Join(errs...))
	}
	if code >= 300 {
		return fmt.Errorf("webhook for ticket %d returned %d: %s", msg.Ticket.ID, code, truncate(string(body), 200))
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
