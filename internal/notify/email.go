package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/config"
)

// defaultSMTPTimeout bounds a conversation when ctx carries no deadline.
const defaultSMTPTimeout = 30 * time.Second

// SendMailFunc is smtp.SendMail with a context bounding the conversation.
type SendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender relays notices through an SMTP server using STARTTLS when the
// server offers it.
type EmailSender struct {
	cfg      config.NotificationConfig
	logger   *zap.Logger
	sendMail SendMailFunc
}

// NewEmailSender builds a sender; a nil sendMail dials the relay directly.
func NewEmailSender(cfg config.NotificationConfig, logger *zap.Logger, sendMail SendMailFunc) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sendMail == nil {
		sendMail = sendMailContext
	}
	return &EmailSender{cfg: cfg, logger: logger, sendMail: sendMail}
}

func (s *EmailSender) Name() string { return "email" }

// Configured reports whether SMTP credentials are present.
func (s *EmailSender) Configured() bool {
	return strings.TrimSpace(s.cfg.SMTPUsername) != "" && strings.TrimSpace(s.cfg.SMTPPassword) != ""
}

// Send delivers msg. Missing credentials skip delivery with a warning rather
// than failing.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		s.logger.Warn("email credentials not configured; skipping notification",
			zap.Int64("ticket_id", msg.Ticket.ID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = s.cfg.SMTPUsername
	}
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPServer)
	if err := s.sendMail(ctx, s.cfg.SMTPAddr(), auth, from, []string{msg.To}, buildMIME(from, msg)); err != nil {
		return fmt.Errorf("send email for ticket %d: %w", msg.Ticket.ID, err)
	}
	s.logger.Info("notification sent", zap.Int64("ticket_id", msg.Ticket.ID), zap.String("to", msg.To))
	return nil
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// sendMailContext runs the same exchange as smtp.SendMail on a connection
// whose deadline follows ctx.
func sendMailContext(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultSMTPTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return contextError(ctx, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return contextError(ctx, err)
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return contextError(ctx, err)
		}
	}
	if err := c.Mail(from); err != nil {
		return contextError(ctx, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return contextError(ctx, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return contextError(ctx, err)
	}
	if _, err := w.Write(msg); err != nil {
		return contextError(ctx, err)
	}
	if err := w.Close(); err != nil {
		return contextError(ctx, err)
	}
	return contextError(ctx, c.Quit())
}

func contextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}
