package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// TicketMessageRepository stores the conversation attached to a ticket.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds a pgx-backed transcript store.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	if !msg.AuthorType.Valid() {
		return fmt.Errorf("unknown message author %q", msg.AuthorType)
	}
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_type, body, confidence)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorType,
		msg.Body,
		msg.Confidence,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// ListByTicket returns the conversation oldest first.
func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, author_type, body, confidence, created_at
        FROM ticket_messages
        WHERE ticket_id = $1
        ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketMessage, error) {
		var msg domain.TicketMessage
		err := row.Scan(&msg.ID, &msg.TicketID, &msg.AuthorType, &msg.Body, &msg.Confidence, &msg.CreatedAt)
		return msg, err
	})
}
