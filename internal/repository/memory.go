package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// ErrTicketNotFound is returned by the in-memory store for unknown ids. It
// wraps pgx.ErrNoRows so callers handle both stores the same way.
var ErrTicketNotFound = fmt.Errorf("ticket not found: %w", pgx.ErrNoRows)

// MemoryTicketRepository keeps tickets in process. It is used when no
// database is configured.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	nextID  int64
	tickets map[int64]domain.Ticket
	now     func() time.Time
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[int64]domain.Ticket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	ticket.ID = r.nextID
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return ErrTicketNotFound
	}
	ticket.UpdatedAt = r.now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	copied := cloneTicket(ticket)
	return &copied, nil
}

func (r *MemoryTicketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if matches(ticket, filter) {
			result = append(result, cloneTicket(ticket))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(result) {
			return nil, nil
		}
		end := offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}
	return result, nil
}

func matches(ticket domain.Ticket, filter TicketFilter) bool {
	if filter.Status != nil && ticket.Status != *filter.Status {
		return false
	}
	if filter.Category != nil && ticket.Category != *filter.Category {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		t.ResolvedAt = &at
	}
	return t
}

// MemoryMessageRepository keeps ticket transcripts in process.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	nextID   int64
	messages map[int64][]domain.TicketMessage
}

// NewMemoryMessageRepository builds an empty transcript store.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[int64][]domain.TicketMessage)}
}

func (r *MemoryMessageRepository) Create(_ context.Context, msg *domain.TicketMessage) error {
	if !msg.AuthorType.Valid() {
		return fmt.Errorf("unknown message author %q", msg.AuthorType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now().UTC()
	r.messages[msg.TicketID] = append(r.messages[msg.TicketID], *msg)
	return nil
}

func (r *MemoryMessageRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.TicketMessage(nil), r.messages[ticketID]...), nil
}
