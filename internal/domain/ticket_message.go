package domain

import "time"

// MessageAuthorType indicates who authored a message.
type MessageAuthorType string

const (
	AuthorTypeUser      MessageAuthorType = "user"
	AuthorTypeAssistant MessageAuthorType = "assistant"
	AuthorTypeSystem    MessageAuthorType = "system"
)

// Valid reports whether a is a known author.
func (a MessageAuthorType) Valid() bool {
	switch a {
	case AuthorTypeUser, AuthorTypeAssistant, AuthorTypeSystem:
		return true
	}
	return false
}

// TicketMessage is one turn of a ticket conversation. Confidence is set only
// on assistant replies.
type TicketMessage struct {
	ID         int64
	TicketID   int64
	AuthorType MessageAuthorType
	Body       string
	Confidence *float64
	CreatedAt  time.Time
}
