package events

import (
	"time"

	"github.com/spec-kit/oms-chat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventChatMessageSent   EventType = "chat_message_sent"
	EventParticipantJoined EventType = "chat_participant_joined"
	EventParticipantLeft   EventType = "chat_participant_left"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string `json:"user_id"`
}

// Event represents a domain event emitted by the chat gateway.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// ChatMessageSentPayload payload.
type ChatMessageSentPayload struct {
	MessageID   string             `json:"message_id"`
	MessageType domain.MessageType `json:"message_type"`
	Attachments int                `json:"attachments"`
	BodyPreview string             `json:"body_preview"`
}
