package chat

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/oms-chat/internal/domain"
)

// Inbound event names.
const (
	EventJoinTicket  = "join_ticket"
	EventLeaveTicket = "leave_ticket"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// Outbound event names.
const (
	EventConnected          = "connected"
	EventJoinedTicket       = "joined_ticket"
	EventLeftTicket         = "left_ticket"
	EventMessagesHistory    = "messages_history"
	EventNewMessage         = "new_message"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventUserTyping         = "user_typing"
	EventUserStoppedTyping  = "user_stopped_typing"
	EventTicketNotification = "ticket_notification"
	EventError              = "error"
	EventAck                = "ack"
)

// ErrorType is the machine-readable category of an error event.
type ErrorType string

const (
	ErrorAccessDenied ErrorType = "ACCESS_DENIED"
	ErrorValidation   ErrorType = "VALIDATION_ERROR"
	ErrorJoin         ErrorType = "JOIN_ERROR"
	ErrorSend         ErrorType = "SEND_ERROR"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	AckID string `json:"ackId,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

func encodeAck(ackID string, data AckData) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: EventAck, Data: data, AckID: ackID})
}

// TicketPayload is the body of join/leave/typing events.
type TicketPayload struct {
	TicketID string `json:"ticketId"`
}

// SendMessagePayload is the body of send_message.
type SendMessagePayload struct {
	TicketID    string              `json:"ticketId"`
	Message     *string             `json:"message,omitempty"`
	MessageType *domain.MessageType `json:"messageType,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

type connectedData struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type roomAckData struct {
	TicketID string `json:"ticketId"`
	Message  string `json:"message"`
}

type historyData struct {
	TicketID   string               `json:"ticketId"`
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination domain.Pagination    `json:"pagination"`
}

type newMessageData struct {
	Message   domain.ChatMessage `json:"message"`
	TicketID  string             `json:"ticketId"`
	Timestamp time.Time          `json:"timestamp"`
}

type presenceData struct {
	UserID    string    `json:"userId"`
	TicketID  string    `json:"ticketId"`
	Timestamp time.Time `json:"timestamp"`
}

type typingData struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	TicketID  string    `json:"ticketId"`
	Timestamp time.Time `json:"timestamp"`
}

type errorData struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// AckData answers a send_message carrying an ackId.
type AckData struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Message *domain.ChatMessage `json:"message,omitempty"`
}
