package dto

import (
	"github.com/spec-kit/oms-chat/internal/chat"
	"github.com/spec-kit/oms-chat/internal/domain"
	"github.com/spec-kit/oms-chat/internal/observability"
)

// HistoryResponse is one page of a ticket conversation, oldest first.
type HistoryResponse struct {
	TicketID   string               `json:"ticketId"`
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination domain.Pagination    `json:"pagination"`
}

// TicketPresenceResponse lists who is in a ticket room.
type TicketPresenceResponse struct {
	TicketID     string   `json:"ticketId"`
	Participants []string `json:"participants"`
}

// UserPresenceResponse reports whether a user is connected.
type UserPresenceResponse struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	TicketID string `json:"ticketId,omitempty"`
	InRoom   *bool  `json:"inRoom,omitempty"`
}

// PresenceResponse reports live gateway state.
type PresenceResponse struct {
	Registry chat.RegistryStats            `json:"registry"`
	Metrics  observability.MetricsSnapshot `json:"metrics"`
}
