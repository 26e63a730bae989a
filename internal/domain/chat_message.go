package domain

import "time"

// MessageType differentiates chat message payloads.
type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeFile   MessageType = "FILE"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeImage, MessageTypeSystem:
		return true
	}
	return false
}

// ChatMessage is an immutable entry in a ticket conversation.
type ChatMessage struct {
	ID          string       `json:"id"`
	TicketID    string       `json:"ticketId"`
	SenderID    string       `json:"senderId"`
	SenderName  string       `json:"senderName,omitempty"`
	Text        *string      `json:"message,omitempty"`
	Attachments []Attachment `json:"attachments"`
	MessageType MessageType  `json:"messageType"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Attachment stores uploaded file metadata for a chat message.
type Attachment struct {
	FileName   string `json:"fileName"`
	URL        string `json:"url"`
	StorageKey string `json:"storageKey,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
}

// Pagination describes a page of history.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// MessagePage is a slice of history ordered oldest to newest.
type MessagePage struct {
	Messages   []ChatMessage `json:"messages"`
	Pagination Pagination    `json:"pagination"`
}
