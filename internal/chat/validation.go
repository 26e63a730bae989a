package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/oms-chat/internal/domain"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

// buildMessage validates a send_message payload and returns the message to
// persist. It performs no I/O.
func buildMessage(senderID string, p SendMessagePayload, maxLength int) (*domain.ChatMessage, error) {
	ticketID := strings.TrimSpace(p.TicketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticketId is required", nil)
	}

	var text *string
	if p.Message != nil && strings.TrimSpace(*p.Message) != "" {
		t := *p.Message
		text = &t
	}
	if text == nil && len(p.Attachments) == 0 {
		return nil, apperrors.NewValidationError("message text or at least one attachment is required", nil)
	}
	if text != nil && maxLength > 0 && utf8.RuneCountInString(*text) > maxLength {
		return nil, apperrors.NewValidationError("message is too long", map[string]any{"max_length": maxLength})
	}

	attachments := make([]domain.Attachment, 0, len(p.Attachments))
	for i, att := range p.Attachments {
		if strings.TrimSpace(att.FileName) == "" || strings.TrimSpace(att.URL) == "" {
			return nil, apperrors.NewValidationError("attachment requires fileName and url", map[string]any{"index": i})
		}
		if att.FileSize < 0 {
			return nil, apperrors.NewValidationError("attachment fileSize must not be negative", map[string]any{"index": i})
		}
		attachments = append(attachments, att)
	}

	msgType, err := resolveMessageType(p.MessageType, attachments)
	if err != nil {
		return nil, err
	}

	return &domain.ChatMessage{
		TicketID:    ticketID,
		SenderID:    senderID,
		Text:        text,
		Attachments: attachments,
		MessageType: msgType,
	}, nil
}

// resolveMessageType honours an explicit client type, otherwise infers one
// from the attachments. SYSTEM messages cannot be sent by clients.
func resolveMessageType(requested *domain.MessageType, attachments []domain.Attachment) (domain.MessageType, error) {
	if requested != nil {
		t := domain.MessageType(strings.ToUpper(string(*requested)))
		if !t.Valid() || t == domain.MessageTypeSystem {
			return "", apperrors.NewValidationError("invalid messageType", map[string]any{"messageType": string(*requested)})
		}
		return t, nil
	}
	if len(attachments) == 0 {
		return domain.MessageTypeText, nil
	}
	for _, att := range attachments {
		if !strings.HasPrefix(strings.ToLower(att.MimeType), "image/") {
			return domain.MessageTypeFile, nil
		}
	}
	return domain.MessageTypeImage, nil
}
