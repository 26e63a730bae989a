package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/oms-chat/internal/events"
	"github.com/spec-kit/oms-chat/internal/repository"
)

// PrincipalNotifier pushes frames to a principal's private channel on every
// gateway instance, except where the principal is already in the ticket room.
type PrincipalNotifier interface {
	NotifyOutsideRoom(ctx context.Context, ticketID, principalID, event string, data any) error
}

// TicketNotification is pushed to ticket owners who are online but not
// looking at the ticket chat.
type TicketNotification struct {
	TicketID  string    `json:"ticketId"`
	Title     string    `json:"title,omitempty"`
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
}

const ticketNotificationEvent = "ticket_notification"

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	tickets    repository.TicketRepository
	notifier   PrincipalNotifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, tickets repository.TicketRepository, notifier PrincipalNotifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		tickets:    tickets,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventChatMessageSent, n.handleChatMessageSent)
	n.dispatcher.Subscribe(events.EventParticipantJoined, n.logPresence)
	n.dispatcher.Subscribe(events.EventParticipantLeft, n.logPresence)
}

func (n *NotificationService) handleChatMessageSent(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ChatMessageSentPayload)
	if !ok {
		return errors.New("chat_message_sent: unexpected payload")
	}
	ticket, err := n.tickets.GetAccess(ctx, event.TicketID)
	if err != nil {
		return err
	}

	notification := TicketNotification{
		TicketID:  event.TicketID,
		Title:     ticket.Title,
		MessageID: payload.MessageID,
		SenderID:  event.Actor.UserID,
		Preview:   payload.BodyPreview,
		Timestamp: event.Timestamp,
	}

	recipients := []string{ticket.CreatorID}
	if ticket.AssigneeID != nil {
		recipients = append(recipients, *ticket.AssigneeID)
	}
	seen := make(map[string]struct{}, len(recipients))
	var errs []error
	for _, userID := range recipients {
		if _, dup := seen[userID]; dup || userID == "" || userID == event.Actor.UserID {
			continue
		}
		seen[userID] = struct{}{}
		if err := n.notifier.NotifyOutsideRoom(ctx, event.TicketID, userID, ticketNotificationEvent, notification); err != nil {
			errs = append(errs, err)
			continue
		}
		n.logger.Debug("ticket notification published",
			zap.String("ticket_id", event.TicketID),
			zap.String("user_id", userID))
	}
	return errors.Join(errs...)
}

func (n *NotificationService) logPresence(_ context.Context, event events.Event) error {
	n.logger.Debug(string(event.Type),
		zap.String("ticket_id", event.TicketID),
		zap.String("user_id", event.Actor.UserID))
	return nil
}
