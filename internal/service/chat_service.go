package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/oms-chat/internal/domain"
	"github.com/spec-kit/oms-chat/internal/repository"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

const (
	defaultHistoryPageSize = 50
	// MaxHistoryPageSize caps a single history page.
	MaxHistoryPageSize = 100
)

// AccessChecker is the subset of AccessService the chat service needs.
type AccessChecker interface {
	HasAccess(ctx context.Context, ticketID, principalID string) bool
}

// ChatService persists chat messages and serves ticket history.
type ChatService struct {
	messages repository.ChatMessageRepository
	tickets  repository.TicketRepository
	users    repository.UserRepository
	access   AccessChecker
}

// ChatDependencies encapsulates repo requirements for the chat service.
type ChatDependencies struct {
	MessageRepo repository.ChatMessageRepository
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	Access      AccessChecker
}

// NewChatService builds the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		messages: deps.MessageRepo,
		tickets:  deps.TicketRepo,
		users:    deps.UserRepo,
		access:   deps.Access,
	}
}

// Append stores msg and returns it with id, timestamp and sender name set.
func (s *ChatService) Append(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	stored := *msg
	if stored.Attachments == nil {
		stored.Attachments = []domain.Attachment{}
	}
	if err := s.messages.Create(ctx, &stored); err != nil {
		return nil, apperrors.MapError(err)
	}
	if stored.SenderName == "" {
		if name, err := s.DisplayName(ctx, stored.SenderID); err == nil {
			stored.SenderName = name
		}
	}
	return &stored, nil
}

// ListRecent returns one page of history in chronological order. Page 1 is
// the most recent slice of the conversation.
func (s *ChatService) ListRecent(ctx context.Context, ticketID string, page, limit int) (*domain.MessagePage, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.messages.CountByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	messages, err := s.messages.ListRecent(ctx, ticketID, limit, (page-1)*limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	totalPages := (total + limit - 1) / limit
	return &domain.MessagePage{
		Messages: messages,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}, nil
}

// TouchConversation records the ticket's last chat activity.
func (s *ChatService) TouchConversation(ctx context.Context, ticketID string, at time.Time) error {
	return apperrors.MapError(s.tickets.TouchLastMessage(ctx, ticketID, at))
}

// History serves the REST history endpoint under the chat access policy.
func (s *ChatService) History(ctx context.Context, principalID, ticketID string, page, limit int) (*domain.MessagePage, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperrors.NewValidationError("ticket id is required", nil)
	}
	if !s.access.HasAccess(ctx, ticketID, principalID) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket chat")
	}
	return s.ListRecent(ctx, ticketID, page, limit)
}

// DisplayName returns the user's name, falling back to the id when unset.
func (s *ChatService) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if strings.TrimSpace(user.Name) == "" {
		return user.ID, nil
	}
	return user.Name, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultHistoryPageSize
	}
	if limit > MaxHistoryPageSize {
		limit = MaxHistoryPageSize
	}
	return page, limit
}
