package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/oms-chat/internal/domain"
	"github.com/spec-kit/oms-chat/internal/repository"
)

// AccessService evaluates ticket chat access. Roles and ticket relations are
// loaded on every call so changes apply to the next event.
type AccessService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

// NewAccessService builds the access policy evaluator.
func NewAccessService(tickets repository.TicketRepository, users repository.UserRepository, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{tickets: tickets, users: users, logger: logger}
}

// HasAccess reports whether the principal may read and write the ticket's
// chat. Any lookup failure denies.
func (s *AccessService) HasAccess(ctx context.Context, ticketID, principalID string) bool {
	user, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		s.logger.Debug("access denied: user lookup failed",
			zap.String("user_id", principalID),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
		return false
	}
	ticket, err := s.tickets.GetAccess(ctx, ticketID)
	if err != nil {
		s.logger.Debug("access denied: ticket lookup failed",
			zap.String("user_id", principalID),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
		return false
	}
	return decide(user, ticket)
}

// decide applies the ticket relation rules in order, first match wins.
func decide(user *domain.User, ticket *domain.TicketAccess) bool {
	switch {
	case user.HasRole(domain.RoleAdmin):
		return true
	case ticket.IsCreator(user.ID):
		return true
	case ticket.IsAssignee(user.ID):
		return true
	case ticket.IsVendor(user.ID):
		return true
	case user.HasRole(domain.RoleOps) && ticket.IsReceiptVerifier(user.ID):
		return true
	case user.HasRole(domain.RoleAccounts):
		return true
	}
	return false
}
