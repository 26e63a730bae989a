package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/oms-chat/internal/api/dto"
	"github.com/spec-kit/oms-chat/internal/auth"
	"github.com/spec-kit/oms-chat/internal/chat"
	"github.com/spec-kit/oms-chat/internal/domain"
	"github.com/spec-kit/oms-chat/internal/observability"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

// HistoryReader serves ticket chat history under the access policy.
type HistoryReader interface {
	History(ctx context.Context, principalID, ticketID string, page, limit int) (*domain.MessagePage, error)
}

// PresenceReporter exposes live gateway state of this instance.
type PresenceReporter interface {
	Stats() chat.RegistryStats
	Participants(ticketID string) []string
	IsConnected(principalID string) bool
	IsSubscribed(ticketID, principalID string) bool
}

// TicketChatHandler exposes ticket chat over REST.
type TicketChatHandler struct {
	history  HistoryReader
	presence PresenceReporter
	metrics  *observability.Metrics
}

// NewTicketChatHandler constructs handler.
func NewTicketChatHandler(history HistoryReader, presence PresenceReporter, metrics *observability.Metrics) *TicketChatHandler {
	return &TicketChatHandler{history: history, presence: presence, metrics: metrics}
}

// History handles GET /api/tickets/:id/messages.
func (h *TicketChatHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID := c.Params("id")
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)

	result, err := h.history.History(c.UserContext(), principal.ID, ticketID, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.HistoryResponse{
			TicketID:   ticketID,
			Messages:   result.Messages,
			Pagination: result.Pagination,
		},
	})
}

// TicketPresence handles GET /api/chat/presence/tickets/:id.
func (h *TicketChatHandler) TicketPresence(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	return c.JSON(fiber.Map{
		"data": dto.TicketPresenceResponse{
			TicketID:     ticketID,
			Participants: h.presence.Participants(ticketID),
		},
	})
}

// UserPresence handles GET /api/chat/presence/users/:id. With ?ticketId the
// response also says whether the user is in that room.
func (h *TicketChatHandler) UserPresence(c *fiber.Ctx) error {
	userID := c.Params("id")
	resp := dto.UserPresenceResponse{UserID: userID, Online: h.presence.IsConnected(userID)}
	if ticketID := c.Query("ticketId"); ticketID != "" {
		inRoom := h.presence.IsSubscribed(ticketID, userID)
		resp.TicketID = ticketID
		resp.InRoom = &inRoom
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Presence handles GET /api/chat/presence.
func (h *TicketChatHandler) Presence(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"data": dto.PresenceResponse{
			Registry: h.presence.Stats(),
			Metrics:  h.metrics.Snapshot(),
		},
	})
}
