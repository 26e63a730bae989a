package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/oms-chat/internal/domain"
	"github.com/spec-kit/oms-chat/internal/events"
	"github.com/spec-kit/oms-chat/internal/observability"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

// TokenVerifier validates a bearer credential.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Principal, error)
}

// AccessPolicy decides whether a principal may use a ticket's chat. Lookup
// failures are reported as false.
type AccessPolicy interface {
	HasAccess(ctx context.Context, ticketID, principalID string) bool
}

// MessageStore persists chat messages.
type MessageStore interface {
	Append(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	ListRecent(ctx context.Context, ticketID string, page, limit int) (*domain.MessagePage, error)
	TouchConversation(ctx context.Context, ticketID string, at time.Time) error
}

// UserDirectory resolves display names for typing indicators.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Dependencies bundles the collaborators of a Gateway.
type Dependencies struct {
	Verifier   TokenVerifier
	Access     AccessPolicy
	Store      MessageStore
	Users      UserDirectory
	Fanout     Fanout
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Options tunes gateway behaviour.
type Options struct {
	HistoryLimit     int
	MaxMessageLength int
	EventTimeout     time.Duration
}

const (
	defaultHistoryLimit = 50
	defaultEventTimeout = 10 * time.Second
	publishTimeout      = 5 * time.Second
	sendLockStripes     = 64
)

// Gateway owns the presence registry and runs the chat protocol for every
// attached session.
type Gateway struct {
	verifier   TokenVerifier
	access     AccessPolicy
	store      MessageStore
	users      UserDirectory
	fanout     Fanout
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	opts       Options

	registry *Registry
	now      func() time.Time

	// sends into one ticket hold its stripe across persist and publish
	sendLocks [sendLockStripes]sync.Mutex

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewGateway validates deps and builds a gateway.
func NewGateway(deps Dependencies, opts Options) (*Gateway, error) {
	switch {
	case deps.Verifier == nil:
		return nil, errors.New("chat gateway: token verifier is required")
	case deps.Access == nil:
		return nil, errors.New("chat gateway: access policy is required")
	case deps.Store == nil:
		return nil, errors.New("chat gateway: message store is required")
	case deps.Users == nil:
		return nil, errors.New("chat gateway: user directory is required")
	}
	if deps.Fanout == nil {
		deps.Fanout = NewLocalFanout()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = defaultEventTimeout
	}
	return &Gateway{
		verifier:   deps.Verifier,
		access:     deps.Access,
		store:      deps.Store,
		users:      deps.Users,
		fanout:     deps.Fanout,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		opts:       opts,
		registry:   NewRegistry(),
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}, nil
}

// Authenticate verifies a connection credential. It never touches the
// registry, so a failure leaves no trace.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (domain.Principal, error) {
	principal, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		g.metrics.RecordChatError("connect", apperrors.CodeUnauthorized)
		g.logger.Debug("chat authentication failed", zap.Error(err))
		return domain.Principal{}, err
	}
	return principal, nil
}

// Attach registers an authenticated connection and greets it.
func (g *Gateway) Attach(principal domain.Principal, sink Sink) *Session {
	s := &Session{id: uuid.NewString(), principal: principal, sink: sink}

	g.mu.Lock()
	g.sessions[s.id] = s
	g.mu.Unlock()

	g.registry.RegisterConnection(principal.ID, s.id)
	g.fanout.Subscribe(userTopic(principal.ID), s)
	g.metrics.ConnectionOpened()
	g.logger.Info("chat connection opened",
		zap.String("user_id", principal.ID),
		zap.String("connection_id", s.id),
	)

	g.emit(s, EventConnected, connectedData{UserID: principal.ID, Message: "connected to ticket chat"})
	return s
}

// Connect authenticates credential and attaches sink on success.
func (g *Gateway) Connect(ctx context.Context, credential string, sink Sink) (*Session, error) {
	principal, err := g.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	return g.Attach(principal, sink), nil
}

// HandleFrame runs one inbound frame to completion. Errors are reported to
// the session and never end it.
func (g *Gateway) HandleFrame(ctx context.Context, s *Session, raw []byte) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.EventTimeout)
	defer cancel()

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		g.replyError(s, "", ErrorValidation, "malformed frame")
		return
	}
	g.metrics.RecordChatEvent(frame.Event)

	switch frame.Event {
	case EventJoinTicket:
		g.handleJoin(ctx, s, frame)
	case EventLeaveTicket:
		g.handleLeave(ctx, s, frame)
	case EventSendMessage:
		g.handleSend(ctx, s, frame)
	case EventTypingStart:
		g.handleTyping(ctx, s, frame, EventUserTyping)
	case EventTypingStop:
		g.handleTyping(ctx, s, frame, EventUserStoppedTyping)
	default:
		g.replyError(s, frame.Event, ErrorValidation, fmt.Sprintf("unknown event %q", frame.Event))
	}
}

func (g *Gateway) handleJoin(ctx context.Context, s *Session, frame Frame) {
	ticketID, ok := g.ticketFromFrame(s, frame)
	if !ok {
		return
	}
	if !g.access.HasAccess(ctx, ticketID, s.PrincipalID()) {
		g.replyError(s, frame.Event, ErrorAccessDenied, "you do not have access to this ticket chat")
		return
	}
	if g.enterRoom(ctx, s, ticketID) == roomClosed {
		return
	}
	g.sendRoomState(ctx, s, frame.Event, ticketID)
}

// sendRoomState acknowledges a join to the requester and replays recent
// history. A history failure is reported but the join stands.
func (g *Gateway) sendRoomState(ctx context.Context, s *Session, event, ticketID string) {
	g.emit(s, EventJoinedTicket, roomAckData{TicketID: ticketID, Message: "joined ticket chat"})

	page, err := g.store.ListRecent(ctx, ticketID, 1, g.opts.HistoryLimit)
	if err != nil {
		g.logger.Error("load chat history failed",
			zap.String("ticket_id", ticketID),
			zap.String("user_id", s.PrincipalID()),
			zap.Error(err),
		)
		g.replyError(s, event, ErrorJoin, "failed to load message history")
		return
	}
	messages := page.Messages
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	g.emit(s, EventMessagesHistory, historyData{TicketID: ticketID, Messages: messages, Pagination: page.Pagination})
}

func (g *Gateway) handleLeave(ctx context.Context, s *Session, frame Frame) {
	ticketID, ok := g.ticketFromFrame(s, frame)
	if !ok {
		return
	}
	if g.registry.HasJoined(s.ID(), ticketID) {
		g.fanout.Unsubscribe(ticketTopic(ticketID), s.ID())
		if g.registry.LeaveRoom(ticketID, s.PrincipalID(), s.ID()) {
			g.announceDeparture(ctx, s.PrincipalID(), ticketID)
		}
	}
	g.emit(s, EventLeftTicket, roomAckData{TicketID: ticketID, Message: "left ticket chat"})
}

func (g *Gateway) handleSend(ctx context.Context, s *Session, frame Frame) {
	var payload SendMessagePayload
	if err := decodeData(frame.Data, &payload); err != nil {
		g.failSend(s, frame, ErrorValidation, "invalid send_message payload")
		return
	}
	msg, err := buildMessage(s.PrincipalID(), payload, g.opts.MaxMessageLength)
	if err != nil {
		g.failSend(s, frame, ErrorValidation, apperrors.ToDomainError(err).Message)
		return
	}
	if !g.access.HasAccess(ctx, msg.TicketID, s.PrincipalID()) {
		g.failSend(s, frame, ErrorAccessDenied, "you do not have access to this ticket chat")
		return
	}
	switch g.enterRoom(ctx, s, msg.TicketID) {
	case roomClosed:
		return
	case roomEntered:
		g.sendRoomState(ctx, s, frame.Event, msg.TicketID)
	}

	stored, ok := g.persistAndBroadcast(ctx, s, msg)
	if !ok {
		g.failSend(s, frame, ErrorSend, "failed to send message")
		return
	}
	if frame.AckID != "" {
		g.emitAck(s, frame.AckID, AckData{Success: true, Message: stored})
	}

	g.dispatch(ctx, events.Event{
		Type:     events.EventChatMessageSent,
		TicketID: stored.TicketID,
		Actor:    events.Actor{UserID: s.PrincipalID()},
		Payload: events.ChatMessageSentPayload{
			MessageID:   stored.ID,
			MessageType: stored.MessageType,
			Attachments: len(stored.Attachments),
			BodyPreview: preview(stored),
		},
	})
}

// persistAndBroadcast appends msg and publishes it while holding the ticket's
// send lock, so room delivery order matches commit order.
func (g *Gateway) persistAndBroadcast(ctx context.Context, s *Session, msg *domain.ChatMessage) (*domain.ChatMessage, bool) {
	lock := g.sendLock(msg.TicketID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := g.store.Append(ctx, msg)
	if err != nil {
		g.logger.Error("persist chat message failed",
			zap.String("ticket_id", msg.TicketID),
			zap.String("user_id", s.PrincipalID()),
			zap.Error(err),
		)
		return nil, false
	}
	if err := g.store.TouchConversation(ctx, stored.TicketID, stored.CreatedAt); err != nil {
		g.logger.Warn("update ticket last activity failed", zap.String("ticket_id", stored.TicketID), zap.Error(err))
	}

	g.publish(ctx, ticketTopic(stored.TicketID), EventNewMessage, newMessageData{
		Message:   *stored,
		TicketID:  stored.TicketID,
		Timestamp: g.now().UTC(),
	}, PublishOptions{})
	return stored, true
}

func (g *Gateway) handleTyping(ctx context.Context, s *Session, frame Frame, outbound string) {
	ticketID, ok := g.ticketFromFrame(s, frame)
	if !ok {
		return
	}
	if !g.access.HasAccess(ctx, ticketID, s.PrincipalID()) {
		return
	}

	name, err := g.users.DisplayName(ctx, s.PrincipalID())
	if err != nil || strings.TrimSpace(name) == "" {
		name = s.PrincipalID()
	}
	g.publish(ctx, ticketTopic(ticketID), outbound, typingData{
		UserID:    s.PrincipalID(),
		UserName:  name,
		TicketID:  ticketID,
		Timestamp: g.now().UTC(),
	}, PublishOptions{ExcludePrincipal: s.PrincipalID()})
}

// roomEntry is the outcome of enterRoom.
type roomEntry int

const (
	roomAlreadyJoined roomEntry = iota
	roomEntered
	roomClosed
)

// enterRoom joins s to the ticket room unless it already is a member. Other
// members hear about it only when the principal is new to the room. A session
// disconnected while its handler was running is refused and left with no
// subscription.
func (g *Gateway) enterRoom(ctx context.Context, s *Session, ticketID string) roomEntry {
	if g.registry.HasJoined(s.ID(), ticketID) {
		return roomAlreadyJoined
	}
	topic := ticketTopic(ticketID)
	g.fanout.Subscribe(topic, s)
	first, live := g.registry.JoinRoom(ticketID, s.PrincipalID(), s.ID())
	if !live {
		g.fanout.Unsubscribe(topic, s.ID())
		return roomClosed
	}
	if !first {
		return roomEntered
	}
	g.publish(ctx, topic, EventUserJoined, presenceData{
		UserID:    s.PrincipalID(),
		TicketID:  ticketID,
		Timestamp: g.now().UTC(),
	}, PublishOptions{ExcludePrincipal: s.PrincipalID()})
	g.dispatch(ctx, events.Event{
		Type:     events.EventParticipantJoined,
		TicketID: ticketID,
		Actor:    events.Actor{UserID: s.PrincipalID()},
	})
	return roomEntered
}

func (g *Gateway) announceDeparture(ctx context.Context, principalID, ticketID string) {
	g.publish(ctx, ticketTopic(ticketID), EventUserLeft, presenceData{
		UserID:    principalID,
		TicketID:  ticketID,
		Timestamp: g.now().UTC(),
	}, PublishOptions{ExcludePrincipal: principalID})
	g.dispatch(ctx, events.Event{
		Type:     events.EventParticipantLeft,
		TicketID: ticketID,
		Actor:    events.Actor{UserID: principalID},
	})
}

// Disconnect releases everything s holds. Safe to call more than once.
func (g *Gateway) Disconnect(s *Session) {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		departures, offline := g.registry.Disconnect(s.PrincipalID(), s.ID())
		for _, d := range departures {
			g.fanout.Unsubscribe(ticketTopic(d.TicketID), s.ID())
			if d.Last {
				g.announceDeparture(ctx, s.PrincipalID(), d.TicketID)
			}
		}
		g.fanout.Unsubscribe(userTopic(s.PrincipalID()), s.ID())

		g.mu.Lock()
		delete(g.sessions, s.ID())
		g.mu.Unlock()

		g.metrics.ConnectionClosed()
		g.logger.Info("chat connection closed",
			zap.String("user_id", s.PrincipalID()),
			zap.String("connection_id", s.ID()),
			zap.Int("rooms_left", len(departures)),
			zap.Bool("offline", offline),
		)
	})
}

// NotifyOutsideRoom publishes an event on the principal's private topic,
// skipping any instance where the principal is in the ticket room. A
// principal with no connections anywhere receives nothing.
func (g *Gateway) NotifyOutsideRoom(ctx context.Context, ticketID, principalID, event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	return g.fanout.Publish(ctx, userTopic(principalID), frame, PublishOptions{UnlessSubscribedTo: ticketTopic(ticketID)})
}

// IsConnected reports whether the principal has a live connection here.
func (g *Gateway) IsConnected(principalID string) bool { return g.registry.IsConnected(principalID) }

// IsSubscribed reports whether the principal is in the ticket room.
func (g *Gateway) IsSubscribed(ticketID, principalID string) bool {
	return g.registry.IsSubscribed(ticketID, principalID)
}

// Participants lists the principals in the ticket room on this instance.
func (g *Gateway) Participants(ticketID string) []string { return g.registry.SubscribersOf(ticketID) }

// Stats returns registry sizes.
func (g *Gateway) Stats() RegistryStats { return g.registry.Stats() }

// Shutdown closes every live session.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.sink.Close("server shutting down")
		g.Disconnect(s)
	}
	return nil
}

func (g *Gateway) ticketFromFrame(s *Session, frame Frame) (string, bool) {
	var payload TicketPayload
	if err := decodeData(frame.Data, &payload); err != nil || strings.TrimSpace(payload.TicketID) == "" {
		g.replyError(s, frame.Event, ErrorValidation, "ticketId is required")
		return "", false
	}
	return strings.TrimSpace(payload.TicketID), true
}

func (g *Gateway) failSend(s *Session, frame Frame, errType ErrorType, message string) {
	g.replyError(s, frame.Event, errType, message)
	if frame.AckID != "" {
		g.emitAck(s, frame.AckID, AckData{Success: false, Error: message})
	}
}

func (g *Gateway) replyError(s *Session, event string, errType ErrorType, message string) {
	g.metrics.RecordChatError(event, string(errType))
	g.logger.Debug("chat event rejected",
		zap.String("event", event),
		zap.String("user_id", s.PrincipalID()),
		zap.String("connection_id", s.ID()),
		zap.String("type", string(errType)),
		zap.String("reason", message),
	)
	g.emit(s, EventError, errorData{Type: errType, Message: message})
}

func (g *Gateway) emit(s *Session, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		g.logger.Error("encode chat frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	_ = s.sink.Send(frame)
}

func (g *Gateway) emitAck(s *Session, ackID string, data AckData) {
	frame, err := encodeAck(ackID, data)
	if err != nil {
		g.logger.Error("encode chat ack failed", zap.Error(err))
		return
	}
	_ = s.sink.Send(frame)
}

func (g *Gateway) publish(ctx context.Context, topic, event string, data any, opts PublishOptions) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		g.logger.Error("encode chat frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := g.fanout.Publish(ctx, topic, frame, opts); err != nil {
		g.logger.Warn("chat fan-out publish failed", zap.String("topic", topic), zap.String("event", event), zap.Error(err))
	}
}

func (g *Gateway) dispatch(ctx context.Context, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = g.now().UTC()
	if err := g.dispatcher.Publish(ctx, event); err != nil {
		g.logger.Warn("chat event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

func (g *Gateway) sendLock(ticketID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticketID))
	return &g.sendLocks[h.Sum32()%sendLockStripes]
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

const previewLength = 120

func preview(msg *domain.ChatMessage) string {
	if msg.Text == nil {
		if len(msg.Attachments) > 0 {
			return msg.Attachments[0].FileName
		}
		return ""
	}
	runes := []rune(*msg.Text)
	if len(runes) <= previewLength {
		return *msg.Text
	}
	return string(runes[:previewLength]) + "..."
}
