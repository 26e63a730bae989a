package chat

import (
	"sync"

	"github.com/spec-kit/oms-chat/internal/domain"
)

// Sink is the outbound half of a live transport connection. Send must not
// block on a slow peer; implementations queue and drop the connection when
// the queue is full.
type Sink interface {
	Send(frame []byte) error
	Close(reason string)
}

// Session is one authenticated connection. The principal is fixed for its
// lifetime.
type Session struct {
	id        string
	principal domain.Principal
	sink      Sink

	closeOnce sync.Once
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// PrincipalID returns the id of the authenticated caller.
func (s *Session) PrincipalID() string { return s.principal.ID }

// Principal returns the authenticated caller.
func (s *Session) Principal() domain.Principal { return s.principal }

// Deliver hands a fan-out frame to the transport.
func (s *Session) Deliver(frame []byte) error { return s.sink.Send(frame) }
