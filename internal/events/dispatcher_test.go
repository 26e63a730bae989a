package events

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventChatMessageSent, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketID)
		return errors.New("first failed")
	})
	d.Subscribe(EventChatMessageSent, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventParticipantJoined, func(context.Context, Event) error {
		calls = append(calls, "wrong type")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventChatMessageSent, TicketID: "T1"})
	if err == nil {
		t.Error("expected the first handler's error to be reported")
	}
	if len(calls) != 2 || calls[0] != "first:T1" || calls[1] != "second:T1" {
		t.Errorf("calls = %v", calls)
	}
}

func TestDispatcherNoHandlers(t *testing.T) {
	if err := NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventParticipantLeft}); err != nil {
		t.Errorf("Publish with no handlers: %v", err)
	}
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventParticipantJoined, func(context.Context, Event) error {
		panic("boom")
	})
	d.Subscribe(EventParticipantJoined, func(context.Context, Event) error {
		ran = true
		return nil
	})
	d.Subscribe(EventParticipantJoined, nil)

	err := d.Publish(context.Background(), Event{Type: EventParticipantJoined})
	if err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Errorf("err = %v, want recovered panic", err)
	}
	if !ran {
		t.Error("handler after the panicking one did not run")
	}
}
