package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spec-kit/oms-chat/internal/auth"
	"github.com/spec-kit/oms-chat/internal/chat"
	"github.com/spec-kit/oms-chat/internal/config"
	"github.com/spec-kit/oms-chat/internal/domain"
)

type allowAll struct{}

func (allowAll) HasAccess(context.Context, string, string) bool { return true }

type memoryStore struct{}

func (memoryStore) Append(_ context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	stored := *msg
	stored.ID = "m1"
	stored.CreatedAt = time.Now().UTC()
	return &stored, nil
}

func (memoryStore) ListRecent(_ context.Context, _ string, page, limit int) (*domain.MessagePage, error) {
	return &domain.MessagePage{Messages: []domain.ChatMessage{}, Pagination: domain.Pagination{Page: page, Limit: limit}}, nil
}

func (memoryStore) TouchConversation(context.Context, string, time.Time) error { return nil }

type idNames struct{}

func (idNames) DisplayName(_ context.Context, userID string) (string, error) { return userID, nil }

func newTestServer(t *testing.T) (*httptest.Server, *auth.TokenManager, *chat.Gateway) {
	t.Helper()
	tokens := auth.NewTokenManager("ws-test-secret", 5)
	gw, err := chat.NewGateway(chat.Dependencies{
		Verifier: auth.NewVerifier(tokens),
		Access:   allowAll{},
		Store:    memoryStore{},
		Users:    idNames{},
	}, chat.Options{})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	srv := NewServer(config.ChatConfig{SendBuffer: 16}, gw, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, tokens, gw
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
}

func readFrame(t *testing.T, conn *websocket.Conn) chat.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var f chat.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func TestUpgradeRejectsMissingToken(t *testing.T) {
	ts, _, gw := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	if err == nil {
		t.Fatal("dial succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}
	if stats := gw.Stats(); stats.Connections != 0 {
		t.Fatalf("rejected handshake registered a connection: %+v", stats)
	}
}

func TestConnectJoinAndSend(t *testing.T) {
	ts, tokens, gw := newTestServer(t)
	token, _, err := tokens.GenerateToken("alice", []domain.Role{domain.RoleOps})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if f := readFrame(t, conn); f.Event != chat.EventConnected {
		t.Fatalf("first frame = %s, want connected", f.Event)
	}

	join := `{"event":"join_ticket","data":{"ticketId":"T1"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(join)); err != nil {
		t.Fatalf("write join: %v", err)
	}
	for _, want := range []string{chat.EventJoinedTicket, chat.EventMessagesHistory} {
		if f := readFrame(t, conn); f.Event != want {
			t.Fatalf("frame = %s, want %s", f.Event, want)
		}
	}

	send := `{"event":"send_message","ackId":"a1","data":{"ticketId":"T1","message":"hello"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(send)); err != nil {
		t.Fatalf("write send: %v", err)
	}
	if f := readFrame(t, conn); f.Event != chat.EventNewMessage {
		t.Fatalf("frame = %s, want new_message", f.Event)
	}
	ack := readFrame(t, conn)
	if ack.Event != chat.EventAck || ack.AckID != "a1" {
		t.Fatalf("ack frame = %+v", ack)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if f := readFrame(t, conn); f.Event != chat.EventError {
		t.Fatalf("frame = %s, want error", f.Event)
	}

	if !gw.IsSubscribed("T1", "alice") {
		t.Fatal("alice is not in the room")
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for gw.IsConnected("alice") {
		if time.Now().After(deadline) {
			t.Fatal("closing the socket did not disconnect the session")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if gw.IsSubscribed("T1", "alice") {
		t.Fatal("room membership survived disconnect")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://oms.example.com/"})
	cases := map[string]bool{
		"":                         true,
		"https://oms.example.com":  true,
		"HTTPS://OMS.EXAMPLE.COM":  true,
		"https://evil.example.com": false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := check(r); got != want {
			t.Errorf("origin %q allowed = %v, want %v", origin, got, want)
		}
	}
	if !originChecker(nil)(httptest.NewRequest(http.MethodGet, "/ws", nil)) {
		t.Error("empty allow list should accept everything")
	}
}
