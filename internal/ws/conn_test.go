package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Louie-KC/chat/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const testSecret = "ws-test-secret"

type fakeBackend struct {
	hub *Hub

	mu      sync.Mutex
	revoked bool
	sent    []string
}

func (b *fakeBackend) Authorize(_ context.Context, sessionID, userID, roomID uint) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked {
		return "", errors.New("revoked")
	}
	return "alice", nil
}

func (b *fakeBackend) Send(_ context.Context, roomID, userID uint, body string) error {
	b.mu.Lock()
	b.sent = append(b.sent, body)
	b.mu.Unlock()
	payload, _ := json.Marshal(map[string]interface{}{"type": "message", "content": body, "user_id": userID})
	b.hub.Broadcast(roomID, payload)
	return nil
}

func (b *fakeBackend) Publish(roomID uint, payload []byte) { b.hub.Broadcast(roomID, payload) }

func (b *fakeBackend) setRevoked(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked = v
}

func (b *fakeBackend) sentBodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

func startServer(t *testing.T) (*httptest.Server, *fakeBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	be := &fakeBackend{hub: hub}
	r := gin.New()
	r.GET("/ws", Serve(hub, be, testSecret))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, be
}

func wsURL(srv *httptest.Server, ticket string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?ticket=" + ticket
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt map[string]interface{}
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	return evt
}

func TestServe_RejectsBadTicket(t *testing.T) {
	srv, _ := startServer(t)
	expired, _ := auth.IssueTicket(testSecret, 1, 1, 1, -time.Minute)
	wrongKey, _ := auth.IssueTicket("other", 1, 1, 1, time.Minute)

	for name, ticket := range map[string]string{"missing": "", "expired": expired, "wrong key": wrongKey} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ticket), nil)
			if err == nil {
				t.Fatal("Dial() should fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %v, want 401", resp)
			}
		})
	}
}

func TestServe_RejectsRevokedSession(t *testing.T) {
	srv, be := startServer(t)
	be.setRevoked(true)
	ticket, _ := auth.IssueTicket(testSecret, 1, 1, 1, time.Minute)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ticket), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Dial() = %v, %v; want 401", resp, err)
	}
}

func TestServe_SendsThroughBackend(t *testing.T) {
	srv, be := startServer(t)
	ticket, _ := auth.IssueTicket(testSecret, 1, 7, 1, time.Minute)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ticket), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if evt := readEvent(t, conn); evt["type"] != "join" || evt["username"] != "alice" {
		t.Fatalf("first event = %v, want join", evt)
	}
	if err := conn.WriteJSON(InboundMessage{Type: "message", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if evt := readEvent(t, conn); evt["type"] != "message" || evt["content"] != "hi" {
		t.Errorf("message event = %v", evt)
	}
	if err := conn.WriteJSON(InboundMessage{Type: "typing", IsTyping: true}); err != nil {
		t.Fatal(err)
	}
	if evt := readEvent(t, conn); evt["type"] != "typing" || evt["is_typing"] != true {
		t.Errorf("typing event = %v", evt)
	}
	if got := be.sentBodies(); len(got) != 1 || got[0] != "hi" {
		t.Errorf("backend sent = %v, want [hi]", got)
	}
}

func TestServe_ClosesWhenMembershipRevoked(t *testing.T) {
	srv, be := startServer(t)
	ticket, _ := auth.IssueTicket(testSecret, 1, 8, 1, time.Minute)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ticket), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)

	be.setRevoked(true)
	if err := conn.WriteJSON(InboundMessage{Type: "message", Content: "late"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if got := be.sentBodies(); len(got) != 0 {
		t.Errorf("backend sent = %v after revocation", got)
	}
}
