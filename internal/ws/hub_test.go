package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/fitgram/internal/chat"
	"github.com/fitgram/internal/handler"
	"github.com/fitgram/internal/middleware"
	"github.com/fitgram/internal/model"
	"github.com/fitgram/internal/repository"
	memorystorage "github.com/fitgram/internal/storage/memory"
	"github.com/fitgram/internal/testutil"
	"github.com/fitgram/internal/ws"
)

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// waitForEvent reads frames until one of the wanted type arrives, skipping
// interleaved events.
func waitForEvent(t *testing.T, conn *websocket.Conn, eventType string) wireEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		var ev wireEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		if ev.Type == eventType {
			return ev
		}
	}
}

func dialWS(t *testing.T, serverURL, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?session_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRealtimeChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded postgres")
	}
	pool := testutil.StartDB(t, 54332)
	ctx := context.Background()

	alice := testutil.SeedUser(t, pool, "ws-alice", false)
	bob := testutil.SeedUser(t, pool, "ws-bob", false)

	hub := ws.NewHub(100, 64)
	svc := chat.NewService(
		pool,
		repository.NewUserRepository(pool),
		repository.NewMessageRepository(pool),
		repository.NewReactionRepository(pool),
		repository.NewConversationRepository(pool),
		repository.NewFollowRepository(pool),
		hub,
		nil,
		24*time.Hour,
		2*time.Minute,
	)
	hub.SetService(svc)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	sessions := memorystorage.New()
	if err := sessions.SetSession(ctx, "token-alice", alice.ID, time.Hour); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := sessions.SetSession(ctx, "token-bob", bob.ID, time.Hour); err != nil {
		t.Fatalf("set session: %v", err)
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessions))
		r.Get("/ws", handler.NewWSHandler(hub, "*").ServeWS)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	aliceConn := dialWS(t, server.URL, "token-alice")
	bobConn := dialWS(t, server.URL, "token-bob")
	bobTab2 := dialWS(t, server.URL, "token-bob")

	// Message event fans out to the recipient, every recipient tab, and the
	// sender's own connections.
	send := map[string]any{"type": "message", "to": bob.ID, "text": "see you at the gym"}
	if err := aliceConn.WriteJSON(send); err != nil {
		t.Fatalf("write message: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{
		"bob": bobConn, "bob tab 2": bobTab2, "alice echo": aliceConn,
	} {
		ev := waitForEvent(t, conn, "message")
		var m model.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			t.Fatalf("%s: decode message payload: %v", name, err)
		}
		if m.Text != "see you at the gym" || m.FromUser != alice.ID {
			t.Errorf("%s: got %+v", name, m)
		}
	}

	// Typing indicator relays without persistence.
	if err := aliceConn.WriteJSON(map[string]any{"type": "typing", "to": bob.ID, "is_typing": true}); err != nil {
		t.Fatalf("write typing: %v", err)
	}
	ev := waitForEvent(t, bobConn, "typing")
	var typing chat.TypingPayload
	if err := json.Unmarshal(ev.Payload, &typing); err != nil {
		t.Fatalf("decode typing: %v", err)
	}
	if typing.From != alice.ID || !typing.IsTyping {
		t.Errorf("typing payload = %+v", typing)
	}

	// Read event advances statuses and sends the sender a receipt.
	if err := bobConn.WriteJSON(map[string]any{"type": "read", "from": alice.ID}); err != nil {
		t.Fatalf("write read: %v", err)
	}
	ev = waitForEvent(t, aliceConn, "read")
	var read chat.ReadPayload
	if err := json.Unmarshal(ev.Payload, &read); err != nil {
		t.Fatalf("decode read: %v", err)
	}
	if read.From != bob.ID {
		t.Errorf("read receipt from %s, want bob", read.From)
	}

	// Invalid sends come back as error events on the offending connection.
	if err := aliceConn.WriteJSON(map[string]any{"type": "message", "to": alice.ID, "text": "me"}); err != nil {
		t.Fatalf("write self message: %v", err)
	}
	waitForEvent(t, aliceConn, "error")

	if err := aliceConn.WriteJSON(map[string]any{"type": "nonsense"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	waitForEvent(t, aliceConn, "error")
}

func TestWSRequiresSession(t *testing.T) {
	hub := ws.NewHub(10, 64)
	sessions := memorystorage.New()

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessions))
		r.Get("/ws", handler.NewWSHandler(hub, "*").ServeWS)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session_token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial with bogus token succeeded")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("status = %v, want 401", resp)
	}
}

func TestWSOriginRejected(t *testing.T) {
	hub := ws.NewHub(10, 64)
	sessions := memorystorage.New()
	if err := sessions.SetSession(context.Background(), "tok", "user-1", time.Hour); err != nil {
		t.Fatalf("set session: %v", err)
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessions))
		r.Get("/ws", handler.NewWSHandler(hub, "https://app.fitgram.example").ServeWS)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session_token=tok"
	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("dial from disallowed origin succeeded")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Errorf("status = %v, want 403", resp)
	}
}
