package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/eventbus"
)

func TestHub_SubscribeScopesToTenant(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient("north")
	hub.Register(client)
	hub.Subscribe(client, []string{eventbus.EntityBooking})

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount("north:booking") != 1 {
		t.Fatalf("expected subscriber on north:booking, got %d", hub.TopicCount("north:booking"))
	}
	if hub.TopicCount("south:booking") != 0 {
		t.Fatal("subscription leaked into another tenant")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient("north")
	hub.Register(client)
	hub.Subscribe(client, []string{eventbus.EntityMedication})
	hub.Unregister(client)

	if hub.ClientCount() != 0 || hub.TopicCount("north:medication_administration") != 0 {
		t.Fatal("expected client and topic to be removed")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send to be closed")
	}
	// second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_HandleEventBroadcastsToTenantTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	north := NewClient("north")
	south := NewClient("south")
	for _, c := range []*Client{north, south} {
		hub.Register(c)
		hub.Subscribe(c, []string{eventbus.EntityBooking})
	}

	err := hub.HandleEvent(context.Background(), eventbus.EntityChanged{
		TenantID: "north", Entity: eventbus.EntityBooking, ID: "b-1", Action: eventbus.ActionUpdated, At: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case msg := <-north.Send:
		var evt Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if evt.Type != "updated" || evt.ID != "b-1" || evt.Entity != eventbus.EntityBooking {
			t.Errorf("unexpected event %+v", evt)
		}
	default:
		t.Fatal("north client received nothing")
	}
	select {
	case <-south.Send:
		t.Fatal("south client received another tenant's event")
	default:
	}
}

func TestHub_ProcessMessageUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient("north")
	hub.Register(client)
	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"booking", "event"}})
	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"booking"}})

	if hub.TopicCount("north:booking") != 0 {
		t.Error("expected booking subscription removed")
	}
	if hub.TopicCount("north:event") != 1 {
		t.Error("expected event subscription kept")
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient("north")
	hub.Register(client)
	hub.Subscribe(client, []string{"event"})

	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast("north:event", Event{Type: "created"})
	}
	if len(client.Send) != sendBuffer {
		t.Errorf("expected buffer to be full at %d, got %d", sendBuffer, len(client.Send))
	}
}

func withPrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := context.WithValue(c.Request().Context(), auth.UserIDKey, "u-1")
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set("tenant_id", "north")
		return next(c)
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	h := NewHandler(hub, nil)
	e.GET("/ws", h.HandleConnect, withPrincipal)

	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub, _ := json.Marshal(ClientMessage{Action: "subscribe", Topics: []string{"booking"}})
	if err := conn.WriteMessage(gorillawebsocket.TextMessage, sub); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount("north:booking") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast("north:booking", Event{Type: "created", Entity: "booking", ID: "b-9"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), `"b-9"`) {
		t.Errorf("unexpected message %s", msg)
	}
}

func TestHandler_RejectsOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	h := NewHandler(hub, []string{"https://app.carehub.test"})
	e.GET("/ws", h.HandleConnect, withPrincipal)

	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.test"}}
	if _, _, err := gorillawebsocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake to fail for disallowed origin")
	}
}
