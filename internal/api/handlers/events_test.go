package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivemesh/hivemesh/internal/api/middleware"
	"github.com/hivemesh/hivemesh/internal/realtime"
	"github.com/hivemesh/hivemesh/internal/service"
)

func newEventsServer(t *testing.T, hub *realtime.Hub, userID string) *httptest.Server {
	t.Helper()
	handler := NewEventsHandler(hub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := &service.Identity{UserID: userID, OrgID: "org-1"}
		ctx := context.WithValue(r.Context(), middleware.IdentityKey, identity)
		handler.Subscribe(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForSubscriber(t *testing.T, hub *realtime.Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventsHandler_DeliversPublishedEvents(t *testing.T) {
	hub := realtime.NewHub()
	srv := newEventsServer(t, hub, "user-1")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscriber(t, hub, "user-1")
	hub.Publish("user-1", realtime.Event{Type: "knowledge-request", Payload: map[string]any{"requestId": float64(7)}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev realtime.Event
	err = conn.ReadJSON(&ev)
	require.NoError(t, err)
	assert.Equal(t, "knowledge-request", ev.Type)

	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), payload["requestId"])
}

func TestEventsHandler_UnsubscribesOnDisconnect(t *testing.T) {
	hub := realtime.NewHub()
	srv := newEventsServer(t, hub, "user-1")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	waitForSubscriber(t, hub, "user-1")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("user-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was never removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventsHandler_Unauthorized(t *testing.T) {
	hub := realtime.NewHub()
	handler := NewEventsHandler(hub)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()

	handler.Subscribe(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
