package introspect

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastsToConnectedViewer(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Viewers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Viewers() != 1 {
		t.Fatalf("expected 1 connected viewer, got %d", hub.Viewers())
	}

	hub.Broadcast(Snapshot{Type: "participants", Timestamp: time.Now(), Payload: []string{"p1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), "participants") {
		t.Fatalf("unexpected broadcast payload: %s", msg)
	}
}

func TestSlidingWindowLimiterEnforcesLimit(t *testing.T) {
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	limiter := NewSlidingWindowLimiter(time.Second, 2, clock)

	if !limiter.Allow() || !limiter.Allow() {
		t.Fatalf("expected first two events to be allowed")
	}
	if limiter.Allow() {
		t.Fatalf("expected third event within window to be rejected")
	}
	current = current.Add(2 * time.Second)
	if !limiter.Allow() {
		t.Fatalf("expected event after window to roll to be allowed")
	}
}
