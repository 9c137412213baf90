package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"macropulse/pkg/logger"
)

func muxFor(hub *Hub) http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/ws", hub.HandleWS)
	return m
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(io.Discard, "error"))
	server := httptest.NewServer(muxFor(hub))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	hub.Broadcast(map[string]string{"indicator": "pce"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg map[string]string
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg["indicator"] != "pce" {
		t.Errorf("payload = %v", msg)
	}
}

func TestHubClientDisconnect(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(io.Discard, "error"))
	server := httptest.NewServer(muxFor(hub))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubBroadcastNoClients(t *testing.T) {
	hub := NewHub(logger.NewWithWriter(io.Discard, "error"))
	// Must not panic or block.
	hub.Broadcast(map[string]string{"indicator": "pce"})
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("clients = %d", n)
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("clients = %d, want %d", hub.ClientCount(), want)
}
