package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/testhelpers"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsEventsToAllClients(t *testing.T) {
	hub, server, _ := startHub(t)
	first := dial(t, server)
	second := dial(t, server)

	testhelpers.Eventually(t, 2*time.Second, func() bool { return hub.ClientCount() == 2 }, "clients never registered")

	hub.Publish(context.Background(), events.Event{
		Type:        events.TypeAnomalyDetected,
		AnomalyID:   "a-1",
		AnomalyType: database.AnomalyTypeDelayedShipment,
		Severity:    database.SeverityCritical,
		Status:      database.AnomalyStatusOpen,
	})

	for i, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		var got events.Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("client %d decode: %v", i, err)
		}
		if got.AnomalyID != "a-1" || got.Type != events.TypeAnomalyDetected {
			t.Errorf("client %d got %+v", i, got)
		}
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, server, _ := startHub(t)
	conn := dial(t, server)

	testhelpers.Eventually(t, 2*time.Second, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	conn.Close()
	testhelpers.Eventually(t, 2*time.Second, func() bool { return hub.ClientCount() == 0 }, "client never unregistered")
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, server, cancel := startHub(t)
	conn := dial(t, server)

	testhelpers.Eventually(t, 2*time.Second, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	cancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after shutdown")
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub() // not running, nothing drains the buffer

	testhelpers.MustCompleteWithin(t, time.Second, func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish(context.Background(), events.Event{Type: events.TypeAnomalyEnriched, AnomalyID: "a-1"})
		}
	})

	if hub.Dropped() != 10 {
		t.Errorf("expected 10 dropped events, got %d", hub.Dropped())
	}
}
