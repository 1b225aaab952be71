package websocket

import (
	"net/http"
	"testing"
	"time"

	"derivbot/internal/models"
)

// ============================================================
// Hub Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("clients map not initialized")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client registered")

	hub.unregister <- client

	waitFor(t, func() bool { return hub.ClientCount() == 0 }, "client unregistered")

	// Канал send должен быть закрыт hub-ом
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed")
	}
}

func TestHubBroadcastDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client registered")

	hub.BroadcastTradeUpdate("CR123", map[string]interface{}{"pnl": 2.5})

	select {
	case msg := <-client.send:
		var decoded TradeUpdateMessage
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("failed to unmarshal broadcast: %v", err)
		}
		if decoded.Type != MessageTypeTradeUpdate {
			t.Errorf("type = %q, expected %q", decoded.Type, MessageTypeTradeUpdate)
		}
		if decoded.AccountID != "CR123" {
			t.Errorf("account_id = %q, expected CR123", decoded.AccountID)
		}
		if len(msg) > 0 && msg[len(msg)-1] == '\n' {
			t.Error("broadcast message has trailing newline")
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
}

func TestHubBroadcastNotification(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client registered")

	notif := &models.Notification{
		ID:        7,
		Type:      models.NotificationTypeHalt,
		Severity:  models.SeverityError,
		AccountID: "CR123",
		Message:   "trading halted: duplicate contract",
		Timestamp: time.Now(),
	}
	hub.BroadcastNotification(notif)

	select {
	case msg := <-client.send:
		var decoded NotificationMessage
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("failed to unmarshal broadcast: %v", err)
		}
		if decoded.Type != MessageTypeNotification {
			t.Errorf("type = %q, expected %q", decoded.Type, MessageTypeNotification)
		}
		if decoded.Data == nil || decoded.Data.ID != 7 {
			t.Errorf("notification data not preserved: %+v", decoded.Data)
		}
		if decoded.Data.Severity != models.SeverityError {
			t.Errorf("severity = %q, expected %q", decoded.Data.Severity, models.SeverityError)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
}

func TestHubSlowClientRemoved(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Буфер на одно сообщение - второй broadcast не влезет
	slow := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- slow
	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client registered")

	hub.BroadcastStatsUpdate(map[string]interface{}{"seq": 1})
	hub.BroadcastStatsUpdate(map[string]interface{}{"seq": 2})

	waitFor(t, func() bool { return hub.ClientCount() == 0 }, "slow client removed")
}

func TestMessageFactories(t *testing.T) {
	trade := NewTradeUpdateMessage("CR123", nil)
	if trade.Type != MessageTypeTradeUpdate {
		t.Errorf("trade type = %q", trade.Type)
	}
	if trade.Timestamp.IsZero() {
		t.Error("trade timestamp not set")
	}

	stats := NewStatsUpdateMessage(nil)
	if stats.Type != MessageTypeStatsUpdate {
		t.Errorf("stats type = %q", stats.Type)
	}

	status := NewEngineStatusMessage(nil)
	if status.Type != MessageTypeEngineStatus {
		t.Errorf("status type = %q", status.Type)
	}

	notif := NewNotificationMessage(&models.Notification{
		ID:      1,
		Type:    models.NotificationTypeOpen,
		Message: "Position opened",
	})
	if notif.Type != MessageTypeNotification {
		t.Errorf("notification type = %q", notif.Type)
	}
	if notif.Data.Message != "Position opened" {
		t.Errorf("notification message = %q", notif.Data.Message)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed map[string]bool
		origin  string
		want    bool
	}{
		{"empty list allows all", map[string]bool{}, "http://evil.example", true},
		{"allowed origin", map[string]bool{"http://localhost:3000": true}, "http://localhost:3000", true},
		{"disallowed origin", map[string]bool{"http://localhost:3000": true}, "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &OriginChecker{allowed: tt.allowed}
			req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
			req.Header.Set("Origin", tt.origin)
			if got := checker.Check(req); got != tt.want {
				t.Errorf("Check(%q) = %v, expected %v", tt.origin, got, tt.want)
			}
		})
	}
}

// waitFor опрашивает условие до таймаута
func waitFor(t *testing.T, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", desc)
}
