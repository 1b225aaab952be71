package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"derivbot/internal/bot"
)

func TestEngineHandlerGetStatus(t *testing.T) {
	engine := NewMockEngine()
	engine.status.Halted = true
	engine.status.HaltReason = "duplicate contract id registered"

	handler := NewEngineHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
	rec := httptest.NewRecorder()

	handler.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var status bot.EngineStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.AccountID != "CR123" {
		t.Errorf("account_id = %q, expected CR123", status.AccountID)
	}
	if !status.Halted || status.HaltReason == "" {
		t.Errorf("halt state lost: %+v", status)
	}
}

func TestEngineHandlerGetStatistics(t *testing.T) {
	engine := NewMockEngine()
	handler := NewEngineHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/statistics", nil)
	rec := httptest.NewRecorder()

	handler.GetStatistics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content-type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestEngineHandlerClearHalt(t *testing.T) {
	engine := NewMockEngine()
	handler := NewEngineHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/engine/clear-halt", nil)
	rec := httptest.NewRecorder()

	handler.ClearHalt(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if !engine.clearHaltCalled {
		t.Error("ClearHalt not forwarded to engine")
	}
}

func TestEngineHandlerResetLossStreak(t *testing.T) {
	engine := NewMockEngine()
	handler := NewEngineHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/engine/reset-loss-streak", nil)
	rec := httptest.NewRecorder()

	handler.ResetLossStreak(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if engine.resetStreakCalls != 1 {
		t.Errorf("ResetLossStreak called %d times, expected 1", engine.resetStreakCalls)
	}
}
