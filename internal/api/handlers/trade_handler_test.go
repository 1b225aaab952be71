package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"derivbot/internal/models"
)

func TestTradeHandlerGetTrades(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		expectedLimit int
	}{
		{"no limit", "", 0},
		{"explicit limit", "?limit=25", 25},
		{"garbage limit ignored", "?limit=abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTradeService{
				trades: []*models.TradeRecord{
					{ID: 1, AccountID: "CR123", ContractID: "111", Outcome: models.OutcomeWin},
				},
			}
			handler := NewTradeHandler(svc, "CR123")

			req := httptest.NewRequest(http.MethodGet, "/api/v1/trades"+tt.query, nil)
			rec := httptest.NewRecorder()

			handler.GetTrades(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, expected 200", rec.Code)
			}
			if svc.lastLimit != tt.expectedLimit {
				t.Errorf("limit = %d, expected %d", svc.lastLimit, tt.expectedLimit)
			}

			var resp map[string]interface{}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["total"].(float64) != 1 {
				t.Errorf("total = %v, expected 1", resp["total"])
			}
		})
	}
}

func TestTradeHandlerGetTradesError(t *testing.T) {
	svc := &MockTradeService{err: errMockService}
	handler := NewTradeHandler(svc, "CR123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil)
	rec := httptest.NewRecorder()

	handler.GetTrades(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, expected 500", rec.Code)
	}
}

func TestTradeHandlerGetUnconfirmed(t *testing.T) {
	svc := &MockTradeService{
		unconfirmed: []*models.TradeRecord{
			{ID: 5, ContractID: "555", ClosureType: models.ClosureTimeout, Unconfirmed: true},
		},
	}
	handler := NewTradeHandler(svc, "CR123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/unconfirmed", nil)
	rec := httptest.NewRecorder()

	handler.GetUnconfirmed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "555") {
		t.Errorf("unconfirmed trade missing from response: %s", rec.Body.String())
	}
}

func TestTradeHandlerConfirmTrade(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		body         string
		expectedCode int
	}{
		{"success", "5", `{"realized_pnl": -4.5}`, http.StatusOK},
		{"invalid id", "abc", `{"realized_pnl": -4.5}`, http.StatusBadRequest},
		{"zero id", "0", `{"realized_pnl": -4.5}`, http.StatusBadRequest},
		{"invalid body", "5", `{realized`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockTradeService{}
			handler := NewTradeHandler(svc, "CR123")

			router := mux.NewRouter()
			router.HandleFunc("/api/v1/trades/{id}/confirm", handler.ConfirmTrade).Methods("POST")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/"+tt.id+"/confirm", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("status = %d, expected %d", rec.Code, tt.expectedCode)
			}
			if tt.expectedCode == http.StatusOK {
				if svc.confirmedID != 5 {
					t.Errorf("confirmed id = %d, expected 5", svc.confirmedID)
				}
				if svc.confirmedPnl != -4.5 {
					t.Errorf("confirmed pnl = %v, expected -4.5", svc.confirmedPnl)
				}
			}
		})
	}
}

func TestTradeHandlerGetDailyStats(t *testing.T) {
	svc := &MockTradeService{
		daily: []*models.DailyStats{
			{Trades: 5, Pnl: 3.75, Wins: 3, Losses: 2},
		},
	}
	handler := NewTradeHandler(svc, "CR123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/daily?days=30", nil)
	rec := httptest.NewRecorder()

	handler.GetDailyStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if svc.lastDays != 30 {
		t.Errorf("days = %d, expected 30", svc.lastDays)
	}
}
