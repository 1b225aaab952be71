package service

import (
	"testing"
	"time"

	"derivbot/internal/models"
)

func seedTrades(repo *MockTradeRepository) {
	now := time.Now()
	repo.trades = []*models.TradeRecord{
		{ID: 1, AccountID: "CR123", ContractID: "111", Outcome: models.OutcomeWin, RealizedPnl: 2.5, OpenedAt: now.Add(-2 * time.Hour)},
		{ID: 2, AccountID: "CR123", ContractID: "222", Outcome: models.OutcomeLoss, RealizedPnl: -10.0, ClosureType: models.ClosureTimeout, Unconfirmed: true, OpenedAt: now.Add(-time.Hour)},
		{ID: 3, AccountID: "CR999", ContractID: "333", Outcome: models.OutcomeWin, RealizedPnl: 1.0, OpenedAt: now},
	}
	repo.nextID = 4
}

func TestTradeServiceGetRecentTrades(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		expectedLimit int
	}{
		{"default limit", 0, 50},
		{"explicit limit", 20, 20},
		{"capped at 500", 10000, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTradeRepository()
			seedTrades(repo)
			svc := NewTradeService(repo)

			trades, err := svc.GetRecentTrades("CR123", tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.lastLimit != tt.expectedLimit {
				t.Errorf("limit = %d, expected %d", repo.lastLimit, tt.expectedLimit)
			}
			for _, rec := range trades {
				if rec.AccountID != "CR123" {
					t.Errorf("foreign account trade leaked: %s", rec.AccountID)
				}
			}
		})
	}
}

func TestTradeServiceGetUnconfirmedTrades(t *testing.T) {
	repo := NewMockTradeRepository()
	seedTrades(repo)
	svc := NewTradeService(repo)

	trades, err := svc.GetUnconfirmedTrades("CR123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 unconfirmed trade, got %d", len(trades))
	}
	if trades[0].ContractID != "222" {
		t.Errorf("contract_id = %q, expected 222", trades[0].ContractID)
	}
}

func TestTradeServiceConfirmTrade(t *testing.T) {
	tests := []struct {
		name            string
		pnl             float64
		expectedOutcome string
	}{
		{"profit becomes win", 3.2, models.OutcomeWin},
		{"loss stays loss", -4.5, models.OutcomeLoss},
		{"zero is breakeven", 0, models.OutcomeBreakeven},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTradeRepository()
			svc := NewTradeService(repo)

			if err := svc.ConfirmTrade(2, tt.pnl); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.confirmedID != 2 {
				t.Errorf("id = %d, expected 2", repo.confirmedID)
			}
			if repo.confirmedPnl != tt.pnl {
				t.Errorf("pnl = %v, expected %v", repo.confirmedPnl, tt.pnl)
			}
			if repo.confirmedOut != tt.expectedOutcome {
				t.Errorf("outcome = %q, expected %q", repo.confirmedOut, tt.expectedOutcome)
			}
		})
	}
}

func TestTradeServiceGetDailyStats(t *testing.T) {
	tests := []struct {
		name         string
		days         int
		expectedDays int
	}{
		{"default window", 0, 7},
		{"explicit window", 30, 30},
		{"capped at 90", 365, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTradeRepository()
			svc := NewTradeService(repo)

			if _, err := svc.GetDailyStats("CR123", tt.days); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.lastDays != tt.expectedDays {
				t.Errorf("days = %d, expected %d", repo.lastDays, tt.expectedDays)
			}
		})
	}
}

func TestTradeServiceCleanupOld(t *testing.T) {
	repo := NewMockTradeRepository()
	svc := NewTradeService(repo)

	repo.trades = []*models.TradeRecord{
		{ID: 1, AccountID: "CR123", OpenedAt: time.Now().AddDate(0, -6, 0)},
		{ID: 2, AccountID: "CR123", OpenedAt: time.Now()},
	}

	deleted, err := svc.CleanupOld(90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, expected 1", deleted)
	}
}
