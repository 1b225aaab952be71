package models

import (
	"testing"
	"time"
)

// TestOutcomeFromPnl проверяет классификацию результата по PnL
func TestOutcomeFromPnl(t *testing.T) {
	tests := []struct {
		name     string
		pnl      float64
		expected string
	}{
		{"profit", 1.25, OutcomeWin},
		{"loss", -0.5, OutcomeLoss},
		{"zero", 0, OutcomeBreakeven},
		{"small profit", 0.0001, OutcomeWin},
		{"small loss", -0.0001, OutcomeLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutcomeFromPnl(tt.pnl); got != tt.expected {
				t.Errorf("OutcomeFromPnl(%v) = %s, want %s", tt.pnl, got, tt.expected)
			}
		})
	}
}

// TestPositionProfitPct проверяет расчёт профита в процентах от ставки
func TestPositionProfitPct(t *testing.T) {
	tests := []struct {
		name     string
		stake    float64
		pnl      float64
		expected float64
	}{
		{"10 percent", 10.0, 1.0, 10.0},
		{"negative", 10.0, -2.5, -25.0},
		{"zero stake", 0, 1.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{Stake: tt.stake}
			if got := p.ProfitPct(tt.pnl); got != tt.expected {
				t.Errorf("ProfitPct(%v) = %v, want %v", tt.pnl, got, tt.expected)
			}
		})
	}
}

// TestPositionAge проверяет расчёт времени жизни позиции
func TestPositionAge(t *testing.T) {
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &Position{OpenTime: opened}

	age := p.Age(opened.Add(250 * time.Second))
	if age != 250*time.Second {
		t.Errorf("Age() = %v, want 250s", age)
	}
}

// TestRecordFromPosition проверяет построение записи для БД
func TestRecordFromPosition(t *testing.T) {
	closed := time.Now()
	p := &Position{
		ContractID:  "c-123",
		Symbol:      "R_75",
		Direction:   DirectionUp,
		Stake:       10.0,
		EntryPrice:  1234.5,
		RealizedPnl: -10.0,
		Outcome:     OutcomeLoss,
		ClosureType: ClosureTimeout,
		OpenTime:    closed.Add(-5 * time.Minute),
		CloseTime:   &closed,
	}

	rec := RecordFromPosition("acc-1", p, true)

	if rec.AccountID != "acc-1" {
		t.Errorf("AccountID = %s, want acc-1", rec.AccountID)
	}
	if rec.ContractID != "c-123" {
		t.Errorf("ContractID = %s, want c-123", rec.ContractID)
	}
	if !rec.Unconfirmed {
		t.Error("timeout fallback record must be flagged unconfirmed")
	}
	if rec.Outcome != OutcomeLoss {
		t.Errorf("Outcome = %s, want LOSS", rec.Outcome)
	}
}

// TestNewTrailingState проверяет начальное состояние трейлинга
func TestNewTrailingState(t *testing.T) {
	ts := NewTrailingState()
	if ts.ActiveTier != -1 {
		t.Errorf("ActiveTier = %d, want -1", ts.ActiveTier)
	}
	if ts.BreakevenActivated {
		t.Error("BreakevenActivated must start false")
	}
}
