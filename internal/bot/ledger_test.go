package bot

import (
	"errors"
	"testing"
	"time"

	"derivbot/internal/config"
	"derivbot/internal/models"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxConcurrentTrades:  1,
		MaxTradesPerDay:      10,
		MaxDailyLoss:         50.0,
		MaxConsecutiveLosses: 3,
		Cooldown:             0,
		EmergencyFraction:    0.8,
	}
}

func posWithContract(id string) *models.Position {
	p := testPosition()
	p.ContractID = id
	return p
}

func winResult(pnl float64) *models.SettlementResult {
	return &models.SettlementResult{
		Status:      models.OutcomeWin,
		ClosureType: models.ClosureTarget,
		RealizedPnl: pnl,
	}
}

func lossResult(pnl float64) *models.SettlementResult {
	return &models.SettlementResult{
		Status:      models.OutcomeLoss,
		ClosureType: models.ClosureManual,
		RealizedPnl: pnl,
	}
}

// openAndClose регистрирует и сразу закрывает позицию с заданным результатом
func openAndClose(t *testing.T, l *RiskLedger, id string, res *models.SettlementResult) {
	t.Helper()
	if err := l.RecordOpen(posWithContract(id)); err != nil {
		t.Fatalf("RecordOpen(%s): %v", id, err)
	}
	if _, err := l.RecordClose(id, res); err != nil {
		t.Fatalf("RecordClose(%s): %v", id, err)
	}
}

func TestRecordOpenAndClose(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	p := posWithContract("100001")
	if err := l.RecordOpen(p); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if l.OpenCount() != 1 {
		t.Fatalf("open count = %d, expected 1", l.OpenCount())
	}

	got, ok := l.Get("100001")
	if !ok || got != p {
		t.Fatal("registered position not found by contract id")
	}

	closed, err := l.RecordClose("100001", winResult(3.5))
	if err != nil {
		t.Fatalf("RecordClose: %v", err)
	}
	if closed.Status != models.PositionStatusClosed || closed.RealizedPnl != 3.5 {
		t.Errorf("closed position = %+v", closed)
	}
	if closed.CloseTime == nil {
		t.Error("close time not set")
	}
	if l.OpenCount() != 0 {
		t.Errorf("open count after close = %d", l.OpenCount())
	}
	if l.DailyPnl() != 3.5 {
		t.Errorf("daily pnl = %v, expected 3.5", l.DailyPnl())
	}
}

func TestRecordOpenDuplicateHalts(t *testing.T) {
	l := NewRiskLedger("CR123", config.RiskConfig{MaxConcurrentTrades: 5})

	if err := l.RecordOpen(posWithContract("100001")); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}

	// Дубликат contract_id - integrity fault: halt, реестр не перезаписывается
	err := l.RecordOpen(posWithContract("100001"))
	if !errors.Is(err, ErrDuplicateContract) {
		t.Fatalf("err = %v, expected ErrDuplicateContract", err)
	}
	if l.OpenCount() != 1 {
		t.Errorf("registry changed on duplicate: %d entries", l.OpenCount())
	}

	halted, reason := l.Halted()
	if !halted {
		t.Fatal("ledger must halt on duplicate contract")
	}
	if reason == "" {
		t.Error("halt reason must be descriptive")
	}

	// Остановленный леджер отказывает всем регистрациям
	err = l.RecordOpen(posWithContract("100002"))
	if !errors.Is(err, ErrLedgerHalted) {
		t.Errorf("err = %v, expected ErrLedgerHalted", err)
	}
}

func TestRecordOpenConcurrencyLimit(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig()) // лимит 1

	if err := l.RecordOpen(posWithContract("100001")); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}

	err := l.RecordOpen(posWithContract("100002"))
	if !errors.Is(err, ErrConcurrencyLimit) {
		t.Errorf("err = %v, expected ErrConcurrencyLimit", err)
	}

	// Лимит не равен halt: после закрытия регистрация снова доступна
	if _, err := l.RecordClose("100001", winResult(1)); err != nil {
		t.Fatalf("RecordClose: %v", err)
	}
	if err := l.RecordOpen(posWithContract("100002")); err != nil {
		t.Errorf("RecordOpen after close: %v", err)
	}
}

func TestRecordCloseUnknownContract(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	_, err := l.RecordClose("999999", winResult(1))
	if !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("err = %v, expected ErrPositionNotFound", err)
	}
}

func TestConsecutiveLossStreak(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	openAndClose(t, l, "1", lossResult(-2))
	openAndClose(t, l, "2", lossResult(-3))
	if l.ConsecutiveLosses() != 2 {
		t.Fatalf("streak = %d, expected 2", l.ConsecutiveLosses())
	}
	if l.lastLossTime.IsZero() {
		t.Error("last loss time not recorded")
	}

	// BREAKEVEN не трогает серию
	openAndClose(t, l, "3", &models.SettlementResult{
		Status: models.OutcomeBreakeven, ClosureType: models.ClosureManual,
	})
	if l.ConsecutiveLosses() != 2 {
		t.Errorf("breakeven changed streak: %d", l.ConsecutiveLosses())
	}

	// WIN сбрасывает
	openAndClose(t, l, "4", winResult(5))
	if l.ConsecutiveLosses() != 0 {
		t.Errorf("streak after win = %d, expected 0", l.ConsecutiveLosses())
	}
}

func TestPeakAndDrawdown(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	openAndClose(t, l, "1", winResult(10)) // total 10, peak 10
	openAndClose(t, l, "2", lossResult(-4)) // total 6, dd 4
	openAndClose(t, l, "3", winResult(2))  // total 8, dd остаётся 4

	stats := l.Statistics()
	if stats.PeakPnl != 10 {
		t.Errorf("peak = %v, expected 10", stats.PeakPnl)
	}
	if stats.MaxDrawdown != 4 {
		t.Errorf("drawdown = %v, expected 4", stats.MaxDrawdown)
	}
	if stats.TotalPnl != 8 {
		t.Errorf("total pnl = %v, expected 8", stats.TotalPnl)
	}
	if stats.WinningTrades != 2 || stats.LosingTrades != 1 || stats.TotalTrades != 3 {
		t.Errorf("counters = %d/%d/%d", stats.WinningTrades, stats.LosingTrades, stats.TotalTrades)
	}
}

func TestRecordCancellationEconomics(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	l.RecordCancellation(0.5, 3.0)
	l.RecordCancellation(0.5, 1.0)

	stats := l.Statistics()
	if stats.Cancellations != 2 {
		t.Errorf("cancellations = %d, expected 2", stats.Cancellations)
	}
	if stats.CancellationFees != 1.0 {
		t.Errorf("fees = %v, expected 1.0", stats.CancellationFees)
	}
	// (3.0 - 0.5) + (1.0 - 0.5)
	if stats.EstimatedSavings != 3.0 {
		t.Errorf("savings = %v, expected 3.0", stats.EstimatedSavings)
	}
}

func TestHaltAndClear(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	l.Halt("manual stop")
	if halted, reason := l.Halted(); !halted || reason != "manual stop" {
		t.Fatalf("halted = %v %q", halted, reason)
	}

	l.ClearHalt()
	if halted, reason := l.Halted(); halted || reason != "" {
		t.Errorf("halt not cleared: %v %q", halted, reason)
	}
	if err := l.RecordOpen(posWithContract("100001")); err != nil {
		t.Errorf("RecordOpen after clear: %v", err)
	}
}

func TestResetLossStreak(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	openAndClose(t, l, "1", lossResult(-2))
	openAndClose(t, l, "2", lossResult(-2))

	l.ResetLossStreak()
	if l.ConsecutiveLosses() != 0 {
		t.Errorf("streak = %d after reset", l.ConsecutiveLosses())
	}
}

func TestDayRollover(t *testing.T) {
	l := NewRiskLedger("CR123", testRiskConfig())

	day1 := time.Date(2024, 1, 15, 23, 50, 0, 0, time.UTC)
	l.clock = func() time.Time { return day1 }
	l.currentDate = day1.Format("2006-01-02")

	openAndClose(t, l, "1", lossResult(-60)) // пробит дневной лимит 50

	if ok, reason := l.CanTrade("R_75"); ok {
		t.Fatalf("expected denial after daily loss, got pass: %s", reason)
	}

	// Новый торговый день: дневные агрегаты сбрасываются, кумулятивные - нет
	day2 := day1.Add(20 * time.Minute)
	l.clock = func() time.Time { return day2 }

	if ok, reason := l.CanTrade("R_75"); !ok {
		t.Fatalf("expected pass after rollover, got: %s", reason)
	}

	stats := l.Statistics()
	if stats.DailyPnl != 0 || stats.TradesToday != 0 {
		t.Errorf("daily aggregates not reset: pnl %v, trades %d", stats.DailyPnl, stats.TradesToday)
	}
	if stats.TotalPnl != -60 {
		t.Errorf("total pnl = %v, must survive rollover", stats.TotalPnl)
	}
	if stats.CurrentDate != day2.Format("2006-01-02") {
		t.Errorf("current date = %s", stats.CurrentDate)
	}
}
