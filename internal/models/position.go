package models

import "time"

// Направление контракта
const (
	DirectionUp   = "UP"   // MULTUP / CALL
	DirectionDown = "DOWN" // MULTDOWN / PUT
)

// Фазы позиции в двухфазном режиме риска.
// Вне двухфазного режима позиция сразу получает PhaseCommitted.
const (
	PhasePending            = "PENDING"             // открыта, окно отмены ещё не запущено
	PhaseCancellationActive = "CANCELLATION_ACTIVE" // действует окно отмены
	PhaseCommitted          = "COMMITTED"           // окно истекло, применены TP/SL второй фазы
)

// Статусы позиции
const (
	PositionStatusOpen   = "OPEN"
	PositionStatusClosed = "CLOSED"
)

// Итог закрытой позиции
const (
	OutcomeWin       = "WIN"
	OutcomeLoss      = "LOSS"
	OutcomeBreakeven = "BREAKEVEN"
)

// Типы закрытия (почему позиция закрылась)
const (
	ClosureTarget    = "target"    // бот сам продал по TP/SL
	ClosureManual    = "manual"    // продана извне, без инициативы бота
	ClosureExpiry    = "expiry"    // контракт дожил до экспирации
	ClosureCancelled = "cancelled" // отмена в окне двухфазного режима
	ClosureTimeout   = "timeout"   // исход не подтверждён, консервативный fallback
)

// Position представляет одну открытую или закрытую сделку
type Position struct {
	ContractID  string  `json:"contract_id"`
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"` // UP, DOWN
	Stake       float64 `json:"stake"`
	EntryPrice  float64 `json:"entry_price"`
	TakeProfit  float64 `json:"take_profit,omitempty"` // 0 = не задан до второй фазы
	StopLoss    float64 `json:"stop_loss,omitempty"`
	Multiplier  int     `json:"multiplier,omitempty"`
	Phase       string  `json:"phase"`
	Status      string  `json:"status"`
	Outcome     string  `json:"outcome,omitempty"`      // WIN, LOSS, BREAKEVEN после закрытия
	ClosureType string  `json:"closure_type,omitempty"` // target, manual, expiry, cancelled, timeout
	CloseReason string  `json:"close_reason,omitempty"` // сработавшее правило: take_profit, stop_loss, trailing_profit_exit, ...
	RealizedPnl float64 `json:"realized_pnl"`

	OpenTime  time.Time  `json:"open_time"`
	CloseTime *time.Time `json:"close_time,omitempty"`

	Trailing TrailingState `json:"trailing"`
}

// TrailingState - состояние динамических правил выхода позиции.
// Мутируется только evaluator'ом правил выхода.
type TrailingState struct {
	BreakevenActivated bool    `json:"breakeven_activated"`
	ActiveTier         int     `json:"active_tier"` // -1 = трейлинг не активирован
	PeakProfitPct      float64 `json:"peak_profit_pct"`
	FloorPct           float64 `json:"floor_pct"`
}

// NewTrailingState возвращает начальное состояние (до активации)
func NewTrailingState() TrailingState {
	return TrailingState{ActiveTier: -1}
}

// IsOpen возвращает true пока позиция не закрыта
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// ProfitPct возвращает профит в процентах от ставки
func (p *Position) ProfitPct(unrealizedPnl float64) float64 {
	if p.Stake <= 0 {
		return 0
	}
	return unrealizedPnl / p.Stake * 100
}

// Age возвращает время жизни позиции относительно now
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenTime)
}

// OutcomeFromPnl классифицирует результат по реализованному PnL
func OutcomeFromPnl(pnl float64) string {
	switch {
	case pnl > 0:
		return OutcomeWin
	case pnl < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

// SettlementResult - канонический итог от резолвера расчётов
type SettlementResult struct {
	Status      string  `json:"status"` // WIN, LOSS, BREAKEVEN
	RealizedPnl float64 `json:"realized_pnl"`
	ClosureType string  `json:"closure_type"`
	// Unconfirmed = true когда итог не подтверждён брокером (timeout fallback)
	// и требует ручной сверки
	Unconfirmed bool `json:"unconfirmed,omitempty"`
}
