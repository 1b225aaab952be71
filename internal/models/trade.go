package models

import "time"

// TradeRecord представляет запись о закрытой сделке для персистентности
type TradeRecord struct {
	ID          int        `json:"id" db:"id"`
	AccountID   string     `json:"account_id" db:"account_id"`
	ContractID  string     `json:"contract_id" db:"contract_id"`
	Symbol      string     `json:"symbol" db:"symbol"`
	Direction   string     `json:"direction" db:"direction"` // UP, DOWN
	Stake       float64    `json:"stake" db:"stake"`
	EntryPrice  float64    `json:"entry_price" db:"entry_price"`
	RealizedPnl float64    `json:"realized_pnl" db:"realized_pnl"`
	Outcome     string     `json:"outcome" db:"outcome"`           // WIN, LOSS, BREAKEVEN
	ClosureType string     `json:"closure_type" db:"closure_type"` // target, manual, expiry, cancelled, timeout
	CloseReason string     `json:"close_reason" db:"close_reason"`
	Unconfirmed bool       `json:"unconfirmed" db:"unconfirmed"` // требует ручной сверки
	OpenedAt    time.Time  `json:"opened_at" db:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// RecordFromPosition строит запись для БД из закрытой позиции
func RecordFromPosition(accountID string, p *Position, unconfirmed bool) *TradeRecord {
	return &TradeRecord{
		AccountID:   accountID,
		ContractID:  p.ContractID,
		Symbol:      p.Symbol,
		Direction:   p.Direction,
		Stake:       p.Stake,
		EntryPrice:  p.EntryPrice,
		RealizedPnl: p.RealizedPnl,
		Outcome:     p.Outcome,
		ClosureType: p.ClosureType,
		CloseReason: p.CloseReason,
		Unconfirmed: unconfirmed,
		OpenedAt:    p.OpenTime,
		ClosedAt:    p.CloseTime,
	}
}
