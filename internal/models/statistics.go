package models

import "time"

// Statistics представляет агрегированную статистику аккаунта
type Statistics struct {
	AccountID         string    `json:"account_id"`
	TotalTrades       int       `json:"total_trades"`
	WinningTrades     int       `json:"winning_trades"`
	LosingTrades      int       `json:"losing_trades"`
	WinRate           float64   `json:"win_rate"` // 0..100
	TotalPnl          float64   `json:"total_pnl"`
	DailyPnl          float64   `json:"daily_pnl"`
	TradesToday       int       `json:"trades_today"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	OpenPositions     int       `json:"open_positions"`
	PeakPnl           float64   `json:"peak_pnl"`
	MaxDrawdown       float64   `json:"max_drawdown"`
	Cancellations     int       `json:"cancellations"`
	CancellationFees  float64   `json:"cancellation_fees"`
	EstimatedSavings  float64   `json:"estimated_savings"` // избегнутый убыток минус комиссии отмен
	Halted            bool      `json:"halted"`
	HaltReason        string    `json:"halt_reason,omitempty"`
	LastTradeTime     time.Time `json:"last_trade_time"`
	CurrentDate       string    `json:"current_date"` // торговый день YYYY-MM-DD
}

// DailyStats представляет дневную сводку из БД
type DailyStats struct {
	Day    time.Time `json:"day" db:"day"`
	Trades int       `json:"trades" db:"trades"`
	Pnl    float64   `json:"pnl" db:"pnl"`
	Wins   int       `json:"wins" db:"wins"`
	Losses int       `json:"losses" db:"losses"`
}
