package models

// Signal - входной сигнал от стратегии.
// Ядро не знает, как сигнал получен; оно только проверяет лимиты риска
// и исполняет жизненный цикл позиции.
type Signal struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`             // UP, DOWN
	EntryPrice float64 `json:"entry_price"`
	TakeProfit float64 `json:"take_profit,omitempty"` // 0 = использовать фиксированные проценты из конфига
	StopLoss   float64 `json:"stop_loss,omitempty"`
	Confidence float64 `json:"confidence"`
}

// HasExplicitLevels возвращает true если стратегия передала явные уровни TP/SL
func (s *Signal) HasExplicitLevels() bool {
	return s.TakeProfit > 0 && s.StopLoss > 0
}
