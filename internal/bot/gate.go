package bot

import (
	"fmt"

	"derivbot/internal/models"
	"derivbot/pkg/utils"
)

// CanTrade - входной гейт: отвечает, можно ли открывать новую сделку.
//
// Проверки идут по порядку, первая сработавшая возвращает отказ
// с человекочитаемой причиной. Перед проверками атомарно (под тем же
// мьютексом) выполняется rollover торгового дня.
func (l *RiskLedger) CanTrade(symbol string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.rolloverLocked(now)

	if l.halted {
		RecordEntryDenial("halted")
		return false, fmt.Sprintf("ledger halted: %s", l.haltReason)
	}

	// 1. Лимит одновременных позиций
	if len(l.openPositions) >= l.cfg.MaxConcurrentTrades {
		RecordEntryDenial("concurrency")
		return false, fmt.Sprintf("global limit reached: %d/%d open positions",
			len(l.openPositions), l.cfg.MaxConcurrentTrades)
	}

	// 2. Circuit breaker по серии убытков.
	// LossCooldown > 0 разрешает автоматический сброс серии по времени.
	if l.consecutiveLosses >= l.cfg.MaxConsecutiveLosses {
		if l.cfg.LossCooldown > 0 && !l.lastLossTime.IsZero() &&
			now.Sub(l.lastLossTime) >= l.cfg.LossCooldown {
			l.consecutiveLosses = 0
		} else {
			RecordEntryDenial("circuit_breaker")
			return false, fmt.Sprintf("circuit breaker tripped: %d consecutive losses (max %d)",
				l.consecutiveLosses, l.cfg.MaxConsecutiveLosses)
		}
	}

	// 3. Дневной лимит сделок
	if len(l.tradesToday) >= l.cfg.MaxTradesPerDay {
		RecordEntryDenial("daily_trades")
		return false, fmt.Sprintf("daily trade limit reached: %d/%d",
			len(l.tradesToday), l.cfg.MaxTradesPerDay)
	}

	// 4. Дневной лимит убытка
	if l.dailyPnl <= -l.cfg.MaxDailyLoss {
		RecordEntryDenial("daily_loss")
		return false, fmt.Sprintf("daily loss limit reached: %.2f (max %.2f)",
			l.dailyPnl, l.cfg.MaxDailyLoss)
	}

	// 5. Cooldown между открытиями
	if !l.lastTradeTime.IsZero() {
		elapsed := now.Sub(l.lastTradeTime)
		if elapsed < l.cfg.Cooldown {
			remaining := l.cfg.Cooldown - elapsed
			RecordEntryDenial("cooldown")
			return false, fmt.Sprintf("cooldown active: %.0f seconds remaining", remaining.Seconds())
		}
	}

	return true, "all risk checks passed"
}

// CheckEmergency возвращает true если дневной PnL вместе с нереализованным
// PnL открытой позиции пробивает аварийный порог дневного лимита
func (l *RiskLedger) CheckEmergency(unrealizedPnl float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := -(l.cfg.MaxDailyLoss * l.cfg.EmergencyFraction)
	return l.dailyPnl+unrealizedPnl <= threshold
}

// ValidateSignal проверяет сигнал стратегии перед гейтом:
// направление и минимальное соотношение риск/прибыль при явных уровнях
func (l *RiskLedger) ValidateSignal(s *models.Signal) error {
	if err := utils.ValidateSymbol(s.Symbol); err != nil {
		return err
	}

	if s.Direction != models.DirectionUp && s.Direction != models.DirectionDown {
		return fmt.Errorf("invalid signal direction: %q", s.Direction)
	}

	if l.cfg.MinRiskReward > 0 && s.HasExplicitLevels() {
		rr := utils.RiskReward(s.TakeProfit, s.StopLoss)
		if rr < l.cfg.MinRiskReward {
			return fmt.Errorf("risk:reward %.2f below minimum %.2f", rr, l.cfg.MinRiskReward)
		}
	}

	return nil
}
