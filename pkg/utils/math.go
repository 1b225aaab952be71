package utils

import (
	"math"
)

// math.go - математические утилиты для торговли мультипликаторами
//
// Назначение:
// Вспомогательные функции для денежных расчетов и оценки сигналов.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundMoney: округление денежной суммы до шага валюты
// - ProfitPercent: PnL в процентах от ставки
// - PnlFromPercent: обратное преобразование процента в сумму
// - RiskReward: соотношение прибыль/риск сигнала

// RoundMoney округляет денежную сумму до указанного числа знаков
// после запятой. Брокер принимает суммы максимум с двумя знаками,
// поэтому все ставки и цены перед отправкой проходят через эту функцию.
//
// Примеры:
//   - RoundMoney(10.456, 2) = 10.46
//   - RoundMoney(0.005, 2) = 0.01
func RoundMoney(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// RoundMoneyDown округляет денежную сумму ВНИЗ.
//
// Используется при расчете ставки от доступного баланса:
// округление вниз гарантирует, что мы не превысим доступные средства.
func RoundMoneyDown(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	factor := math.Pow(10, float64(decimals))
	return math.Floor(value*factor) / factor
}

// ProfitPercent возвращает PnL позиции в процентах от ставки.
//
// Формула:
//
//	Профит (%) = (PnL / ставка) × 100
//
// Параметры:
//   - pnl: текущий нереализованный или реализованный PnL
//   - stake: ставка позиции
//
// Возвращает:
//   - Профит в процентах (30.0 означает +30% от ставки)
//   - Если stake <= 0, возвращает 0
//
// Примеры:
//   - ProfitPercent(3.0, 10.0) = 30.0
//   - ProfitPercent(-2.5, 10.0) = -25.0
func ProfitPercent(pnl, stake float64) float64 {
	if stake <= 0 {
		return 0
	}
	return pnl / stake * 100
}

// PnlFromPercent переводит процент от ставки в денежную сумму.
//
// Используется для расчета монетарных уровней TP/SL из процентных
// настроек конфигурации.
//
// Примеры:
//   - PnlFromPercent(10.0, 25.0) = 2.5
func PnlFromPercent(stake, pct float64) float64 {
	if stake <= 0 {
		return 0
	}
	return stake * pct / 100
}

// RiskReward возвращает соотношение прибыль/риск для явных уровней
// take profit и stop loss. При некорректном SL возвращает 0.
//
// Примеры:
//   - RiskReward(3.0, 2.0) = 1.5
func RiskReward(takeProfit, stopLoss float64) float64 {
	if stopLoss <= 0 {
		return 0
	}
	return takeProfit / stopLoss
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
