package bot

import (
	"time"

	"derivbot/internal/config"
	"derivbot/internal/models"
)

// Причины закрытия по динамическим правилам выхода
const (
	ExitReasonEmergency  = "emergency_daily_loss"
	ExitReasonStagnation = "stagnation_exit"
	ExitReasonTrailing   = "trailing_profit_exit"
	ExitReasonBreakeven  = "breakeven_stop"
)

// ExitDecision - результат проверки правил выхода на одном тике
type ExitDecision struct {
	ShouldClose   bool
	Reason        string
	ActivatedTier int  // номер ступени, активированной на этом тике (-1 = нет)
	BreakevenArm  bool // breakeven-стоп взведён на этом тике
}

// ExitEvaluator проверяет динамические правила выхода позиции.
//
// Порядок приоритета при одновременном срабатывании:
// аварийный дневной лимит > стагнация > трейлинг > breakeven.
// Записывается причина только первого сработавшего правила.
//
// Состояние трейлинга живёт в Position.Trailing и мутируется
// только этим компонентом.
type ExitEvaluator struct {
	tiers             []config.TrailingTier
	breakevenTrigger  float64 // % профита для взведения breakeven-стопа
	breakevenMaxLoss  float64 // % допустимого убытка после взведения
	stagnationTimeout time.Duration
	stagnationLossPct float64
	maxDailyLoss      float64
	emergencyFraction float64
}

// NewExitEvaluator создает evaluator из конфигурации
func NewExitEvaluator(lc config.LifecycleConfig, rc config.RiskConfig) *ExitEvaluator {
	return &ExitEvaluator{
		tiers:             lc.TrailingTiers,
		breakevenTrigger:  lc.BreakevenTriggerPct,
		breakevenMaxLoss:  lc.BreakevenMaxLossPct,
		stagnationTimeout: lc.StagnationTimeout,
		stagnationLossPct: lc.StagnationLossPct,
		maxDailyLoss:      rc.MaxDailyLoss,
		emergencyFraction: rc.EmergencyFraction,
	}
}

// Evaluate проверяет все правила выхода для одного тика мониторинга.
// unrealizedPnl - текущий нереализованный PnL позиции,
// dailyPnl - дневной PnL леджера без учёта этой позиции.
func (e *ExitEvaluator) Evaluate(p *models.Position, unrealizedPnl, dailyPnl float64, now time.Time) ExitDecision {
	decision := ExitDecision{ActivatedTier: -1}
	profitPct := p.ProfitPct(unrealizedPnl)

	// Состояние трейлинга и breakeven обновляется на каждом тике,
	// независимо от того, какое правило сработает
	decision.ActivatedTier = e.updateTrailing(&p.Trailing, profitPct)
	decision.BreakevenArm = e.armBreakeven(&p.Trailing, profitPct)

	// 1. Аварийный дневной лимит
	if dailyPnl+unrealizedPnl <= -(e.maxDailyLoss * e.emergencyFraction) {
		decision.ShouldClose = true
		decision.Reason = ExitReasonEmergency
		return decision
	}

	// 2. Стагнация: позиция слишком долго висит в убытке
	if e.stagnationTimeout > 0 && p.Age(now) > e.stagnationTimeout &&
		unrealizedPnl < 0 && -profitPct > e.stagnationLossPct {
		decision.ShouldClose = true
		decision.Reason = ExitReasonStagnation
		return decision
	}

	// 3. Трейлинг: профит упал до пола активной ступени
	if p.Trailing.ActiveTier >= 0 && profitPct <= p.Trailing.FloorPct {
		decision.ShouldClose = true
		decision.Reason = ExitReasonTrailing
		return decision
	}

	// 4. Breakeven-стоп
	if p.Trailing.BreakevenActivated && profitPct <= -e.breakevenMaxLoss {
		decision.ShouldClose = true
		decision.Reason = ExitReasonBreakeven
		return decision
	}

	return decision
}

// updateTrailing обновляет активную ступень, пик и пол.
// Возвращает номер ступени, активированной на этом тике, или -1.
//
// Пол монотонен: однажды поднявшись, он не опускается, и ступень
// не регрессирует на более низкую после активации высокой.
func (e *ExitEvaluator) updateTrailing(ts *models.TrailingState, profitPct float64) int {
	activated := -1

	// Поиск самой высокой ступени, чей триггер достигнут
	highest := ts.ActiveTier
	for i, tier := range e.tiers {
		if profitPct >= tier.TriggerPct && i > highest {
			highest = i
		}
	}

	if highest > ts.ActiveTier {
		ts.ActiveTier = highest
		activated = highest
	}

	if ts.ActiveTier < 0 {
		return activated
	}

	// Пик и пол пересчитываются по trail активной ступени
	if profitPct > ts.PeakProfitPct {
		ts.PeakProfitPct = profitPct
	}
	floor := ts.PeakProfitPct - e.tiers[ts.ActiveTier].TrailPct
	if floor > ts.FloorPct || activated == ts.ActiveTier {
		ts.FloorPct = floor
	}

	return activated
}

// armBreakeven взводит breakeven-стоп при достижении триггерного профита.
// Взводится один раз, обратно не снимается.
func (e *ExitEvaluator) armBreakeven(ts *models.TrailingState, profitPct float64) bool {
	if ts.BreakevenActivated || e.breakevenTrigger <= 0 {
		return false
	}
	if profitPct >= e.breakevenTrigger {
		ts.BreakevenActivated = true
		return true
	}
	return false
}
