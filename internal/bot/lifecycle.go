package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"derivbot/internal/broker"
	"derivbot/internal/config"
	"derivbot/internal/models"
	"derivbot/pkg/retry"
	"derivbot/pkg/utils"
)

// Ошибки жизненного цикла
var (
	ErrLockHeld     = errors.New("trade lock already held")
	ErrSlotOccupied = errors.New("open position present after lock acquisition")
	ErrOpenFailed   = errors.New("position open failed")
	ErrStopped      = errors.New("lifecycle interrupted by stop signal")
)

// NotificationSink принимает уведомления fire-and-forget: ошибки сink'а
// логируются, но никогда не блокируют прогресс жизненного цикла
type NotificationSink func(*models.Notification)

// PersistenceSink сохраняет закрытую сделку. Вызывается с ограниченными
// повторами и никогда не блокирует освобождение лока.
type PersistenceSink func(*models.TradeRecord) error

// Coordinator ведёт одну позицию через полный жизненный цикл:
// захват лока -> открытие -> мониторинг (с двухфазным окном отмены) ->
// расчёт -> обновление леджера -> освобождение лока.
//
// Гарантии:
// - лок освобождается ровно один раз на каждый захват, на любом пути
//   выхода (успех, ошибка открытия, стоп-сигнал, integrity fault)
// - леджер обновляется до освобождения лока
// - дубликат contract_id не перезаписывает реестр: леджер
//   останавливается, лок освобождается, ошибка всплывает
type Coordinator struct {
	accountID string
	cfg       config.LifecycleConfig

	ledger *RiskLedger
	lock   *TradeLock
	client broker.Client
	exits  *ExitEvaluator

	tracker *StateTracker

	notify  NotificationSink
	persist PersistenceSink

	clock func() time.Time
}

// NewCoordinator создает координатор жизненного цикла для одного аккаунта
func NewCoordinator(accountID string, lc config.LifecycleConfig, rc config.RiskConfig,
	ledger *RiskLedger, lock *TradeLock, client broker.Client) *Coordinator {
	return &Coordinator{
		accountID: accountID,
		cfg:       lc,
		ledger:    ledger,
		lock:      lock,
		client:    client,
		exits:     NewExitEvaluator(lc, rc),
		tracker:   NewStateTracker(),
		clock:     time.Now,
	}
}

// SetSinks подключает коллабораторов уведомлений и персистентности
func (c *Coordinator) SetSinks(notify NotificationSink, persist PersistenceSink) {
	c.notify = notify
	c.persist = persist
}

// State возвращает текущее состояние жизненного цикла
func (c *Coordinator) State() string {
	return c.tracker.State()
}

// Execute проводит одну позицию через полный жизненный цикл.
// Вызывается строго после положительного ответа гейта; сам Execute
// делает только post-acquire проверку слота.
func (c *Coordinator) Execute(ctx context.Context, sig *models.Signal) (*models.Position, error) {
	// IDLE -> LOCK_ACQUIRED: неблокирующий захват
	if !c.lock.Acquire(sig.Symbol, PendingEntryMarker) {
		return nil, ErrLockHeld
	}
	c.tracker.Force(StateIdle)
	if err := c.tracker.Try(StateLockAcquired); err != nil {
		c.lock.Release("state tracker fault")
		return nil, err
	}

	// Освобождение лока гарантировано на каждом пути выхода
	released := false
	release := func(reason string) {
		if released {
			return
		}
		released = true
		c.lock.Release(reason)
		c.tracker.Force(StateReleased)
	}
	defer release("lifecycle finished")

	utils.Infof("[%s] STEP 1/6: trade lock acquired for %s", c.accountID, sig.Symbol)

	// Post-acquire проверка: сначала захват, потом верификация слота.
	// Закрывает гонку между проверкой гейта и захватом лока.
	if c.ledger.OpenCount() > 0 {
		release("post-acquire verify failed: slot occupied")
		return nil, ErrSlotOccupied
	}

	// LOCK_ACQUIRED -> OPENING
	if err := c.tracker.Try(StateOpening); err != nil {
		return nil, err
	}

	position, err := c.openPosition(ctx, sig)
	if err != nil {
		// Лок не должен остаться занятым после неудачного открытия
		release("open failed")
		c.notifyEvent(models.NotificationTypeError, models.SeverityError,
			fmt.Sprintf("Open failed for %s: %v", sig.Symbol, err), nil)
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	utils.Infof("[%s] STEP 2/6: position opened, contract %s at %.5f",
		c.accountID, position.ContractID, position.EntryPrice)

	// OPENING -> OPEN_PENDING: регистрация в леджере.
	// Дубликат contract_id = integrity fault: леджер уже остановлен,
	// остаётся освободить лок и поднять ошибку.
	if err := c.ledger.RecordOpen(position); err != nil {
		// Контракт уже открыт у брокера, но в реестр не попал - никто им
		// больше не управляет. Закрываем best-effort до освобождения лока.
		c.closeOrphan(ctx, position)
		release(fmt.Sprintf("record open failed: %v", err))
		c.notifyEvent(models.NotificationTypeHalt, models.SeverityError,
			fmt.Sprintf("Record open failed: %v", err),
			map[string]interface{}{"contract_id": position.ContractID})
		return nil, err
	}
	c.lock.SetContract(position.ContractID)
	if err := c.tracker.Try(StateOpenPending); err != nil {
		utils.Warnf("[%s] state tracker out of sync: %v", c.accountID, err)
		c.tracker.Force(StateOpenPending)
	}

	utils.Infof("[%s] STEP 3/6: position %s registered in ledger", c.accountID, position.ContractID)
	c.notifyEvent(models.NotificationTypeOpen, models.SeverityInfo,
		fmt.Sprintf("Opened %s %s stake %.2f", position.Direction, position.Symbol, position.Stake),
		map[string]interface{}{"contract_id": position.ContractID})

	// Двухфазный режим: окно отмены, затем фиксация
	var result *models.SettlementResult
	if c.cfg.CancellationEnabled {
		c.tracker.Force(StateOpenCancellation)
		position.Phase = models.PhaseCancellationActive
		result = c.monitorCancellationWindow(ctx, position)
	}

	if result == nil {
		if ctx.Err() != nil {
			// Стоп-сигнал: выходим сразу, лок освободит defer.
			// Позиция остаётся в леджере для восстановления при рестарте.
			return position, ErrStopped
		}

		c.commit(ctx, position)
		utils.Infof("[%s] STEP 4/6: position %s committed, tp %.2f sl %.2f",
			c.accountID, position.ContractID, position.TakeProfit, position.StopLoss)

		result = c.monitorCommitted(ctx, position)
		if result == nil {
			return position, ErrStopped
		}
	}

	// CLOSING -> CLOSED: обновление леджера до освобождения лока
	c.tracker.Force(StateClosing)
	closed, err := c.ledger.RecordClose(position.ContractID, result)
	if err != nil {
		// Позиция потеряна быть не может: RecordClose падает только если
		// контракта нет в реестре - фиксируем и освобождаем лок
		release(fmt.Sprintf("record close failed: %v", err))
		c.notifyEvent(models.NotificationTypeError, models.SeverityError,
			fmt.Sprintf("Record close failed: %v", err), nil)
		return position, err
	}
	c.tracker.Force(StateClosed)

	utils.Infof("[%s] STEP 5/6: position %s settled: %s %.2f (%s)",
		c.accountID, closed.ContractID, closed.Outcome, closed.RealizedPnl, closed.ClosureType)

	c.persistTrade(closed, result)
	c.notifyClose(closed, result)

	release(fmt.Sprintf("position closed (%s)", result.ClosureType))
	utils.Infof("[%s] STEP 6/6: trade lock released", c.accountID)

	return closed, nil
}

// openPosition открывает контракт с ограниченными повторами.
// Отказы "цена ушла"/"payout изменился" повторяются с новым proposal.
func (c *Coordinator) openPosition(ctx context.Context, sig *models.Signal) (*models.Position, error) {
	tp, sl := sig.TakeProfit, sig.StopLoss
	if !sig.HasExplicitLevels() {
		tp = c.cfg.Stake * c.cfg.TakeProfitPct / 100
		sl = c.cfg.Stake * c.cfg.StopLossPct / 100
	}

	req := &broker.OpenRequest{
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Stake:      c.cfg.Stake,
		Multiplier: c.cfg.Multiplier,
	}
	if c.cfg.CancellationEnabled {
		// В двухфазном режиме TP/SL выставляются после фиксации
		req.Cancellation = c.cfg.CancellationDuration
	} else {
		req.TakeProfit = tp
		req.StopLoss = sl
	}

	retryCfg := retry.Config{
		MaxRetries:   c.cfg.OpenMaxRetries,
		InitialDelay: c.cfg.OpenRetryPause,
		MaxDelay:     c.cfg.OpenRetryPause,
		Multiplier:   1.0,
		RetryIf: func(err error) bool {
			return broker.IsPriceMoved(err) || retry.IsRetryable(err)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			broker.RecordOpenRetry()
			utils.Warnf("[%s] open attempt %d failed: %v, retrying in %v",
				c.accountID, attempt, err, delay)
		},
	}

	res, err := retry.DoWithResult(ctx, func() (*broker.OpenResult, error) {
		return c.client.Open(ctx, req)
	}, retryCfg)
	if err != nil {
		return nil, err
	}

	now := c.clock()
	return &models.Position{
		ContractID: res.ContractID,
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Stake:      c.cfg.Stake,
		EntryPrice: res.EntryPrice,
		TakeProfit: tp,
		StopLoss:   sl,
		Multiplier: c.cfg.Multiplier,
		Phase:      models.PhasePending,
		Status:     models.PositionStatusOpen,
		OpenTime:   now,
		Trailing:   models.NewTrailingState(),
	}, nil
}

// closeOrphan закрывает контракт, регистрация которого была отклонена.
// В окне отмены дешевле отменить, иначе продажа по рынку. Неудача
// логируется: contract_id уходит в HALT-уведомление для ручной сверки.
func (c *Coordinator) closeOrphan(ctx context.Context, p *models.Position) {
	var err error
	if c.cfg.CancellationEnabled {
		_, err = c.client.Cancel(ctx, p.ContractID)
	} else {
		_, err = c.client.Sell(ctx, p.ContractID, 0)
	}
	if err != nil {
		utils.Errorf("[%s] failed to close orphaned contract %s: %v",
			c.accountID, p.ContractID, err)
	}
}

// shouldCancel - правило "подожди и реши" окна отмены:
// до минимального ожидания не отменять ни при каком PnL;
// после него и до конца окна - отменять при PnL <= 0.
func (c *Coordinator) shouldCancel(elapsed time.Duration, pnl float64) bool {
	if elapsed < c.cfg.CancellationMinWait {
		return false
	}
	if elapsed >= c.cfg.CancellationDuration {
		return false
	}
	return pnl <= 0
}

// monitorCancellationWindow ведёт позицию через окно отмены.
// Возвращает итог, если позиция завершилась внутри окна (отмена или
// внешняя продажа), и nil при истечении окна (переход к фиксации)
// или стоп-сигнале.
func (c *Coordinator) monitorCancellationWindow(ctx context.Context, p *models.Position) *models.SettlementResult {
	ticker := time.NewTicker(c.cfg.CancellationCheckInterval)
	defer ticker.Stop()

	deadline := p.OpenTime.Add(c.cfg.CancellationDuration)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := c.clock()
			if !now.Before(deadline) {
				// Окно истекло без отмены - фиксация
				return nil
			}

			st, err := c.client.Status(ctx, p.ContractID)
			if err != nil {
				utils.Warnf("[%s] status poll failed in cancellation window: %v", c.accountID, err)
				continue
			}
			if st.ContractID != p.ContractID {
				// Чужой контракт - отбрасываем
				continue
			}

			if res, ok := ResolveSettlement(p, st, false); ok {
				return res
			}

			if c.shouldCancel(now.Sub(p.OpenTime), st.Profit) {
				if res := c.cancelPosition(ctx, p, st.Profit); res != nil {
					return res
				}
				// Отмена не прошла - продолжаем окно, дальше решит фиксация
			}
		}
	}
}

// cancelPosition отменяет контракт в окне отмены
func (c *Coordinator) cancelPosition(ctx context.Context, p *models.Position, currentPnl float64) *models.SettlementResult {
	res, err := retry.DoWithResult(ctx, func() (*broker.CancelResult, error) {
		return c.client.Cancel(ctx, p.ContractID)
	}, retry.Config{MaxRetries: 2, InitialDelay: time.Second, Multiplier: 1.0})
	if err != nil {
		utils.Errorf("[%s] cancellation failed for %s: %v", c.accountID, p.ContractID, err)
		return nil
	}

	p.CloseReason = "cancellation_window"
	settlement := ResolveCancellation(p, res.Refund, c.cfg.CancellationFee)

	// Экономика отмены: комиссия против избегнутого убытка
	avoided := 0.0
	if currentPnl < 0 {
		avoided = -currentPnl
	}
	c.ledger.RecordCancellation(c.cfg.CancellationFee, avoided)

	c.notifyEvent(models.NotificationTypeCancel, models.SeverityInfo,
		fmt.Sprintf("Cancelled %s at pnl %.2f, fee %.2f", p.ContractID, currentPnl, c.cfg.CancellationFee),
		map[string]interface{}{"contract_id": p.ContractID})

	return settlement
}

// commit фиксирует позицию: применяет TP/SL второй фазы
func (c *Coordinator) commit(ctx context.Context, p *models.Position) {
	p.Phase = models.PhaseCommitted
	c.tracker.Force(StateOpenCommitted)

	if !c.cfg.CancellationEnabled {
		// TP/SL уже выставлены при открытии
		return
	}

	err := retry.Do(ctx, func() error {
		return c.client.UpdateLimits(ctx, p.ContractID, p.TakeProfit, p.StopLoss)
	}, retry.Config{MaxRetries: 2, InitialDelay: time.Second, Multiplier: 1.0})
	if err != nil {
		// Не фатально: мониторинг сам продаст по денежным порогам
		utils.Warnf("[%s] failed to apply phase-2 limits on %s: %v", c.accountID, p.ContractID, err)
	}
}

// monitorCommitted - основной цикл мониторинга зафиксированной позиции.
// Явный poll-цикл с проверкой стоп-сигнала на каждой итерации.
// Возвращает итог расчёта или nil при стоп-сигнале.
func (c *Coordinator) monitorCommitted(ctx context.Context, p *models.Position) *models.SettlementResult {
	ticker := time.NewTicker(c.cfg.MonitorInterval)
	defer ticker.Stop()

	lastGoodPoll := c.clock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := c.clock()

			// Жёсткий потолок длительности сделки
			if p.Age(now) > c.cfg.MaxTradeDuration {
				p.CloseReason = "max_duration"
				if res := c.sellWithRetry(ctx, p); res != nil {
					return res
				}
				return ResolveTimeout(p)
			}

			st, err := c.client.Status(ctx, p.ContractID)
			if err != nil {
				// Повторные таймауты ведут в консервативный fallback,
				// а не в бесконечное ожидание
				if now.Sub(lastGoodPoll) > c.cfg.SettlementWait {
					utils.Errorf("[%s] settlement unconfirmed for %s after %v, assuming loss",
						c.accountID, p.ContractID, c.cfg.SettlementWait)
					p.CloseReason = "settlement_timeout"
					return ResolveTimeout(p)
				}
				continue
			}
			if st.ContractID != p.ContractID {
				// Чужое/устаревшее сообщение не применяется к позиции
				continue
			}
			lastGoodPoll = now

			if res, ok := ResolveSettlement(p, st, false); ok {
				if p.CloseReason == "" {
					p.CloseReason = res.ClosureType
				}
				return res
			}

			pnl := st.Profit

			// Денежные пороги TP/SL - продажа по инициативе бота
			if p.TakeProfit > 0 && pnl >= p.TakeProfit {
				p.CloseReason = "take_profit"
				if res := c.sellWithRetry(ctx, p); res != nil {
					return res
				}
				continue
			}
			if p.StopLoss > 0 && pnl <= -p.StopLoss {
				p.CloseReason = "stop_loss"
				if res := c.sellWithRetry(ctx, p); res != nil {
					return res
				}
				continue
			}

			// Динамические правила выхода
			dec := c.exits.Evaluate(p, pnl, c.ledger.DailyPnl(), now)
			if dec.ActivatedTier >= 0 {
				utils.Infof("[%s] trailing tier %d activated on %s at %.1f%%",
					c.accountID, dec.ActivatedTier, p.ContractID, p.Trailing.PeakProfitPct)
			}
			if dec.BreakevenArm {
				utils.Infof("[%s] breakeven stop armed on %s", c.accountID, p.ContractID)
			}
			if dec.ShouldClose {
				RecordExitRule(dec.Reason)
				p.CloseReason = dec.Reason
				if res := c.sellWithRetry(ctx, p); res != nil {
					return res
				}
			}
		}
	}
}

// sellWithRetry продаёт контракт по рынку с ограниченными повторами.
// Возвращает nil если продажа не прошла - мониторинг продолжается.
func (c *Coordinator) sellWithRetry(ctx context.Context, p *models.Position) *models.SettlementResult {
	res, err := retry.DoWithResult(ctx, func() (*broker.SellResult, error) {
		return c.client.Sell(ctx, p.ContractID, 0)
	}, retry.Config{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1.0})
	if err != nil {
		utils.Errorf("[%s] sell failed for %s (%s): %v", c.accountID, p.ContractID, p.CloseReason, err)
		return nil
	}

	profit := res.SoldFor - p.Stake
	return &models.SettlementResult{
		Status:      models.OutcomeFromPnl(profit),
		RealizedPnl: profit,
		ClosureType: models.ClosureTarget,
	}
}

// persistTrade сохраняет закрытую сделку с ограниченными повторами.
// Ошибка после исчерпания повторов логируется и не блокирует
// освобождение лока.
func (c *Coordinator) persistTrade(p *models.Position, res *models.SettlementResult) {
	if c.persist == nil {
		return
	}

	rec := models.RecordFromPosition(c.accountID, p, res.Unconfirmed)
	err := retry.Do(context.Background(), func() error {
		return c.persist(rec)
	}, retry.Config{MaxRetries: 3, InitialDelay: 200 * time.Millisecond, Multiplier: 2.0})
	if err != nil {
		utils.Errorf("[%s] failed to persist trade %s: %v", c.accountID, p.ContractID, err)
	}
}

// notifyClose отправляет уведомление о закрытии
func (c *Coordinator) notifyClose(p *models.Position, res *models.SettlementResult) {
	severity := models.SeverityInfo
	msg := fmt.Sprintf("Closed %s: %s %.2f (%s)", p.ContractID, res.Status, res.RealizedPnl, res.ClosureType)
	if res.Unconfirmed {
		severity = models.SeverityWarn
		msg += " [UNCONFIRMED, needs manual reconciliation]"
	}
	c.notifyEvent(models.NotificationTypeClose, severity, msg, map[string]interface{}{
		"contract_id":  p.ContractID,
		"closure_type": res.ClosureType,
		"close_reason": p.CloseReason,
	})
}

// notifyEvent отправляет уведомление в sink (fire-and-forget)
func (c *Coordinator) notifyEvent(ntype, severity, message string, meta map[string]interface{}) {
	if c.notify == nil {
		return
	}
	c.notify(&models.Notification{
		Timestamp: c.clock(),
		Type:      ntype,
		Severity:  severity,
		AccountID: c.accountID,
		Message:   message,
		Meta:      meta,
	})
}
