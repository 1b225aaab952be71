package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"derivbot/internal/broker"
	"derivbot/internal/config"
	"derivbot/internal/models"
	"derivbot/pkg/utils"
)

// WebSocketHub - интерфейс для broadcast обновлений на frontend
type WebSocketHub interface {
	BroadcastTradeUpdate(accountID string, data interface{})
	BroadcastNotification(notification interface{})
	BroadcastStatsUpdate(stats interface{})
}

// TradeStore - персистентность закрытых сделок
type TradeStore interface {
	Create(rec *models.TradeRecord) error
}

// NotificationStore - персистентность уведомлений
type NotificationStore interface {
	Create(n *models.Notification) error
}

// EngineStatus - снимок состояния движка для API
type EngineStatus struct {
	AccountID       string    `json:"account_id"`
	Running         bool      `json:"running"`
	LifecycleState  string    `json:"lifecycle_state"`
	LockHeld        bool      `json:"lock_held"`
	LockSymbol      string    `json:"lock_symbol,omitempty"`
	LockMarker      string    `json:"lock_marker,omitempty"`
	LockAcquiredAt  time.Time `json:"lock_acquired_at,omitempty"`
	Halted          bool      `json:"halted"`
	HaltReason      string    `json:"halt_reason,omitempty"`
	SignalsAccepted int64     `json:"signals_accepted"`
	SignalsDenied   int64     `json:"signals_denied"`
	OpenPositions   int       `json:"open_positions"`
}

// Engine - торговый движок одного аккаунта.
//
// Каждый аккаунт получает собственный экземпляр со своим леджером,
// локом, координатором и подключением к брокеру - никакого разделяемого
// мутабельного состояния между аккаунтами.
//
// Поток управления: сигнал стратегии -> входной гейт -> координатор
// жизненного цикла. Watchdog работает параллельно и независимо.
type Engine struct {
	accountID string
	cfg       *config.Config

	ledger      *RiskLedger
	lock        *TradeLock
	coordinator *Coordinator
	watchdog    *Watchdog
	client      broker.Client

	hub           WebSocketHub
	trades        TradeStore
	notifications NotificationStore

	signalCh chan *models.Signal
	notifCh  chan *models.Notification

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
	running int32 // atomic

	signalsAccepted int64 // atomic
	signalsDenied   int64 // atomic
}

// NewEngine создает движок для одного аккаунта
func NewEngine(accountID string, cfg *config.Config, client broker.Client,
	hub WebSocketHub, trades TradeStore, notifications NotificationStore) *Engine {

	ledger := NewRiskLedger(accountID, cfg.Risk)
	lock := NewTradeLock()
	coordinator := NewCoordinator(accountID, cfg.Lifecycle, cfg.Risk, ledger, lock, client)
	watchdog := NewWatchdog(accountID, ledger, lock, cfg.Risk.WatchdogInterval, cfg.Risk.PendingLockTimeout)

	e := &Engine{
		accountID:     accountID,
		cfg:           cfg,
		ledger:        ledger,
		lock:          lock,
		coordinator:   coordinator,
		watchdog:      watchdog,
		client:        client,
		hub:           hub,
		trades:        trades,
		notifications: notifications,
		signalCh:      make(chan *models.Signal, 16),
		notifCh:       make(chan *models.Notification, 256),
		stopCh:        make(chan struct{}),
	}

	coordinator.SetSinks(e.enqueueNotification, e.persistTrade)
	watchdog.SetNotificationSink(e.enqueueNotification)

	return e
}

// Run запускает движок. Блокирует до ctx.Done() или Stop().
func (e *Engine) Run(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&e.running, 0)

	utils.Infof("[%s] engine started", e.accountID)

	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		e.watchdog.Start(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.dispatchNotifications(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.periodicTasks(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.stopCh:
			e.shutdown()
			return
		case sig := <-e.signalCh:
			e.handleSignal(ctx, sig)
		}
	}
}

// Stop останавливает движок
func (e *Engine) Stop() {
	e.stopped.Do(func() {
		close(e.stopCh)
	})
}

func (e *Engine) shutdown() {
	e.watchdog.Stop()
	e.wg.Wait()
	utils.Infof("[%s] engine stopped", e.accountID)
}

// Submit ставит сигнал стратегии в очередь без блокировки.
// Возвращает false если очередь переполнена.
func (e *Engine) Submit(sig *models.Signal) bool {
	return tryEnqueueSignal(e.signalCh, sig)
}

// handleSignal проводит один сигнал через гейт и жизненный цикл.
// Execute выполняется в цикле сигналов намеренно: на аккаунт живёт
// не больше одной позиции (trade lock), поэтому пока позиция открыта,
// новые сигналы ждут в очереди и проходят гейт уже по её итогам.
func (e *Engine) handleSignal(ctx context.Context, sig *models.Signal) {
	if err := e.ledger.ValidateSignal(sig); err != nil {
		atomic.AddInt64(&e.signalsDenied, 1)
		utils.Warnf("[%s] signal rejected: %v", e.accountID, err)
		return
	}

	allowed, reason := e.ledger.CanTrade(sig.Symbol)
	if !allowed {
		atomic.AddInt64(&e.signalsDenied, 1)
		utils.Infof("[%s] entry denied for %s: %s", e.accountID, sig.Symbol, reason)
		return
	}

	atomic.AddInt64(&e.signalsAccepted, 1)

	closed, err := e.coordinator.Execute(ctx, sig)
	if err != nil {
		utils.Warnf("[%s] lifecycle finished with error: %v", e.accountID, err)
	}
	if closed != nil && e.hub != nil {
		e.hub.BroadcastTradeUpdate(e.accountID, closed)
		e.hub.BroadcastStatsUpdate(e.ledger.Statistics())
	}
}

// dispatchNotifications разбирает очередь уведомлений:
// персистентность + broadcast. Ошибки логируются, торговлю не блокируют.
func (e *Engine) dispatchNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case n := <-e.notifCh:
			if e.notifications != nil {
				if err := e.notifications.Create(n); err != nil {
					utils.Warnf("[%s] failed to persist notification: %v", e.accountID, err)
				}
			}
			if e.hub != nil {
				e.hub.BroadcastNotification(n)
			}
		}
	}
}

// periodicTasks - некритичные фоновые задачи (статистика для UI, метрики)
func (e *Engine) periodicTasks(ctx context.Context) {
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-statsTicker.C:
			if e.hub != nil {
				e.hub.BroadcastStatsUpdate(e.ledger.Statistics())
			}
		}
	}
}

// enqueueNotification - sink уведомлений для координатора и watchdog
func (e *Engine) enqueueNotification(n *models.Notification) {
	tryEnqueueNotification(e.notifCh, n)
}

// persistTrade - sink персистентности для координатора
func (e *Engine) persistTrade(rec *models.TradeRecord) error {
	if e.trades == nil {
		return nil
	}
	return e.trades.Create(rec)
}

// Status возвращает снимок состояния движка
func (e *Engine) Status() *EngineStatus {
	held, symbol, marker, acquiredAt := e.lock.Snapshot()
	halted, haltReason := e.ledger.Halted()

	return &EngineStatus{
		AccountID:       e.accountID,
		Running:         atomic.LoadInt32(&e.running) == 1,
		LifecycleState:  e.coordinator.State(),
		LockHeld:        held,
		LockSymbol:      symbol,
		LockMarker:      marker,
		LockAcquiredAt:  acquiredAt,
		Halted:          halted,
		HaltReason:      haltReason,
		SignalsAccepted: atomic.LoadInt64(&e.signalsAccepted),
		SignalsDenied:   atomic.LoadInt64(&e.signalsDenied),
		OpenPositions:   e.ledger.OpenCount(),
	}
}

// Statistics возвращает статистику леджера
func (e *Engine) Statistics() *models.Statistics {
	return e.ledger.Statistics()
}

// ClearHalt - операторский сброс остановки леджера
func (e *Engine) ClearHalt() {
	e.ledger.ClearHalt()
	utils.Infof("[%s] ledger halt cleared by operator", e.accountID)
}

// ResetLossStreak - операторский сброс circuit breaker
func (e *Engine) ResetLossStreak() {
	e.ledger.ResetLossStreak()
	utils.Infof("[%s] loss streak reset by operator", e.accountID)
}
