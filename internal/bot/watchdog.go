package bot

import (
	"context"
	"fmt"
	"time"

	"derivbot/internal/models"
	"derivbot/pkg/utils"
)

// Watchdog - фоновая проверка консистентности лока и леджера.
//
// Зависший лок (занят, реестр открытых позиций пуст, с момента захвата
// прошло больше pending-таймаута) принудительно освобождается, halt
// леджера снимается. Это восстанавливает работу после падения между
// "лок захвачен" и "позиция зарегистрирована".
type Watchdog struct {
	accountID string

	ledger *RiskLedger
	lock   *TradeLock

	interval       time.Duration
	pendingTimeout time.Duration

	notify NotificationSink

	stopCh chan struct{}
	clock  func() time.Time
}

// NewWatchdog создает watchdog для одного аккаунта
func NewWatchdog(accountID string, ledger *RiskLedger, lock *TradeLock,
	interval, pendingTimeout time.Duration) *Watchdog {
	return &Watchdog{
		accountID:      accountID,
		ledger:         ledger,
		lock:           lock,
		interval:       interval,
		pendingTimeout: pendingTimeout,
		stopCh:         make(chan struct{}),
		clock:          time.Now,
	}
}

// SetNotificationSink подключает sink уведомлений
func (w *Watchdog) SetNotificationSink(notify NotificationSink) {
	w.notify = notify
}

// Start запускает цикл проверок. Блокирует - вызывать в горутине.
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	utils.Infof("[%s] watchdog started, interval %v, pending timeout %v",
		w.accountID, w.interval, w.pendingTimeout)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkOnce(w.clock())
		}
	}
}

// Stop останавливает watchdog
func (w *Watchdog) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// checkOnce выполняет одну проверку. Возвращает true если лок был
// принудительно освобождён.
func (w *Watchdog) checkOnce(now time.Time) bool {
	held, symbol, marker, acquiredAt := w.lock.Snapshot()
	if !held {
		return false
	}

	if w.ledger.OpenCount() > 0 {
		// Лок с живой позицией - норма
		return false
	}

	elapsed := now.Sub(acquiredAt)
	if elapsed <= w.pendingTimeout {
		return false
	}

	utils.Warnf("[%s] stuck lock detected: symbol %s marker %s held %v with empty registry, force releasing",
		w.accountID, symbol, marker, elapsed)

	w.lock.Release("watchdog: stuck pending lock")
	w.ledger.ClearHalt()
	RecordWatchdogRelease()

	if w.notify != nil {
		w.notify(&models.Notification{
			Timestamp: now,
			Type:      models.NotificationTypeWatchdog,
			Severity:  models.SeverityWarn,
			AccountID: w.accountID,
			Message:   fmt.Sprintf("Watchdog force-released stuck lock (%s, held %v)", symbol, elapsed),
			Meta:      map[string]interface{}{"marker": marker},
		})
	}

	return true
}
