package bot

import (
	"sync"
	"time"

	"derivbot/pkg/utils"
)

// PendingEntryMarker ставится в лок между захватом и регистрацией позиции.
// По нему watchdog отличает "зависший" лок от лока с живым контрактом.
const PendingEntryMarker = "pending_entry"

// TradeLock - мьютекс вокруг слота открытой позиции аккаунта.
//
// Семантика:
// - Acquire неблокирующий: false если лок уже занят
// - Release идемпотентный: повторный вызов - no-op, не ошибка
// - лок захватывается строго до открытия позиции и отпускается
//   ровно один раз на каждый захват, на любом пути выхода
type TradeLock struct {
	mu         sync.Mutex
	held       bool
	symbol     string
	marker     string // contract_id или PendingEntryMarker
	acquiredAt time.Time

	clock func() time.Time
}

// NewTradeLock создает новый лок
func NewTradeLock() *TradeLock {
	return &TradeLock{clock: time.Now}
}

// Acquire пытается захватить лок. Возвращает false если уже занят.
func (l *TradeLock) Acquire(symbol, marker string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return false
	}

	l.held = true
	l.symbol = symbol
	l.marker = marker
	l.acquiredAt = l.clock()
	UpdateLockHeld(true)
	return true
}

// Release освобождает лок. Идемпотентен.
func (l *TradeLock) Release(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}

	utils.Info("Trade lock released",
		utils.Symbol(l.symbol),
		utils.ContractID(l.marker),
		utils.Reason(reason),
	)

	l.held = false
	l.symbol = ""
	l.marker = ""
	l.acquiredAt = time.Time{}
	UpdateLockHeld(false)
}

// SetContract заменяет pending-маркер на настоящий contract_id
// после подтверждения открытия брокером
func (l *TradeLock) SetContract(contractID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		l.marker = contractID
	}
}

// IsHeld возвращает true если лок занят
func (l *TradeLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Snapshot возвращает текущее состояние лока (для watchdog и API)
func (l *TradeLock) Snapshot() (held bool, symbol, marker string, acquiredAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held, l.symbol, l.marker, l.acquiredAt
}
