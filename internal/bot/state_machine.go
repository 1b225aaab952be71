package bot

import (
	"fmt"
	"sync"
)

// Состояния жизненного цикла позиции
const (
	StateIdle             = "IDLE"
	StateLockAcquired     = "LOCK_ACQUIRED"
	StateOpening          = "OPENING"
	StateOpenPending      = "OPEN_PENDING"
	StateOpenCancellation = "OPEN_CANCELLATION"
	StateOpenCommitted    = "OPEN_COMMITTED"
	StateClosing          = "CLOSING"
	StateClosed           = "CLOSED"
	StateReleased         = "RELEASED"
)

// ValidTransitions определяет допустимые переходы между состояниями
var ValidTransitions = map[string][]string{
	StateIdle:             {StateLockAcquired},
	StateLockAcquired:     {StateOpening, StateReleased}, // Released при провале post-acquire проверки
	StateOpening:          {StateOpenPending, StateReleased},
	StateOpenPending:      {StateOpenCancellation, StateOpenCommitted, StateClosing},
	StateOpenCancellation: {StateOpenCommitted, StateClosing},
	StateOpenCommitted:    {StateClosing},
	StateClosing:          {StateClosed},
	StateClosed:           {StateReleased},
	StateReleased:         {StateIdle},
}

// StateTransitionError - ошибка недопустимого перехода
type StateTransitionError struct {
	From string
	To   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateTracker хранит текущее состояние жизненного цикла позиции
type StateTracker struct {
	mu    sync.Mutex
	state string
}

// NewStateTracker создает трекер в состоянии IDLE
func NewStateTracker() *StateTracker {
	return &StateTracker{state: StateIdle}
}

// State возвращает текущее состояние
func (t *StateTracker) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Try выполняет атомарный переход. Возвращает *StateTransitionError
// если переход недопустим.
func (t *StateTracker) Try(to string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !CanTransition(t.state, to) {
		return &StateTransitionError{From: t.state, To: to}
	}

	t.state = to
	return nil
}

// Force выполняет переход без проверки (восстановление после ошибок)
func (t *StateTracker) Force(to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = to
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case StateIdle:
		return "Ожидание сигнала"
	case StateLockAcquired:
		return "Лок захвачен, проверка слота"
	case StateOpening:
		return "Открытие позиции..."
	case StateOpenPending:
		return "Позиция открыта (фаза не определена)"
	case StateOpenCancellation:
		return "Действует окно отмены"
	case StateOpenCommitted:
		return "Позиция зафиксирована, мониторинг выхода"
	case StateClosing:
		return "Закрытие позиции..."
	case StateClosed:
		return "Позиция закрыта, обновление леджера"
	case StateReleased:
		return "Лок освобождён"
	default:
		return "Неизвестное состояние"
	}
}

// HasOpenPosition возвращает true если в этом состоянии есть открытая позиция
func HasOpenPosition(s string) bool {
	switch s {
	case StateOpenPending, StateOpenCancellation, StateOpenCommitted, StateClosing:
		return true
	}
	return false
}

// IsActive возвращает true если жизненный цикл в процессе исполнения
func IsActive(s string) bool {
	return s != StateIdle && s != StateReleased
}
