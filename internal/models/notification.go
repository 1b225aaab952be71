package models

import "time"

// Notification представляет уведомление о событии
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // OPEN, CLOSE, CANCEL, HALT, WATCHDOG, ERROR
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	AccountID string                 `json:"account_id,omitempty" db:"account_id"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeOpen     = "OPEN"     // открытие позиции
	NotificationTypeClose    = "CLOSE"    // закрытие позиции
	NotificationTypeCancel   = "CANCEL"   // отмена в окне двухфазного режима
	NotificationTypeHalt     = "HALT"     // остановка леджера (integrity fault / circuit breaker)
	NotificationTypeWatchdog = "WATCHDOG" // принудительный сброс зависшего лока
	NotificationTypeError    = "ERROR"    // ошибка API/брокера
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
