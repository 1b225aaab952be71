package bot

import "derivbot/internal/models"

// tryEnqueueNotification отправляет уведомление в канал с метриками переполнения.
// Возвращает true, если уведомление поставлено в очередь.
func tryEnqueueNotification(ch chan *models.Notification, notif *models.Notification) bool {
	if ch == nil || notif == nil {
		return false
	}

	select {
	case ch <- notif:
		return true
	default:
		RecordBufferOverflow("notification")
		RecordBufferBacklog("notification", cap(ch), len(ch))
		return false
	}
}

// tryEnqueueSignal отправляет сигнал стратегии без блокировки.
// Сигнал, пришедший пока слот занят, просто отбрасывается -
// гейт всё равно отклонил бы его по лимиту конкурентности.
func tryEnqueueSignal(ch chan *models.Signal, sig *models.Signal) bool {
	if ch == nil || sig == nil {
		return false
	}

	select {
	case ch <- sig:
		return true
	default:
		RecordBufferOverflow("signal")
		RecordBufferBacklog("signal", cap(ch), len(ch))
		return false
	}
}
