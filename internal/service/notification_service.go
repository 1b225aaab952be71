package service

import (
	"strings"
	"time"

	"derivbot/internal/models"
)

// NotificationService - бизнес-логика журнала событий бота.
//
// Отвечает за:
// - Получение списка уведомлений с фильтрацией по типам
// - Очистку журнала
// - Создание уведомлений с broadcast на дашборд
type NotificationService struct {
	repo  NotificationRepositoryInterface
	wsHub WebSocketBroadcaster
}

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений.
// Позволяет избежать циклических зависимостей между пакетами.
type WebSocketBroadcaster interface {
	BroadcastNotification(notification interface{})
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(repo NotificationRepositoryInterface) *NotificationService {
	return &NotificationService{repo: repo}
}

// SetWebSocketHub устанавливает hub для broadcast уведомлений.
// Вызывается после инициализации Hub в main.go.
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// CreateNotification сохраняет уведомление и рассылает его на дашборд
func (s *NotificationService) CreateNotification(n *models.Notification) error {
	if err := s.repo.Create(n); err != nil {
		return err
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(n)
	}

	return nil
}

// GetNotifications возвращает уведомления с фильтрацией по типам.
// Пустой список типов означает все типы. Лимит по умолчанию 100,
// максимум 500. Новые записи сверху.
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	normalized := make([]string, 0, len(types))
	for _, t := range types {
		upper := strings.ToUpper(strings.TrimSpace(t))
		if upper != "" && isValidNotificationType(upper) {
			normalized = append(normalized, upper)
		}
	}

	if len(normalized) > 0 {
		return s.repo.GetByTypes(normalized, limit)
	}

	return s.repo.GetRecent(limit)
}

// ClearNotifications очищает журнал уведомлений
func (s *NotificationService) ClearNotifications() error {
	return s.repo.DeleteAll()
}

// CleanupOld удаляет уведомления старше retentionDays дней.
// Возвращает количество удаленных записей.
func (s *NotificationService) CleanupOld(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteOlderThan(cutoff)
}

func isValidNotificationType(notifType string) bool {
	switch notifType {
	case models.NotificationTypeOpen,
		models.NotificationTypeClose,
		models.NotificationTypeCancel,
		models.NotificationTypeHalt,
		models.NotificationTypeWatchdog,
		models.NotificationTypeError:
		return true
	}
	return false
}
