package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"derivbot/internal/service"
)

// NotificationHandler отвечает за журнал событий бота
//
// Endpoints:
// - GET /api/v1/notifications - получение списка уведомлений
// - GET /api/v1/notifications?types=halt,watchdog - фильтрация по типам
// - GET /api/v1/notifications?limit=50 - ограничение количества
// - DELETE /api/v1/notifications - очистка журнала
//
// Типы уведомлений:
// - OPEN: открытие позиции
// - CLOSE: закрытие позиции
// - CANCEL: отмена в окне двухфазного режима
// - HALT: остановка леджера
// - WATCHDOG: принудительный сброс зависшего лока
// - ERROR: ошибка API/брокера
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int               `json:"total"`
}

// NotificationDTO представляет уведомление в API
type NotificationDTO struct {
	ID        int                    `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	AccountID string                 `json:"account_id,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// GetNotifications возвращает список уведомлений с фильтрацией
//
// GET /api/v1/notifications
//
// Query параметры:
// - types (string): фильтр по типам через запятую (open,close,cancel,halt,watchdog,error)
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// Примеры запросов:
// - GET /api/v1/notifications - все уведомления (последние 100)
// - GET /api/v1/notifications?types=halt,watchdog,error - только критические
// - GET /api/v1/notifications?types=open,close&limit=20 - только сделки, 20 записей
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	typesParam := r.URL.Query().Get("types")
	limitParam := r.URL.Query().Get("limit")

	var types []string
	if typesParam != "" {
		for _, part := range strings.Split(typesParam, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				types = append(types, strings.ToUpper(trimmed))
			}
		}
	}

	limit := 0
	if limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	notifications, err := h.notificationService.GetNotifications(types, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get notifications: "+err.Error())
		return
	}

	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, NotificationDTO{
			ID:        n.ID,
			Timestamp: n.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Type:      n.Type,
			Severity:  n.Severity,
			AccountID: n.AccountID,
			Message:   n.Message,
			Meta:      n.Meta,
		})
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: dtos,
		Total:         len(dtos),
	})
}

// ClearNotifications очищает журнал уведомлений
//
// DELETE /api/v1/notifications
//
// Удаляет все уведомления из базы данных. Действие необратимо.
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.ClearNotifications(); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to clear notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Notifications cleared successfully"})
}
