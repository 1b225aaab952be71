package websocket

import (
	"time"

	"derivbot/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений для frontend дашборда
const (
	// MessageTypeTradeUpdate - закрытие сделки или изменение позиции
	MessageTypeTradeUpdate MessageType = "tradeUpdate"

	// MessageTypeNotification - новое уведомление
	// (открытие, закрытие, отмена, halt, watchdog, ошибки)
	MessageTypeNotification MessageType = "notification"

	// MessageTypeStatsUpdate - обновление статистики аккаунта
	MessageTypeStatsUpdate MessageType = "statsUpdate"

	// MessageTypeEngineStatus - снимок состояния движка (лок, halt, стейт)
	MessageTypeEngineStatus MessageType = "engineStatus"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TradeUpdateMessage - сообщение о сделке аккаунта
type TradeUpdateMessage struct {
	BaseMessage
	AccountID string      `json:"account_id"`
	Data      interface{} `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	ID        int                    `json:"id"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	AccountID string                 `json:"account_id,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// StatsUpdateMessage - сообщение со статистикой аккаунта
type StatsUpdateMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// EngineStatusMessage - сообщение с состоянием движка
type EngineStatusMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewTradeUpdateMessage создает сообщение о сделке
func NewTradeUpdateMessage(accountID string, data interface{}) *TradeUpdateMessage {
	return &TradeUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeUpdate,
			Timestamp: time.Now(),
		},
		AccountID: accountID,
		Data:      data,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:        notif.ID,
			Type:      notif.Type,
			Severity:  notif.Severity,
			AccountID: notif.AccountID,
			Message:   notif.Message,
			Meta:      notif.Meta,
			Timestamp: notif.Timestamp,
		},
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(stats interface{}) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}

// NewEngineStatusMessage создает сообщение состояния движка
func NewEngineStatusMessage(status interface{}) *EngineStatusMessage {
	return &EngineStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeEngineStatus,
			Timestamp: time.Now(),
		},
		Data: status,
	}
}
