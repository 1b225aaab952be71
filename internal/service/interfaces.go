package service

import (
	"time"

	"derivbot/internal/bot"
	"derivbot/internal/models"
	"derivbot/internal/repository"
)

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(n *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetByTypes(types []string, limit int) ([]*models.Notification, error)
	DeleteAll() error
	DeleteOlderThan(timestamp time.Time) (int64, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	Create(rec *models.TradeRecord) error
	GetByID(id int) (*models.TradeRecord, error)
	GetByContractID(contractID string) (*models.TradeRecord, error)
	GetRecent(accountID string, limit int) ([]*models.TradeRecord, error)
	GetUnconfirmed(accountID string) ([]*models.TradeRecord, error)
	MarkConfirmed(id int, realizedPnl float64, outcome string) error
	GetByTimeRange(accountID string, from, to time.Time) ([]*models.TradeRecord, error)
	DailyStats(accountID string, days int) ([]*models.DailyStats, error)
	Count(accountID string) (int, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)

// ============ Интерфейсы для Dependency Injection ============

// EngineInterface - операции торгового движка, доступные через API
type EngineInterface interface {
	Status() *bot.EngineStatus
	Statistics() *models.Statistics
	Submit(sig *models.Signal) bool
	ClearHalt()
	ResetLossStreak()
}

var _ EngineInterface = (*bot.Engine)(nil)

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
	ClearNotifications() error
	CreateNotification(n *models.Notification) error
}

// TradeServiceInterface определяет интерфейс сервиса истории сделок
type TradeServiceInterface interface {
	GetRecentTrades(accountID string, limit int) ([]*models.TradeRecord, error)
	GetUnconfirmedTrades(accountID string) ([]*models.TradeRecord, error)
	GetDailyStats(accountID string, days int) ([]*models.DailyStats, error)
	ConfirmTrade(id int, realizedPnl float64) error
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ TradeServiceInterface = (*TradeService)(nil)
