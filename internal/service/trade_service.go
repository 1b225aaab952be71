package service

import (
	"time"

	"derivbot/internal/models"
)

// TradeService - бизнес-логика истории сделок.
//
// Отвечает за:
// - Выборку истории сделок аккаунта для дашборда
// - Список неподтвержденных закрытий (timeout fallback)
// - Дневную агрегированную статистику
// - Подтверждение результата сделки оператором
type TradeService struct {
	repo TradeRepositoryInterface
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(repo TradeRepositoryInterface) *TradeService {
	return &TradeService{repo: repo}
}

// GetRecentTrades возвращает последние сделки аккаунта.
// Лимит по умолчанию 50, максимум 500.
func (s *TradeService) GetRecentTrades(accountID string, limit int) ([]*models.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.repo.GetRecent(accountID, limit)
}

// GetUnconfirmedTrades возвращает сделки, закрытые консервативным
// timeout fallback. Их реальный результат требует ручной сверки
// с кабинетом брокера.
func (s *TradeService) GetUnconfirmedTrades(accountID string) ([]*models.TradeRecord, error) {
	return s.repo.GetUnconfirmed(accountID)
}

// GetDailyStats возвращает дневную статистику за последние N дней.
// По умолчанию 7 дней, максимум 90.
func (s *TradeService) GetDailyStats(accountID string, days int) ([]*models.DailyStats, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	return s.repo.DailyStats(accountID, days)
}

// ConfirmTrade фиксирует сверенный оператором результат сделки.
// Outcome выводится из знака PnL.
func (s *TradeService) ConfirmTrade(id int, realizedPnl float64) error {
	return s.repo.MarkConfirmed(id, realizedPnl, models.OutcomeFromPnl(realizedPnl))
}

// GetTradesByTimeRange возвращает сделки аккаунта за период
func (s *TradeService) GetTradesByTimeRange(accountID string, from, to time.Time) ([]*models.TradeRecord, error) {
	return s.repo.GetByTimeRange(accountID, from, to)
}

// CleanupOld удаляет сделки старше retentionDays дней
func (s *TradeService) CleanupOld(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteOlderThan(cutoff)
}
