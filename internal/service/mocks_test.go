package service

import (
	"errors"
	"time"

	"derivbot/internal/models"
)

var errMockDB = errors.New("database error")

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	notifications []*models.Notification
	createErr     error
	getErr        error
	deleteErr     error
	nextID        int

	lastTypes []string
	lastLimit int
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{nextID: 1}
}

func (m *MockNotificationRepository) Create(n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = m.nextID
	m.nextID++
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MockNotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastLimit = limit
	if len(m.notifications) > limit {
		return m.notifications[:limit], nil
	}
	return m.notifications, nil
}

func (m *MockNotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastTypes = types
	m.lastLimit = limit

	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	var result []*models.Notification
	for _, n := range m.notifications {
		if allowed[n.Type] {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) DeleteAll() error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.notifications = nil
	return nil
}

func (m *MockNotificationRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var kept []*models.Notification
	var deleted int64
	for _, n := range m.notifications {
		if n.Timestamp.Before(timestamp) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	return deleted, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades    []*models.TradeRecord
	daily     []*models.DailyStats
	createErr error
	getErr    error
	markErr   error
	nextID    int

	lastLimit int
	lastDays  int

	confirmedID  int
	confirmedPnl float64
	confirmedOut string
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{nextID: 1}
}

func (m *MockTradeRepository) Create(rec *models.TradeRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	rec.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, rec)
	return nil
}

func (m *MockTradeRepository) GetByID(id int) (*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, rec := range m.trades {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errMockDB
}

func (m *MockTradeRepository) GetByContractID(contractID string) (*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, rec := range m.trades {
		if rec.ContractID == contractID {
			return rec, nil
		}
	}
	return nil, errMockDB
}

func (m *MockTradeRepository) GetRecent(accountID string, limit int) ([]*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastLimit = limit

	var result []*models.TradeRecord
	for _, rec := range m.trades {
		if rec.AccountID == accountID {
			result = append(result, rec)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTradeRepository) GetUnconfirmed(accountID string) ([]*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.TradeRecord
	for _, rec := range m.trades {
		if rec.AccountID == accountID && rec.Unconfirmed {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) MarkConfirmed(id int, realizedPnl float64, outcome string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.confirmedID = id
	m.confirmedPnl = realizedPnl
	m.confirmedOut = outcome
	return nil
}

func (m *MockTradeRepository) GetByTimeRange(accountID string, from, to time.Time) ([]*models.TradeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.TradeRecord
	for _, rec := range m.trades {
		if rec.AccountID == accountID && !rec.OpenedAt.Before(from) && rec.OpenedAt.Before(to) {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) DailyStats(accountID string, days int) ([]*models.DailyStats, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastDays = days
	return m.daily, nil
}

func (m *MockTradeRepository) Count(accountID string) (int, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	count := 0
	for _, rec := range m.trades {
		if rec.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (m *MockTradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	var kept []*models.TradeRecord
	var deleted int64
	for _, rec := range m.trades {
		if rec.OpenedAt.Before(timestamp) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.trades = kept
	return deleted, nil
}

// ============ Mock WebSocketBroadcaster ============

type MockBroadcaster struct {
	notifications []interface{}
}

func (m *MockBroadcaster) BroadcastNotification(notification interface{}) {
	m.notifications = append(m.notifications, notification)
}
