package handlers

import (
	"errors"
	"time"

	"derivbot/internal/bot"
	"derivbot/internal/models"
)

var errMockService = errors.New("service error")

// ============ Mock Engine ============

type MockEngine struct {
	status *bot.EngineStatus
	stats  *models.Statistics

	clearHaltCalled  bool
	resetStreakCalls int
	submitted        []*models.Signal
	submitOK         bool
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		status: &bot.EngineStatus{
			AccountID:      "CR123",
			Running:        true,
			LifecycleState: "idle",
		},
		stats:    &models.Statistics{},
		submitOK: true,
	}
}

func (m *MockEngine) Status() *bot.EngineStatus        { return m.status }
func (m *MockEngine) Statistics() *models.Statistics   { return m.stats }
func (m *MockEngine) ClearHalt()                       { m.clearHaltCalled = true }
func (m *MockEngine) ResetLossStreak()                 { m.resetStreakCalls++ }
func (m *MockEngine) Submit(sig *models.Signal) bool {
	m.submitted = append(m.submitted, sig)
	return m.submitOK
}

// ============ Mock TradeService ============

type MockTradeService struct {
	trades      []*models.TradeRecord
	unconfirmed []*models.TradeRecord
	daily       []*models.DailyStats
	err         error

	confirmedID  int
	confirmedPnl float64
	lastLimit    int
	lastDays     int
}

func (m *MockTradeService) GetRecentTrades(accountID string, limit int) ([]*models.TradeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastLimit = limit
	return m.trades, nil
}

func (m *MockTradeService) GetUnconfirmedTrades(accountID string) ([]*models.TradeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.unconfirmed, nil
}

func (m *MockTradeService) GetDailyStats(accountID string, days int) ([]*models.DailyStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastDays = days
	return m.daily, nil
}

func (m *MockTradeService) ConfirmTrade(id int, realizedPnl float64) error {
	if m.err != nil {
		return m.err
	}
	m.confirmedID = id
	m.confirmedPnl = realizedPnl
	return nil
}

// ============ Mock NotificationService ============

type MockNotificationService struct {
	notifications []*models.Notification
	err           error

	lastTypes []string
	lastLimit int
	cleared   bool
}

func (m *MockNotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastTypes = types
	m.lastLimit = limit
	return m.notifications, nil
}

func (m *MockNotificationService) ClearNotifications() error {
	if m.err != nil {
		return m.err
	}
	m.cleared = true
	return nil
}

func (m *MockNotificationService) CreateNotification(n *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func sampleNotification(id int, notifType string) *models.Notification {
	return &models.Notification{
		ID:        id,
		Timestamp: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Type:      notifType,
		Severity:  models.SeverityInfo,
		AccountID: "CR123",
		Message:   "test notification",
	}
}
