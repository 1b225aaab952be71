package bot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"derivbot/internal/config"
	"derivbot/internal/models"
)

// Ошибки леджера
var (
	ErrLedgerHalted      = errors.New("risk ledger is halted")
	ErrDuplicateContract = errors.New("duplicate contract id in open registry")
	ErrConcurrencyLimit  = errors.New("concurrent position limit reached")
	ErrPositionNotFound  = errors.New("position not found in open registry")
)

// RiskLedger - агрегированное состояние риска одного аккаунта.
//
// Единственный владелец дневных счётчиков, серии убытков и реестра
// открытых позиций. Все мутации идут через методы леджера; прямого
// доступа к полям нет ни у одного другого компонента.
//
// Инварианты:
// - dailyPnl == сумма PnL всех позиций tradesToday
// - consecutiveLosses сбрасывается на WIN, инкрементируется на LOSS
// - len(openPositions) никогда не превышает MaxConcurrentTrades
// - дубликат contract_id при регистрации = integrity fault: halt, без перезаписи
type RiskLedger struct {
	mu  sync.Mutex
	cfg config.RiskConfig

	accountID string

	openPositions map[string]*models.Position
	tradesToday   []*models.Position

	dailyPnl          float64
	totalPnl          float64
	consecutiveLosses int
	winningTrades     int
	losingTrades      int
	totalTrades       int

	lastTradeTime time.Time
	lastLossTime  time.Time
	currentDate   string // торговый день YYYY-MM-DD

	// peak/drawdown по кумулятивному PnL
	peakPnl     float64
	maxDrawdown float64

	// экономика отмен двухфазного режима
	cancellations    int
	cancellationFees float64
	estimatedSavings float64

	halted     bool
	haltReason string

	clock func() time.Time // подменяется в тестах
}

// NewRiskLedger создает леджер для одного аккаунта
func NewRiskLedger(accountID string, cfg config.RiskConfig) *RiskLedger {
	now := time.Now()
	return &RiskLedger{
		cfg:           cfg,
		accountID:     accountID,
		openPositions: make(map[string]*models.Position),
		currentDate:   now.Format("2006-01-02"),
		clock:         time.Now,
	}
}

// rolloverLocked сбрасывает дневные агрегаты при смене торгового дня.
// Вызывается под l.mu.
func (l *RiskLedger) rolloverLocked(now time.Time) {
	today := now.Format("2006-01-02")
	if l.currentDate == today {
		return
	}

	l.currentDate = today
	l.tradesToday = l.tradesToday[:0]
	l.dailyPnl = 0
}

// RecordOpen регистрирует открытую позицию в реестре.
//
// Дубликат contract_id - фатальное нарушение инварианта: леджер
// останавливается с описательной причиной, реестр не меняется.
// Снять halt может только оператор или watchdog.
func (l *RiskLedger) RecordOpen(p *models.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return fmt.Errorf("%w: %s", ErrLedgerHalted, l.haltReason)
	}

	if _, exists := l.openPositions[p.ContractID]; exists {
		l.halted = true
		l.haltReason = fmt.Sprintf("Duplicate contract id %s on record open", p.ContractID)
		RecordHalt("duplicate_contract")
		return fmt.Errorf("%w: %s", ErrDuplicateContract, p.ContractID)
	}

	if len(l.openPositions) >= l.cfg.MaxConcurrentTrades {
		return fmt.Errorf("%w: %d/%d", ErrConcurrencyLimit,
			len(l.openPositions), l.cfg.MaxConcurrentTrades)
	}

	l.openPositions[p.ContractID] = p
	l.lastTradeTime = l.clock()
	UpdateOpenPositions(len(l.openPositions))

	return nil
}

// RecordClose переносит позицию из реестра открытых в дневную историю
// и обновляет агрегаты. Возвращает закрытую позицию.
func (l *RiskLedger) RecordClose(contractID string, res *models.SettlementResult) (*models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.openPositions[contractID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, contractID)
	}

	delete(l.openPositions, contractID)

	now := l.clock()
	p.Status = models.PositionStatusClosed
	p.Outcome = res.Status
	p.ClosureType = res.ClosureType
	p.RealizedPnl = res.RealizedPnl
	p.CloseTime = &now

	l.tradesToday = append(l.tradesToday, p)
	l.dailyPnl += res.RealizedPnl
	l.totalPnl += res.RealizedPnl
	l.totalTrades++

	switch res.Status {
	case models.OutcomeWin:
		l.winningTrades++
		l.consecutiveLosses = 0
	case models.OutcomeLoss:
		l.losingTrades++
		l.consecutiveLosses++
		l.lastLossTime = now
	}

	// peak/drawdown по кумулятивному PnL
	if l.totalPnl > l.peakPnl {
		l.peakPnl = l.totalPnl
	}
	if dd := l.peakPnl - l.totalPnl; dd > l.maxDrawdown {
		l.maxDrawdown = dd
	}

	UpdateOpenPositions(len(l.openPositions))
	RecordTrade(p.Symbol, res.Status, res.ClosureType, res.RealizedPnl)

	return p, nil
}

// RecordCancellation учитывает экономику отмены: уплаченную комиссию
// и оценку избегнутого убытка
func (l *RiskLedger) RecordCancellation(fee, avoidedLoss float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancellations++
	l.cancellationFees += fee
	l.estimatedSavings += avoidedLoss - fee
}

// Halt останавливает леджер с причиной. Новые сделки блокируются
// до явного сброса оператором или watchdog'ом.
func (l *RiskLedger) Halt(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.halted = true
	l.haltReason = reason
}

// ClearHalt снимает остановку. Вызывается только оператором или watchdog'ом,
// никогда - обычным торговым потоком.
func (l *RiskLedger) ClearHalt() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.halted = false
	l.haltReason = ""
}

// Halted возвращает флаг и причину остановки
func (l *RiskLedger) Halted() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted, l.haltReason
}

// ResetLossStreak сбрасывает серию убытков (операторский сброс circuit breaker)
func (l *RiskLedger) ResetLossStreak() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutiveLosses = 0
}

// OpenCount возвращает число открытых позиций
func (l *RiskLedger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.openPositions)
}

// Get возвращает открытую позицию по contract_id
func (l *RiskLedger) Get(contractID string) (*models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.openPositions[contractID]
	return p, ok
}

// OpenPositions возвращает срез открытых позиций
func (l *RiskLedger) OpenPositions() []*models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.Position, 0, len(l.openPositions))
	for _, p := range l.openPositions {
		out = append(out, p)
	}
	return out
}

// DailyPnl возвращает дневной PnL
func (l *RiskLedger) DailyPnl() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyPnl
}

// ConsecutiveLosses возвращает текущую серию убытков
func (l *RiskLedger) ConsecutiveLosses() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consecutiveLosses
}

// Statistics возвращает снимок статистики аккаунта
func (l *RiskLedger) Statistics() *models.Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	winRate := 0.0
	if l.totalTrades > 0 {
		winRate = float64(l.winningTrades) / float64(l.totalTrades) * 100
	}

	return &models.Statistics{
		AccountID:         l.accountID,
		TotalTrades:       l.totalTrades,
		WinningTrades:     l.winningTrades,
		LosingTrades:      l.losingTrades,
		WinRate:           winRate,
		TotalPnl:          l.totalPnl,
		DailyPnl:          l.dailyPnl,
		TradesToday:       len(l.tradesToday),
		ConsecutiveLosses: l.consecutiveLosses,
		OpenPositions:     len(l.openPositions),
		PeakPnl:           l.peakPnl,
		MaxDrawdown:       l.maxDrawdown,
		Cancellations:     l.cancellations,
		CancellationFees:  l.cancellationFees,
		EstimatedSavings:  l.estimatedSavings,
		Halted:            l.halted,
		HaltReason:        l.haltReason,
		LastTradeTime:     l.lastTradeTime,
		CurrentDate:       l.currentDate,
	}
}
