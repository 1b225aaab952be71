package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Ошибки брокера
var (
	ErrNotConnected    = errors.New("broker connection is not established")
	ErrRequestTimeout  = errors.New("broker request timed out")
	ErrContractMissing = errors.New("contract not found on broker side")
)

// APIError - ошибка, возвращённая API брокера
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker api error [%s]: %s", e.Code, e.Message)
}

// IsPriceMoved возвращает true для отказов, которые лечатся повтором
// с новым proposal (цена ушла, изменился payout)
func IsPriceMoved(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "moved too much") ||
		strings.Contains(msg, "payout has changed")
}

// OpenRequest - параметры открытия мультипликаторного контракта
type OpenRequest struct {
	Symbol     string
	Direction  string // UP, DOWN
	Stake      float64
	Multiplier int

	// Денежные пороги TP/SL; 0 = не задавать при открытии
	TakeProfit float64
	StopLoss   float64

	// Длительность окна отмены двухфазного режима; 0 = без отмены
	Cancellation time.Duration
}

// OpenResult - подтверждение открытия
type OpenResult struct {
	ContractID string
	EntryPrice float64
	BuyPrice   float64
	AskPrice   float64 // цена из proposal, для контроля допуска
}

// ContractStatus - снимок состояния контракта от брокера
type ContractStatus struct {
	ContractID  string
	IsSold      bool
	IsExpired   bool
	Profit      float64
	BidPrice    float64
	BuyPrice    float64
	SellPrice   float64
	CurrentSpot float64
}

// Terminal возвращает true если контракт завершён на стороне брокера
func (s *ContractStatus) Terminal() bool {
	return s.IsSold || s.IsExpired
}

// SellResult - итог продажи контракта
type SellResult struct {
	ContractID string
	SoldFor    float64
}

// CancelResult - итог отмены в окне двухфазного режима
type CancelResult struct {
	ContractID string
	Refund     float64
}

// Client - контракт брокерского коллаборатора, потребляемый ядром.
// Реализация живёт в этом пакете (Deriv WS), в тестах подменяется фейком.
type Client interface {
	// Open открывает контракт (proposal -> buy)
	Open(ctx context.Context, req *OpenRequest) (*OpenResult, error)

	// Status возвращает текущее состояние контракта
	Status(ctx context.Context, contractID string) (*ContractStatus, error)

	// Sell продаёт контракт по рынку (price 0 = любая цена)
	Sell(ctx context.Context, contractID string, price float64) (*SellResult, error)

	// Cancel отменяет контракт в окне отмены
	Cancel(ctx context.Context, contractID string) (*CancelResult, error)

	// UpdateLimits выставляет TP/SL на открытом контракте (вторая фаза)
	UpdateLimits(ctx context.Context, contractID string, takeProfit, stopLoss float64) error
}
