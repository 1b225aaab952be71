package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"derivbot/internal/config"
	"derivbot/pkg/ratelimit"
	"derivbot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	contractTypeUp   = "MULTUP"
	contractTypeDown = "MULTDOWN"
)

// DerivClient - клиент WebSocket API брокера Deriv.
//
// Один клиент = одно авторизованное соединение одного аккаунта.
// Запросы сопоставляются с ответами по req_id через таблицу ожидающих
// каналов; разрыв соединения отклоняет все ожидающие запросы, менеджер
// переподключается и заново авторизуется самостоятельно.
type DerivClient struct {
	cfg config.BrokerConfig

	ws      *WSManager
	limiter *ratelimit.RateLimiter

	reqID int64 // atomic

	pending   map[int64]chan *responseEnvelope
	pendingMu sync.Mutex

	// Множитель допустимого ухудшения цены при buy относительно proposal
	priceTolerance float64

	currency string
	loginID  string
}

// NewDerivClient создает клиент брокера.
// priceTolerance <= 1 отключает запас по цене (buy строго по proposal).
func NewDerivClient(cfg config.BrokerConfig, priceTolerance float64) *DerivClient {
	if priceTolerance < 1 {
		priceTolerance = 1
	}

	c := &DerivClient{
		cfg:            cfg,
		limiter:        ratelimit.NewRateLimiter(5, 10),
		pending:        make(map[int64]chan *responseEnvelope),
		priceTolerance: priceTolerance,
		currency:       "USD",
	}

	wsCfg := DefaultWSConfig()
	wsCfg.ConnectTimeout = cfg.ConnectTimeout
	wsCfg.PingInterval = cfg.PingInterval

	url := fmt.Sprintf("%s?app_id=%s", cfg.WSURL, cfg.AppID)
	c.ws = NewWSManager("deriv", url, wsCfg)
	c.ws.SetAuthFunc(c.authorize)
	c.ws.SetOnMessage(c.dispatch)
	c.ws.SetOnDisconnect(func(err error) {
		c.failPending(ErrNotConnected)
	})

	return c
}

// Connect устанавливает и авторизует соединение
func (c *DerivClient) Connect() error {
	if err := utils.ValidateAPIToken(c.cfg.APIToken); err != nil {
		return fmt.Errorf("broker credentials: %w", err)
	}
	return c.ws.Connect()
}

// Close закрывает соединение
func (c *DerivClient) Close() error {
	c.failPending(ErrNotConnected)
	return c.ws.Close()
}

// IsConnected возвращает статус соединения
func (c *DerivClient) IsConnected() bool {
	return c.ws.IsConnected()
}

// authorize выполняет авторизацию на свежем соединении.
// Выполняется синхронно на conn до запуска readPump, поэтому
// читает ответы напрямую.
func (c *DerivClient) authorize(conn *websocket.Conn) error {
	reqID := atomic.AddInt64(&c.reqID, 1)
	req := authorizeRequest{Authorize: c.cfg.APIToken, ReqID: reqID}

	payload, err := json.Marshal(&req)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	for {
		conn.SetReadDeadline(deadline)
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var resp responseEnvelope
		if err := json.Unmarshal(message, &resp); err != nil {
			continue
		}
		if resp.ReqID != reqID {
			continue
		}
		if resp.Error != nil {
			RecordAPIError(resp.Error.Code)
			return &APIError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if resp.Authorize == nil {
			return fmt.Errorf("unexpected authorize response: %s", resp.MsgType)
		}

		c.currency = resp.Authorize.Currency
		c.loginID = resp.Authorize.LoginID
		conn.SetReadDeadline(time.Time{})

		utils.Info("Broker session authorized",
			utils.AccountID(resp.Authorize.LoginID),
			utils.String("currency", resp.Authorize.Currency))
		return nil
	}
}

// dispatch маршрутизирует входящее сообщение ожидающему запросу по req_id
func (c *DerivClient) dispatch(message []byte) {
	var resp responseEnvelope
	if err := json.Unmarshal(message, &resp); err != nil {
		utils.Warnf("[deriv] unparseable message dropped: %v", err)
		return
	}

	if resp.ReqID == 0 {
		// Сообщения без req_id (балансовые пуши и т.п.) не используются
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ReqID]
	if ok {
		delete(c.pending, resp.ReqID)
	}
	c.pendingMu.Unlock()

	if !ok {
		// Ответ на запрос, который уже перестали ждать
		return
	}

	select {
	case ch <- &resp:
	default:
	}
}

// failPending отклоняет все ожидающие запросы (разрыв соединения)
func (c *DerivClient) failPending(err error) {
	c.pendingMu.Lock()
	for reqID, ch := range c.pending {
		delete(c.pending, reqID)
		close(ch)
	}
	c.pendingMu.Unlock()
}

// call отправляет запрос и ждёт сопоставленный ответ
func (c *DerivClient) call(ctx context.Context, method string, reqID int64, req interface{}) (*responseEnvelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	ch := make(chan *responseEnvelope, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = ch
	c.pendingMu.Unlock()

	started := time.Now()

	if err := c.ws.SendRaw(payload); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
		return nil, ctx.Err()

	case <-timer.C:
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: %s after %v", ErrRequestTimeout, method, c.cfg.RequestTimeout)

	case resp, ok := <-ch:
		RecordLatency(method, float64(time.Since(started).Milliseconds()))
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Error != nil {
			RecordAPIError(resp.Error.Code)
			return nil, &APIError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp, nil
	}
}

// nextReqID возвращает следующий req_id
func (c *DerivClient) nextReqID() int64 {
	return atomic.AddInt64(&c.reqID, 1)
}

// Open открывает мультипликаторный контракт: proposal, затем buy
// по proposal id с ценовым допуском
func (c *DerivClient) Open(ctx context.Context, req *OpenRequest) (*OpenResult, error) {
	contractType := contractTypeUp
	if req.Direction == "DOWN" {
		contractType = contractTypeDown
	}

	propReq := &proposalRequest{
		Proposal:     1,
		Amount:       utils.RoundMoney(req.Stake, 2),
		Basis:        "stake",
		ContractType: contractType,
		Currency:     c.currency,
		Symbol:       req.Symbol,
		Multiplier:   req.Multiplier,
		ReqID:        c.nextReqID(),
	}

	if req.TakeProfit > 0 || req.StopLoss > 0 {
		lo := &limitOrder{}
		if req.TakeProfit > 0 {
			tp := utils.RoundMoney(req.TakeProfit, 2)
			lo.TakeProfit = &tp
		}
		if req.StopLoss > 0 {
			sl := utils.RoundMoney(req.StopLoss, 2)
			lo.StopLoss = &sl
		}
		propReq.LimitOrder = lo
	}

	if req.Cancellation > 0 {
		propReq.Cancellation = fmt.Sprintf("%dm", int(req.Cancellation.Minutes()))
	}

	propResp, err := c.call(ctx, "proposal", propReq.ReqID, propReq)
	if err != nil {
		return nil, err
	}
	if propResp.Proposal == nil {
		return nil, fmt.Errorf("empty proposal response")
	}

	// Допуск на ухудшение цены между proposal и buy
	maxPrice := utils.RoundMoney(propResp.Proposal.AskPrice*c.priceTolerance, 2)

	buyReq := &buyRequest{
		Buy:   propResp.Proposal.ID,
		Price: maxPrice,
		ReqID: c.nextReqID(),
	}

	buyResp, err := c.call(ctx, "buy", buyReq.ReqID, buyReq)
	if err != nil {
		return nil, err
	}
	if buyResp.Buy == nil {
		return nil, fmt.Errorf("empty buy response")
	}

	return &OpenResult{
		ContractID: strconv.FormatInt(buyResp.Buy.ContractID, 10),
		EntryPrice: buyResp.Buy.StartSpot,
		BuyPrice:   buyResp.Buy.BuyPrice,
		AskPrice:   propResp.Proposal.AskPrice,
	}, nil
}

// parseContractID переводит строковый contract id в числовой формат API
func parseContractID(contractID string) (int64, error) {
	id, err := strconv.ParseInt(contractID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed contract id %q: %w", contractID, err)
	}
	return id, nil
}

// Status возвращает текущее состояние контракта
func (c *DerivClient) Status(ctx context.Context, contractID string) (*ContractStatus, error) {
	id, err := parseContractID(contractID)
	if err != nil {
		return nil, err
	}

	req := &statusRequest{
		ProposalOpenContract: 1,
		ContractID:           id,
		ReqID:                c.nextReqID(),
	}

	resp, err := c.call(ctx, "status", req.ReqID, req)
	if err != nil {
		return nil, err
	}
	if resp.ProposalOpenContract == nil || resp.ProposalOpenContract.ContractID == 0 {
		return nil, ErrContractMissing
	}

	st := resp.ProposalOpenContract
	return &ContractStatus{
		ContractID:  strconv.FormatInt(st.ContractID, 10),
		IsSold:      st.IsSold == 1,
		IsExpired:   st.IsExpired == 1,
		Profit:      st.Profit,
		BidPrice:    st.BidPrice,
		BuyPrice:    st.BuyPrice,
		SellPrice:   st.SellPrice,
		CurrentSpot: st.CurrentSpot,
	}, nil
}

// Sell продаёт контракт. price 0 = по рынку.
func (c *DerivClient) Sell(ctx context.Context, contractID string, price float64) (*SellResult, error) {
	id, err := parseContractID(contractID)
	if err != nil {
		return nil, err
	}

	req := &sellRequest{
		Sell:  id,
		Price: utils.RoundMoney(price, 2),
		ReqID: c.nextReqID(),
	}

	resp, err := c.call(ctx, "sell", req.ReqID, req)
	if err != nil {
		return nil, err
	}
	if resp.Sell == nil {
		return nil, fmt.Errorf("empty sell response")
	}

	return &SellResult{
		ContractID: strconv.FormatInt(resp.Sell.ContractID, 10),
		SoldFor:    resp.Sell.SoldFor,
	}, nil
}

// Cancel отменяет контракт в окне отмены
func (c *DerivClient) Cancel(ctx context.Context, contractID string) (*CancelResult, error) {
	id, err := parseContractID(contractID)
	if err != nil {
		return nil, err
	}

	req := &cancelRequest{
		Cancel: id,
		ReqID:  c.nextReqID(),
	}

	resp, err := c.call(ctx, "cancel", req.ReqID, req)
	if err != nil {
		return nil, err
	}
	if resp.Cancel == nil {
		return nil, fmt.Errorf("empty cancel response")
	}

	return &CancelResult{
		ContractID: strconv.FormatInt(resp.Cancel.ContractID, 10),
		Refund:     resp.Cancel.SoldFor,
	}, nil
}

// UpdateLimits выставляет TP/SL на открытом контракте
func (c *DerivClient) UpdateLimits(ctx context.Context, contractID string, takeProfit, stopLoss float64) error {
	id, err := parseContractID(contractID)
	if err != nil {
		return err
	}

	lo := limitOrder{}
	if takeProfit > 0 {
		tp := utils.RoundMoney(takeProfit, 2)
		lo.TakeProfit = &tp
	}
	if stopLoss > 0 {
		sl := utils.RoundMoney(stopLoss, 2)
		lo.StopLoss = &sl
	}

	req := &contractUpdateRequest{
		ContractUpdate: 1,
		ContractID:     id,
		LimitOrder:     lo,
		ReqID:          c.nextReqID(),
	}

	_, err = c.call(ctx, "update_limits", req.ReqID, req)
	return err
}
