package broker

// messages.go - wire-типы WebSocket API брокера Deriv
//
// Все запросы несут req_id для сопоставления с ответом. Брокер
// возвращает msg_type и echo_req, ошибки приходят в поле error
// того же конверта.

// authorizeRequest - авторизация по API токену
type authorizeRequest struct {
	Authorize string `json:"authorize"`
	ReqID     int64  `json:"req_id"`
}

// limitOrder - денежные уровни TP/SL контракта
type limitOrder struct {
	TakeProfit *float64 `json:"take_profit,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
}

// proposalRequest - запрос котировки мультипликаторного контракта.
// ContractType: MULTUP / MULTDOWN.
type proposalRequest struct {
	Proposal     int         `json:"proposal"`
	Amount       float64     `json:"amount"`
	Basis        string      `json:"basis"` // stake
	ContractType string      `json:"contract_type"`
	Currency     string      `json:"currency"`
	Symbol       string      `json:"symbol"`
	Multiplier   int         `json:"multiplier"`
	LimitOrder   *limitOrder `json:"limit_order,omitempty"`
	Cancellation string      `json:"cancellation,omitempty"` // "5m", "10m"
	ReqID        int64       `json:"req_id"`
}

// buyRequest - покупка по proposal id с ценовым допуском
type buyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
	ReqID int64   `json:"req_id"`
}

// statusRequest - запрос состояния открытого контракта
type statusRequest struct {
	ProposalOpenContract int   `json:"proposal_open_contract"`
	ContractID           int64 `json:"contract_id"`
	ReqID                int64 `json:"req_id"`
}

// sellRequest - продажа контракта. Price 0 = продать по рынку.
type sellRequest struct {
	Sell  int64   `json:"sell"`
	Price float64 `json:"price"`
	ReqID int64   `json:"req_id"`
}

// cancelRequest - отмена контракта в окне отмены
type cancelRequest struct {
	Cancel int64 `json:"cancel"`
	ReqID  int64 `json:"req_id"`
}

// contractUpdateRequest - изменение TP/SL открытого контракта
type contractUpdateRequest struct {
	ContractUpdate int        `json:"contract_update"`
	ContractID     int64      `json:"contract_id"`
	LimitOrder     limitOrder `json:"limit_order"`
	ReqID          int64      `json:"req_id"`
}

// ============================================================
// Ответы
// ============================================================

// apiErrorBody - тело ошибки в конверте ответа
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// responseEnvelope - общий конверт ответа: msg_type определяет,
// какое из полей заполнено
type responseEnvelope struct {
	MsgType string        `json:"msg_type"`
	ReqID   int64         `json:"req_id"`
	Error   *apiErrorBody `json:"error,omitempty"`

	Authorize            *authorizeResponse `json:"authorize,omitempty"`
	Proposal             *proposalResponse  `json:"proposal,omitempty"`
	Buy                  *buyResponse       `json:"buy,omitempty"`
	ProposalOpenContract *contractResponse  `json:"proposal_open_contract,omitempty"`
	Sell                 *sellResponse      `json:"sell,omitempty"`
	Cancel               *cancelResponse    `json:"cancel,omitempty"`
}

type authorizeResponse struct {
	LoginID  string  `json:"loginid"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

type proposalResponse struct {
	ID       string  `json:"id"`
	AskPrice float64 `json:"ask_price"`
	Spot     float64 `json:"spot"`
	Payout   float64 `json:"payout"`
}

type buyResponse struct {
	ContractID   int64   `json:"contract_id"`
	BuyPrice     float64 `json:"buy_price"`
	PurchaseTime int64   `json:"purchase_time"`
	StartSpot    float64 `json:"start_spot"`
}

type contractResponse struct {
	ContractID  int64   `json:"contract_id"`
	IsSold      int     `json:"is_sold"`
	IsExpired   int     `json:"is_expired"`
	Profit      float64 `json:"profit"`
	BidPrice    float64 `json:"bid_price"`
	BuyPrice    float64 `json:"buy_price"`
	SellPrice   float64 `json:"sell_price"`
	CurrentSpot float64 `json:"current_spot"`
	EntrySpot   float64 `json:"entry_spot"`
}

type sellResponse struct {
	ContractID int64   `json:"contract_id"`
	SoldFor    float64 `json:"sold_for"`
}

type cancelResponse struct {
	ContractID int64   `json:"contract_id"`
	SoldFor    float64 `json:"sold_for"` // возврат ставки минус cancellation fee
}
