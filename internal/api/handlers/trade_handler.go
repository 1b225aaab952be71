package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"derivbot/internal/service"
)

// TradeHandler отвечает за историю сделок
//
// Endpoints:
// - GET /api/v1/trades - последние сделки аккаунта
// - GET /api/v1/trades/unconfirmed - закрытия через timeout fallback
// - POST /api/v1/trades/{id}/confirm - фиксация сверенного результата
// - GET /api/v1/stats/daily - дневная статистика
type TradeHandler struct {
	tradeService service.TradeServiceInterface
	accountID    string
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимости
func NewTradeHandler(tradeService service.TradeServiceInterface, accountID string) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		accountID:    accountID,
	}
}

// GetTrades возвращает последние сделки
//
// GET /api/v1/trades
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 50, максимум 500)
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if param := r.URL.Query().Get("limit"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	trades, err := h.tradeService.GetRecentTrades(h.accountID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trades: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"total":  len(trades),
	})
}

// GetUnconfirmed возвращает сделки с непроверенным исходом.
//
// GET /api/v1/trades/unconfirmed
//
// Это закрытия, зафиксированные консервативным timeout fallback:
// в БД записан LOSS на полную ставку, реальный результат надо
// сверить с кабинетом брокера.
func (h *TradeHandler) GetUnconfirmed(w http.ResponseWriter, r *http.Request) {
	trades, err := h.tradeService.GetUnconfirmedTrades(h.accountID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get unconfirmed trades: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"total":  len(trades),
	})
}

// ConfirmTradeRequest - тело запроса подтверждения результата
type ConfirmTradeRequest struct {
	RealizedPnl float64 `json:"realized_pnl"`
}

// ConfirmTrade фиксирует сверенный оператором результат сделки
//
// POST /api/v1/trades/{id}/confirm
//
// Тело: {"realized_pnl": -4.50}
//
// HTTP коды:
// - 200 OK: результат зафиксирован
// - 400 Bad Request: невалидный id или тело запроса
// - 404 Not Found: сделка не найдена или уже подтверждена
func (h *TradeHandler) ConfirmTrade(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid trade id")
		return
	}

	var req ConfirmTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.tradeService.ConfirmTrade(id, req.RealizedPnl); err != nil {
		respondWithError(w, http.StatusNotFound, "Failed to confirm trade: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Trade confirmed"})
}

// GetDailyStats возвращает дневную статистику аккаунта
//
// GET /api/v1/stats/daily
//
// Query параметры:
// - days (int): окно в днях (по умолчанию 7, максимум 90)
func (h *TradeHandler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if param := r.URL.Query().Get("days"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			days = parsed
		}
	}

	stats, err := h.tradeService.GetDailyStats(h.accountID, days)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get daily stats: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"days":  stats,
		"total": len(stats),
	})
}
