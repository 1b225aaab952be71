package handlers

import (
	"net/http"

	"derivbot/internal/service"
)

// EngineHandler отвечает за операции над торговым движком
//
// Endpoints:
// - GET /api/v1/engine/status - снимок состояния движка
// - GET /api/v1/engine/statistics - статистика риск-леджера
// - POST /api/v1/engine/clear-halt - операторский сброс остановки
// - POST /api/v1/engine/reset-loss-streak - сброс circuit breaker
type EngineHandler struct {
	engine service.EngineInterface
}

// NewEngineHandler создает новый EngineHandler с внедрением зависимости
func NewEngineHandler(engine service.EngineInterface) *EngineHandler {
	return &EngineHandler{engine: engine}
}

// GetStatus возвращает текущее состояние движка
//
// GET /api/v1/engine/status
//
// Снимок включает: запущен ли движок, состояние жизненного цикла,
// лок (держится/символ/маркер), halt с причиной, счетчики сигналов
// и количество открытых позиций.
func (h *EngineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.Status())
}

// GetStatistics возвращает агрегаты риск-леджера
//
// GET /api/v1/engine/statistics
func (h *EngineHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.Statistics())
}

// ClearHalt снимает остановку леджера после ручной сверки оператором
//
// POST /api/v1/engine/clear-halt
//
// Halt ставится при integrity fault (дубликат контракта) и снимается
// только этим явным действием. Перезапуск процесса halt не снимает.
func (h *EngineHandler) ClearHalt(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearHalt()
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Halt cleared"})
}

// ResetLossStreak сбрасывает счетчик последовательных убытков
//
// POST /api/v1/engine/reset-loss-streak
func (h *EngineHandler) ResetLossStreak(w http.ResponseWriter, r *http.Request) {
	h.engine.ResetLossStreak()
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Loss streak reset"})
}
