package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"derivbot/internal/api/handlers"
	"derivbot/internal/api/middleware"
	"derivbot/internal/config"
	"derivbot/internal/service"
	"derivbot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Engine              service.EngineInterface
	TradeService        service.TradeServiceInterface
	NotificationService service.NotificationServiceInterface
	Hub                 *websocket.Hub
	AccountID           string
	Security            config.SecurityConfig
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /engine/
//	│   ├── GET /status - снимок состояния движка
//	│   ├── GET /statistics - статистика риск-леджера
//	│   ├── POST /clear-halt - операторский сброс остановки
//	│   └── POST /reset-loss-streak - сброс circuit breaker
//	├── /trades/
//	│   ├── GET / - последние сделки
//	│   ├── GET /unconfirmed - закрытия через timeout fallback
//	│   └── POST /{id}/confirm - фиксация сверенного результата
//	├── /stats/
//	│   └── GET /daily - дневная статистика
//	└── /notifications/
//	    ├── GET / - журнал событий
//	    └── DELETE / - очистка журнала
//
// /ws/stream - WebSocket для real-time обновлений дашборда
// /metrics - Prometheus метрики
// /health - health check
// /debug/pprof/* - профилирование (за DebugAuth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. DashboardAuth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// API v1 routes за аутентификацией дашборда
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.DashboardAuth(deps.Security.DashboardPasswordHash))

	if deps.Engine != nil {
		engineHandler := handlers.NewEngineHandler(deps.Engine)
		apiRouter.HandleFunc("/engine/status", engineHandler.GetStatus).Methods("GET")
		apiRouter.HandleFunc("/engine/statistics", engineHandler.GetStatistics).Methods("GET")
		apiRouter.HandleFunc("/engine/clear-halt", engineHandler.ClearHalt).Methods("POST")
		apiRouter.HandleFunc("/engine/reset-loss-streak", engineHandler.ResetLossStreak).Methods("POST")
	}

	if deps.TradeService != nil {
		tradeHandler := handlers.NewTradeHandler(deps.TradeService, deps.AccountID)
		apiRouter.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		apiRouter.HandleFunc("/trades/unconfirmed", tradeHandler.GetUnconfirmed).Methods("GET")
		apiRouter.HandleFunc("/trades/{id}/confirm", tradeHandler.ConfirmTrade).Methods("POST")
		apiRouter.HandleFunc("/stats/daily", tradeHandler.GetDailyStats).Methods("GET")
	}

	if deps.NotificationService != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.NotificationService)
		apiRouter.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		apiRouter.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Debug endpoints за Basic auth
	debugRouter := router.PathPrefix("/debug/pprof").Subrouter()
	debugRouter.Use(middleware.DebugAuth)
	debugRouter.HandleFunc("/", pprof.Index)
	debugRouter.HandleFunc("/cmdline", pprof.Cmdline)
	debugRouter.HandleFunc("/profile", pprof.Profile)
	debugRouter.HandleFunc("/symbol", pprof.Symbol)
	debugRouter.HandleFunc("/trace", pprof.Trace)
	debugRouter.PathPrefix("/").Handler(http.HandlerFunc(pprof.Index))

	return router
}
