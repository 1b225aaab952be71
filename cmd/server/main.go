package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"derivbot/internal/api"
	"derivbot/internal/bot"
	"derivbot/internal/broker"
	"derivbot/internal/config"
	"derivbot/internal/repository"
	"derivbot/internal/service"
	"derivbot/internal/websocket"
	"derivbot/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		utils.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	utils.Infof("Connected to database: %s", cfg.Database.DSNWithoutPassword())

	// Инициализация репозиториев
	tradeRepo := repository.NewTradeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Инициализация сервисов
	tradeService := service.NewTradeService(tradeRepo)
	notificationService := service.NewNotificationService(notificationRepo)

	// WebSocket hub для real-time обновлений дашборда
	hub := websocket.NewHub()
	go hub.Run()
	notificationService.SetWebSocketHub(hub)

	// Подключение к брокеру
	client := broker.NewDerivClient(cfg.Broker, cfg.Lifecycle.PriceTolerance)
	if err := client.Connect(); err != nil {
		utils.Fatalf("Failed to connect to broker: %v", err)
	}
	defer client.Close()

	// Торговый движок аккаунта
	engine := bot.NewEngine(cfg.Broker.AccountID, cfg, client, hub, tradeRepo, notificationRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Engine:              engine,
		TradeService:        tradeService,
		NotificationService: notificationService,
		Hub:                 hub,
		AccountID:           cfg.Broker.AccountID,
		Security:            cfg.Security,
	}

	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Infof("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				utils.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				utils.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Infof("Shutting down server...")

	// Останавливаем движок, чтобы он успел освободить лок
	engine.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Fatalf("Server forced to shutdown: %v", err)
	}

	utils.Infof("Server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
