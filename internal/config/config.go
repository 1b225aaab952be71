package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"derivbot/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Broker    BrokerConfig
	Risk      RiskConfig
	Lifecycle LifecycleConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	DashboardPasswordHash string // bcrypt hash пароля дашборда
	EncryptionKey         string // AES-256 ключ для API токенов в БД
	SessionTimeout        int
}

// BrokerConfig - настройки подключения к брокеру
type BrokerConfig struct {
	AppID          string
	APIToken       string
	AccountID      string
	WSURL          string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	PingInterval   time.Duration
}

// RiskConfig - лимиты риск-менеджмента.
// Невалидные значения фатальны на старте, в рантайме не корректируются.
type RiskConfig struct {
	// MaxConcurrentTrades проверяется гейтом, но фактический потолок
	// на аккаунт равен 1: единый trade lock и post-acquire проверка
	// слота не пропускают вторую живую позицию. Значения больше 1
	// ослабляют только гейт (например, при рестарте с позицией,
	// восстановленной в реестре).
	MaxConcurrentTrades  int
	MaxTradesPerDay      int
	MaxDailyLoss         float64
	MaxConsecutiveLosses int
	Cooldown             time.Duration // пауза между открытиями
	LossCooldown         time.Duration // авто-сброс серии убытков (0 = только вручную)
	EmergencyFraction    float64       // доля дневного лимита для аварийного закрытия
	MinRiskReward        float64
	PendingLockTimeout   time.Duration // watchdog: таймаут "лок без позиции"
	WatchdogInterval     time.Duration
}

// TrailingTier - ступень трейлинг-стопа: при достижении Trigger% профита
// активируется, допустимый откат от пика - Trail%.
type TrailingTier struct {
	TriggerPct float64
	TrailPct   float64
}

// LifecycleConfig - параметры жизненного цикла позиции
type LifecycleConfig struct {
	Symbol     string
	Stake      float64
	Multiplier int

	// Фиксированные уровни (legacy режим, когда стратегия не дала явных TP/SL)
	TakeProfitPct float64 // % от ставки
	StopLossPct   float64

	// Двухфазный режим риска
	CancellationEnabled       bool
	CancellationDuration      time.Duration
	CancellationMinWait       time.Duration // минимальное ожидание до решения об отмене
	CancellationFee           float64
	CancellationCheckInterval time.Duration

	// Мониторинг
	MonitorInterval  time.Duration
	MaxTradeDuration time.Duration
	SettlementWait   time.Duration

	// Открытие позиции
	OpenMaxRetries int
	OpenRetryPause time.Duration
	PriceTolerance float64 // множитель допустимого ухудшения цены при buy

	// Динамические правила выхода
	BreakevenTriggerPct float64
	BreakevenMaxLossPct float64
	TrailingTiers       []TrailingTier
	StagnationTimeout   time.Duration
	StagnationLossPct   float64
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	tiers, err := parseTrailingTiers(getEnv("TRAILING_TIERS", "25:10,50:15,100:20"))
	if err != nil {
		return nil, fmt.Errorf("TRAILING_TIERS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "derivbot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			DashboardPasswordHash: getEnv("DASHBOARD_PASSWORD_HASH", ""),
			EncryptionKey:         getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout:        getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Broker: BrokerConfig{
			AppID:          getEnv("DERIV_APP_ID", ""),
			APIToken:       getEnv("DERIV_API_TOKEN", ""),
			AccountID:      getEnv("DERIV_ACCOUNT_ID", "default"),
			WSURL:          getEnv("DERIV_WS_URL", "wss://ws.derivws.com/websockets/v3"),
			ConnectTimeout: getEnvAsDuration("BROKER_CONNECT_TIMEOUT", 10*time.Second),
			RequestTimeout: getEnvAsDuration("BROKER_REQUEST_TIMEOUT", 15*time.Second),
			PingInterval:   getEnvAsDuration("BROKER_PING_INTERVAL", 30*time.Second),
		},
		Risk: RiskConfig{
			MaxConcurrentTrades:  getEnvAsInt("MAX_CONCURRENT_TRADES", 1),
			MaxTradesPerDay:      getEnvAsInt("MAX_TRADES_PER_DAY", 30),
			MaxDailyLoss:         getEnvAsFloat("MAX_DAILY_LOSS", 10.0),
			MaxConsecutiveLosses: getEnvAsInt("MAX_CONSECUTIVE_LOSSES", 3),
			Cooldown:             getEnvAsDuration("TRADE_COOLDOWN", 180*time.Second),
			LossCooldown:         getEnvAsDuration("LOSS_COOLDOWN", 6*time.Hour),
			EmergencyFraction:    getEnvAsFloat("EMERGENCY_FRACTION", 0.9),
			MinRiskReward:        getEnvAsFloat("MIN_RISK_REWARD", 1.5),
			PendingLockTimeout:   getEnvAsDuration("PENDING_LOCK_TIMEOUT", 60*time.Second),
			WatchdogInterval:     getEnvAsDuration("WATCHDOG_INTERVAL", 10*time.Second),
		},
		Lifecycle: LifecycleConfig{
			Symbol:     getEnv("TRADE_SYMBOL", "R_75"),
			Stake:      getEnvAsFloat("TRADE_STAKE", 10.0),
			Multiplier: getEnvAsInt("TRADE_MULTIPLIER", 100),

			TakeProfitPct: getEnvAsFloat("TAKE_PROFIT_PCT", 25.0),
			StopLossPct:   getEnvAsFloat("STOP_LOSS_PCT", 50.0),

			CancellationEnabled:       getEnvAsBool("CANCELLATION_ENABLED", true),
			CancellationDuration:      getEnvAsDuration("CANCELLATION_DURATION", 300*time.Second),
			CancellationMinWait:       getEnvAsDuration("CANCELLATION_MIN_WAIT", 240*time.Second),
			CancellationFee:           getEnvAsFloat("CANCELLATION_FEE", 0.45),
			CancellationCheckInterval: getEnvAsDuration("CANCELLATION_CHECK_INTERVAL", 5*time.Second),

			MonitorInterval:  getEnvAsDuration("MONITOR_INTERVAL", 2*time.Second),
			MaxTradeDuration: getEnvAsDuration("MAX_TRADE_DURATION", 900*time.Second),
			SettlementWait:   getEnvAsDuration("SETTLEMENT_WAIT", 30*time.Second),

			OpenMaxRetries: getEnvAsInt("OPEN_MAX_RETRIES", 3),
			OpenRetryPause: getEnvAsDuration("OPEN_RETRY_PAUSE", 500*time.Millisecond),
			PriceTolerance: getEnvAsFloat("PRICE_TOLERANCE", 1.10),

			BreakevenTriggerPct: getEnvAsFloat("BREAKEVEN_TRIGGER_PCT", 10.0),
			BreakevenMaxLossPct: getEnvAsFloat("BREAKEVEN_MAX_LOSS_PCT", 2.0),
			TrailingTiers:       tiers,
			StagnationTimeout:   getEnvAsDuration("STAGNATION_TIMEOUT", 600*time.Second),
			StagnationLossPct:   getEnvAsFloat("STAGNATION_LOSS_PCT", 5.0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Токен брокера в секретах хранится зашифрованным; plaintext-переменная
	// имеет приоритет для локальной разработки
	if enc := getEnv("DERIV_API_TOKEN_ENCRYPTED", ""); enc != "" && cfg.Broker.APIToken == "" {
		token, err := crypto.DecryptWithKeyString(enc, cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("DERIV_API_TOKEN_ENCRYPTED: %w", err)
		}
		cfg.Broker.APIToken = token
	}

	// Невалидные риск-параметры фатальны на старте
	if err := cfg.validateRisk(); err != nil {
		return nil, err
	}

	if err := cfg.validateLifecycle(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API токенов брокера
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting broker API tokens")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Security.SessionTimeout < 60 {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 60 seconds, got %d", c.Security.SessionTimeout)
	}

	return nil
}

// validateRisk проверяет риск-лимиты
func (c *Config) validateRisk() error {
	r := c.Risk

	if r.MaxConcurrentTrades < 1 {
		return fmt.Errorf("MAX_CONCURRENT_TRADES must be at least 1, got %d", r.MaxConcurrentTrades)
	}

	if r.MaxTradesPerDay < 1 {
		return fmt.Errorf("MAX_TRADES_PER_DAY must be at least 1, got %d", r.MaxTradesPerDay)
	}

	if r.MaxDailyLoss <= 0 {
		return fmt.Errorf("MAX_DAILY_LOSS must be positive, got %v", r.MaxDailyLoss)
	}

	if r.MaxConsecutiveLosses < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_LOSSES must be at least 1, got %d", r.MaxConsecutiveLosses)
	}

	if r.Cooldown < 0 {
		return fmt.Errorf("TRADE_COOLDOWN cannot be negative, got %v", r.Cooldown)
	}

	if r.EmergencyFraction <= 0 || r.EmergencyFraction > 1 {
		return fmt.Errorf("EMERGENCY_FRACTION must be in (0, 1], got %v", r.EmergencyFraction)
	}

	if r.PendingLockTimeout <= 0 {
		return fmt.Errorf("PENDING_LOCK_TIMEOUT must be positive, got %v", r.PendingLockTimeout)
	}

	if r.WatchdogInterval <= 0 {
		return fmt.Errorf("WATCHDOG_INTERVAL must be positive, got %v", r.WatchdogInterval)
	}

	return nil
}

// validateLifecycle проверяет параметры жизненного цикла
func (c *Config) validateLifecycle() error {
	l := c.Lifecycle

	if l.Stake <= 0 {
		return fmt.Errorf("TRADE_STAKE must be positive, got %v", l.Stake)
	}

	if l.CancellationEnabled {
		if l.CancellationMinWait >= l.CancellationDuration {
			return fmt.Errorf("CANCELLATION_MIN_WAIT (%v) must be less than CANCELLATION_DURATION (%v)",
				l.CancellationMinWait, l.CancellationDuration)
		}
		if l.CancellationFee < 0 {
			return fmt.Errorf("CANCELLATION_FEE cannot be negative, got %v", l.CancellationFee)
		}
		if l.CancellationCheckInterval <= 0 {
			return fmt.Errorf("CANCELLATION_CHECK_INTERVAL must be positive, got %v", l.CancellationCheckInterval)
		}
	}

	if l.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %v", l.MonitorInterval)
	}

	if l.MaxTradeDuration <= 0 {
		return fmt.Errorf("MAX_TRADE_DURATION must be positive, got %v", l.MaxTradeDuration)
	}

	if l.OpenMaxRetries < 1 || l.OpenMaxRetries > 10 {
		return fmt.Errorf("OPEN_MAX_RETRIES must be between 1 and 10, got %d", l.OpenMaxRetries)
	}

	if l.PriceTolerance < 1.0 {
		return fmt.Errorf("PRICE_TOLERANCE must be >= 1.0, got %v", l.PriceTolerance)
	}

	// Ступени трейлинга обязаны идти по возрастанию триггера
	for i := 1; i < len(l.TrailingTiers); i++ {
		if l.TrailingTiers[i].TriggerPct <= l.TrailingTiers[i-1].TriggerPct {
			return fmt.Errorf("TRAILING_TIERS must be sorted ascending by trigger, got %v after %v",
				l.TrailingTiers[i].TriggerPct, l.TrailingTiers[i-1].TriggerPct)
		}
	}
	for _, tier := range l.TrailingTiers {
		if tier.TrailPct <= 0 || tier.TrailPct >= tier.TriggerPct {
			return fmt.Errorf("trailing tier trail %v must be positive and below trigger %v",
				tier.TrailPct, tier.TriggerPct)
		}
	}

	return nil
}

// validateRanges проверяет числовые диапазоны остальных параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Broker.RequestTimeout <= 0 {
		return fmt.Errorf("BROKER_REQUEST_TIMEOUT must be positive, got %v", c.Broker.RequestTimeout)
	}

	if c.Broker.ConnectTimeout <= 0 {
		return fmt.Errorf("BROKER_CONNECT_TIMEOUT must be positive, got %v", c.Broker.ConnectTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// parseTrailingTiers разбирает строку вида "25:10,50:15,100:20"
func parseTrailingTiers(raw string) ([]TrailingTier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var tiers []TrailingTier
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid tier %q, expected trigger:trail", part)
		}
		trigger, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid trigger in %q: %w", part, err)
		}
		trail, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid trail in %q: %w", part, err)
		}
		tiers = append(tiers, TrailingTier{TriggerPct: trigger, TrailPct: trail})
	}

	return tiers, nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
