package utils

import (
	"math"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - структурированное логирование на базе zap
//
// Назначение:
// Единый логгер приложения с JSON/text форматами, уровнями и
// доменными конструкторами полей.
//
// Использование:
//  1. На старте: utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, ...})
//  2. В коде: utils.Info("Position opened", utils.ContractID(id), utils.Stake(10))
//     или через экземпляр: logger := utils.L().WithComponent("lifecycle")

// LogConfig - конфигурация логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки (stacktrace на warn)
}

// Logger оборачивает zap.Logger вместе с sugar-вариантом
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// parseLevel преобразует строковый уровень в zapcore.Level
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создает логгер по конфигурации.
// Не паникует: при недоступном файле вывода откатывается на stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			sink = zapcore.AddSync(file)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(0)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{
		Logger: child,
		sugar:  child.Sugar(),
	}
}

// WithComponent возвращает логгер с полем component
func (l *Logger) WithComponent(component string) *Logger {
	return l.With(Component(component))
}

// WithAccount возвращает логгер с полем account_id
func (l *Logger) WithAccount(accountID string) *Logger {
	return l.With(AccountID(accountID))
}

// WithSymbol возвращает логгер с полем symbol
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithContract возвращает логгер с полем contract_id
func (l *Logger) WithContract(contractID string) *Logger {
	return l.With(ContractID(contractID))
}

// Sugar возвращает sugar-логгер
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальный логгер
// ============================================================

// InitGlobalLogger инициализирует глобальный логгер
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая его
// с настройками по умолчанию при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - краткий доступ к глобальному логгеру
func L() *Logger {
	return GetGlobalLogger()
}

// Debug логирует через глобальный логгер
func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Debug(msg, fields...) }

// Info логирует через глобальный логгер
func Info(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Info(msg, fields...) }

// Warn логирует через глобальный логгер
func Warn(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Warn(msg, fields...) }

// Error логирует через глобальный логгер
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Error(msg, fields...) }

// Fatal логирует и завершает процесс
func Fatal(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Fatal(msg, fields...) }

// Debugf - printf-стиль через глобальный логгер
func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }

// Infof - printf-стиль через глобальный логгер
func Infof(format string, args ...interface{}) { GetGlobalLogger().sugar.Infof(format, args...) }

// Warnf - printf-стиль через глобальный логгер
func Warnf(format string, args ...interface{}) { GetGlobalLogger().sugar.Warnf(format, args...) }

// Errorf - printf-стиль через глобальный логгер
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// Fatalf - printf-стиль, завершает процесс
func Fatalf(format string, args ...interface{}) { GetGlobalLogger().sugar.Fatalf(format, args...) }

// ============================================================
// Доменные конструкторы полей
// ============================================================

// Symbol - поле symbol
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }

// ContractID - поле contract_id
func ContractID(id string) zap.Field { return zap.String("contract_id", id) }

// AccountID - поле account_id
func AccountID(id string) zap.Field { return zap.String("account_id", id) }

// Stake - поле stake
func Stake(stake float64) zap.Field { return zap.Float64("stake", stake) }

// Profit - поле profit
func Profit(profit float64) zap.Field { return zap.Float64("profit", profit) }

// Price - поле price
func Price(price float64) zap.Field { return zap.Float64("price", price) }

// Direction - поле direction
func Direction(direction string) zap.Field { return zap.String("direction", direction) }

// Phase - поле phase
func Phase(phase string) zap.Field { return zap.String("phase", phase) }

// State - поле state
func State(state string) zap.Field { return zap.String("state", state) }

// Reason - поле reason
func Reason(reason string) zap.Field { return zap.String("reason", reason) }

// ClosureType - поле closure_type
func ClosureType(ct string) zap.Field { return zap.String("closure_type", ct) }

// Latency - поле latency_ms
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// RequestID - поле request_id
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// Component - поле component
func Component(component string) zap.Field { return zap.String("component", component) }

// ============================================================
// Переэкспорт стандартных конструкторов zap
// ============================================================

// String - строковое поле
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int - целочисленное поле
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Int64 - поле int64
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }

// Float64 - поле float64
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }

// Bool - булево поле
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Err - поле ошибки
func Err(err error) zap.Field { return zap.Error(err) }

// Any - поле произвольного типа
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }

// fieldsToInterface преобразует zap-поля в плоский список пар
// ключ/значение для sugar-логгера
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		var value interface{}
		switch f.Type {
		case zapcore.StringType:
			value = f.String
		case zapcore.Int64Type, zapcore.Int32Type:
			value = f.Integer
		case zapcore.Float64Type:
			value = math.Float64frombits(uint64(f.Integer))
		case zapcore.BoolType:
			value = f.Integer == 1
		default:
			value = f.Interface
		}
		out = append(out, f.Key, value)
	}
	return out
}
