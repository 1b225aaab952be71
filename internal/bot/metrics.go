package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о срабатывании лимитов
// - Анализ поведения риск-движка в production

// ============ Метрики сделок ============

// TradesTotal - количество закрытых сделок по итогу и типу закрытия
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of closed trades",
	},
	[]string{"symbol", "outcome", "closure_type"},
)

// PnlTotal - суммарный реализованный PnL
var PnlTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "derivbot",
		Subsystem: "trading",
		Name:      "pnl_total",
		Help:      "Total realized PnL in account currency",
	},
)

// OpenPositions - текущее число открытых позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "derivbot",
		Subsystem: "trading",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// CancellationsTotal - отмены в окне двухфазного режима
var CancellationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "trading",
		Name:      "cancellations_total",
		Help:      "Number of positions cancelled during the cancellation window",
	},
)

// ============ Метрики риска ============

// EntryDenials - отказы входного гейта по классам причин
var EntryDenials = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "risk",
		Name:      "entry_denials_total",
		Help:      "Entry gate denials by reason class",
	},
	[]string{"reason"}, // halted, concurrency, circuit_breaker, daily_trades, daily_loss, cooldown
)

// HaltsTotal - остановки леджера
var HaltsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "risk",
		Name:      "ledger_halts_total",
		Help:      "Ledger halts by cause",
	},
	[]string{"cause"}, // duplicate_contract, operator, integrity
)

// ExitRulesTriggered - срабатывания динамических правил выхода
var ExitRulesTriggered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "risk",
		Name:      "exit_rules_triggered_total",
		Help:      "Dynamic exit rule triggers by reason",
	},
	[]string{"reason"}, // emergency_daily_loss, stagnation_exit, trailing_profit_exit, breakeven_stop
)

// SettlementTimeouts - расчёты, завершившиеся консервативным fallback
var SettlementTimeouts = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "risk",
		Name:      "settlement_timeouts_total",
		Help:      "Settlements resolved via the conservative timeout fallback",
	},
)

// LockHeld - состояние торгового лока (1 = занят)
var LockHeld = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "derivbot",
		Subsystem: "risk",
		Name:      "trade_lock_held",
		Help:      "Trade lock state (1=held, 0=free)",
	},
)

// WatchdogReleases - принудительные сбросы зависшего лока
var WatchdogReleases = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "risk",
		Name:      "watchdog_releases_total",
		Help:      "Stuck locks force-released by the watchdog",
	},
)

// ============ Метрики производительности ============

// BufferOverflows - переполнения буферов каналов
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "runtime",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // notification, signal
)

// BufferBacklog - заполненность буферов каналов
var BufferBacklog = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "derivbot",
		Subsystem: "runtime",
		Name:      "buffer_backlog",
		Help:      "Current channel buffer occupancy",
	},
	[]string{"buffer"},
)

// GoroutineCount - количество горутин
var GoroutineCount = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "derivbot",
		Subsystem: "runtime",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	},
)

// ============ Вспомогательные функции ============

// RecordTrade записывает закрытую сделку
func RecordTrade(symbol, outcome, closureType string, pnl float64) {
	TradesTotal.WithLabelValues(symbol, outcome, closureType).Inc()
	PnlTotal.Add(pnl)
	if closureType == "cancelled" {
		CancellationsTotal.Inc()
	}
	if closureType == "timeout" {
		SettlementTimeouts.Inc()
	}
}

// RecordEntryDenial записывает отказ входного гейта
func RecordEntryDenial(reason string) {
	EntryDenials.WithLabelValues(reason).Inc()
}

// RecordHalt записывает остановку леджера
func RecordHalt(cause string) {
	HaltsTotal.WithLabelValues(cause).Inc()
}

// RecordExitRule записывает срабатывание правила выхода
func RecordExitRule(reason string) {
	ExitRulesTriggered.WithLabelValues(reason).Inc()
}

// RecordWatchdogRelease записывает принудительный сброс лока
func RecordWatchdogRelease() {
	WatchdogReleases.Inc()
}

// UpdateOpenPositions обновляет gauge открытых позиций
func UpdateOpenPositions(count int) {
	OpenPositions.Set(float64(count))
}

// UpdateLockHeld обновляет gauge состояния лока
func UpdateLockHeld(held bool) {
	if held {
		LockHeld.Set(1)
	} else {
		LockHeld.Set(0)
	}
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}

// RecordBufferBacklog записывает долю заполненности буфера (0..1)
func RecordBufferBacklog(bufferName string, capacity, length int) {
	if capacity <= 0 {
		return
	}
	BufferBacklog.WithLabelValues(bufferName).Set(float64(length) / float64(capacity))
}
