package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики брокерского слоя
// ============================================================

// RequestLatency - латентность запросов к брокеру
var RequestLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "derivbot",
		Subsystem: "broker",
		Name:      "request_latency_ms",
		Help:      "Broker request round-trip latency in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"method"}, // proposal, buy, status, sell, cancel, update_limits
)

// ConnectionStatus - статус WS соединения с брокером
var ConnectionStatus = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "derivbot",
		Subsystem: "broker",
		Name:      "connection_status",
		Help:      "Broker connection status (1=connected, 0=disconnected)",
	},
)

// Reconnects - количество переподключений WS
var Reconnects = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "broker",
		Name:      "reconnects_total",
		Help:      "Number of WebSocket reconnect attempts",
	},
)

// OpenRetries - повторы открытия после отказов "цена ушла"
var OpenRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "broker",
		Name:      "open_retries_total",
		Help:      "Open attempts retried after price-moved rejections",
	},
)

// APIErrors - ошибки API брокера по кодам
var APIErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "derivbot",
		Subsystem: "broker",
		Name:      "api_errors_total",
		Help:      "Broker API errors by code",
	},
	[]string{"code"},
)

// RecordLatency записывает латентность запроса к брокеру
func RecordLatency(method string, latencyMs float64) {
	RequestLatency.WithLabelValues(method).Observe(latencyMs)
}

// UpdateConnectionStatus обновляет статус соединения с брокером
func UpdateConnectionStatus(connected bool) {
	if connected {
		ConnectionStatus.Set(1)
	} else {
		ConnectionStatus.Set(0)
	}
}

// RecordReconnect записывает попытку переподключения
func RecordReconnect() {
	Reconnects.Inc()
}

// RecordOpenRetry записывает повтор открытия
func RecordOpenRetry() {
	OpenRetries.Inc()
}

// RecordAPIError записывает ошибку API
func RecordAPIError(code string) {
	APIErrors.WithLabelValues(code).Inc()
}
