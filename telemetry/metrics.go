// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EntriesAppended      *prometheus.CounterVec
	ConnectAttempts      prometheus.Counter
	ConnectFailures      prometheus.Counter
	TokenRefreshes       prometheus.Counter
	TokenRefreshFailures prometheus.Counter
	SendFailures         prometheus.Counter
	HistoryClears        prometheus.Counter

	// Histograms (seconds)
	ProbeDuration prometheus.Observer

	// Gauges
	SubscribersGauge prometheus.Gauge
	ConnectedGauge   prometheus.Gauge // 1=connected,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EntriesAppended = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_entries_appended_total", Help: "Number of chat entries appended to history"}, []string{"direction"})
		ConnectAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_connect_attempts_total", Help: "Number of chat session connect attempts"})
		ConnectFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_connect_failures_total", Help: "Number of chat session connect failures"})
		TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_token_refreshes_total", Help: "Number of successful token refresh exchanges"})
		TokenRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_token_refresh_failures_total", Help: "Number of failed token refresh exchanges"})
		SendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_send_failures_total", Help: "Number of outbound messages that could not be relayed"})
		HistoryClears = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_history_clears_total", Help: "Number of times chat history was cleared"})
		ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_probe_duration_seconds", Help: "Connectivity probe duration seconds", Buckets: prometheus.DefBuckets})
		SubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_subscribers", Help: "Current number of live stream subscribers"})
		ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_connected", Help: "Chat session connected=1 disconnected=0"})
	})
}

// CountEntry increments the append counter for a direction label.
func CountEntry(direction string) {
	if EntriesAppended != nil {
		EntriesAppended.WithLabelValues(direction).Inc()
	}
}

// SetSubscribers records the current subscriber count.
func SetSubscribers(n int) {
	if SubscribersGauge != nil {
		SubscribersGauge.Set(float64(n))
	}
}

// UpdateConnectedGauge sets gauge to 1 if connected else 0.
func UpdateConnectedGauge(connected bool) {
	if ConnectedGauge != nil {
		if connected {
			ConnectedGauge.Set(1)
		} else {
			ConnectedGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
