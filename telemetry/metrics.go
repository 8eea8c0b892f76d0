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
	UpdatesHandled      prometheus.Counter
	UnauthorizedDenied  prometheus.Counter
	BroadcastsStarted   prometheus.Counter
	BroadcastSent       prometheus.Counter
	BroadcastBlocked    prometheus.Counter
	BroadcastFailed     prometheus.Counter
	UploadsSucceeded    prometheus.Counter
	UploadsFailed       prometheus.Counter

	// Histograms (seconds)
	BroadcastDuration prometheus.Observer
	UploadDuration    prometheus.Observer

	// Gauges
	ActiveBroadcastsGauge prometheus.Gauge
	AuthorizedUsersGauge  prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		UpdatesHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_updates_handled_total", Help: "Number of transport updates processed"})
		UnauthorizedDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_unauthorized_denied_total", Help: "Number of events denied by the allow-list"})
		BroadcastsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_broadcasts_started_total", Help: "Number of broadcast fan-outs started"})
		BroadcastSent = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_broadcast_sent_total", Help: "Broadcast deliveries that succeeded"})
		BroadcastBlocked = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_broadcast_blocked_total", Help: "Broadcast deliveries rejected because the recipient blocked the bot"})
		BroadcastFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_broadcast_failed_total", Help: "Broadcast deliveries that failed for other reasons"})
		UploadsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_uploads_succeeded_total", Help: "Number of file relays that succeeded"})
		UploadsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_uploads_failed_total", Help: "Number of file relays that failed"})
		BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_broadcast_duration_seconds", Help: "Broadcast fan-out duration seconds", Buckets: []float64{1, 5, 15, 60, 300, 900, 3600}})
		UploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_upload_duration_seconds", Help: "File relay duration seconds", Buckets: prometheus.DefBuckets})
		ActiveBroadcastsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "relay_active_broadcasts", Help: "Broadcast fan-outs currently in flight"})
		AuthorizedUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "relay_authorized_users", Help: "Current size of the allow-list"})
	})
}

// SetAuthorizedUsers records the current allow-list size.
func SetAuthorizedUsers(n int) {
	if AuthorizedUsersGauge != nil {
		AuthorizedUsersGauge.Set(float64(n))
	}
}

// BroadcastInFlight adjusts the active broadcast gauge by delta (+1/-1).
func BroadcastInFlight(delta int) {
	if ActiveBroadcastsGauge != nil {
		ActiveBroadcastsGauge.Add(float64(delta))
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

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
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
