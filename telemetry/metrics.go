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

// Outcome label values shared by the counters below.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeUsage    = "usage"
	OutcomeError    = "error"
)

var (
	once sync.Once

	// Counters
	CommandsTotal      *prometheus.CounterVec // labels: command, outcome
	AuthCallbacksTotal *prometheus.CounterVec // labels: outcome
	TokenRefreshes     *prometheus.CounterVec // labels: outcome

	// Histograms (seconds)
	SpotifyCallDuration *prometheus.HistogramVec // labels: op

	// Gauges
	SpotifyAuthenticated prometheus.Gauge // 1=token present, 0=none
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songbot_commands_total", Help: "Chat commands handled, by command and outcome"}, []string{"command", "outcome"})
		AuthCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songbot_auth_callbacks_total", Help: "OAuth callback requests, by outcome"}, []string{"outcome"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songbot_token_refreshes_total", Help: "Spotify token refresh attempts, by outcome"}, []string{"outcome"})
		SpotifyCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "songbot_spotify_call_duration_seconds", Help: "Spotify Web API call duration seconds", Buckets: prometheus.DefBuckets}, []string{"op"})
		SpotifyAuthenticated = promauto.NewGauge(prometheus.GaugeOpts{Name: "songbot_spotify_authenticated", Help: "Spotify session holds a token=1 none=0"})
	})
}

// IncCommand counts one handled chat command.
func IncCommand(command, outcome string) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(command, outcome).Inc()
	}
}

// IncAuthCallback counts one /callback request.
func IncAuthCallback(outcome string) {
	if AuthCallbacksTotal != nil {
		AuthCallbacksTotal.WithLabelValues(outcome).Inc()
	}
}

// IncTokenRefresh counts one refresh attempt.
func IncTokenRefresh(outcome string) {
	if TokenRefreshes != nil {
		TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}

// SetAuthenticated sets gauge to 1 if a token is held else 0.
func SetAuthenticated(ok bool) {
	if SpotifyAuthenticated == nil {
		return
	}
	if ok {
		SpotifyAuthenticated.Set(1)
	} else {
		SpotifyAuthenticated.Set(0)
	}
}

// ObserveSpotifyCall returns an observer for the given Spotify operation, or nil before Init.
func ObserveSpotifyCall(op string) prometheus.Observer {
	if SpotifyCallDuration == nil {
		return nil
	}
	return SpotifyCallDuration.WithLabelValues(op)
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
