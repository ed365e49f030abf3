package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // second call must not re-register

	if CommandsTotal == nil || AuthCallbacksTotal == nil || TokenRefreshes == nil {
		t.Fatal("counters not initialized")
	}
	if SpotifyCallDuration == nil {
		t.Error("SpotifyCallDuration histogram not initialized")
	}
	if SpotifyAuthenticated == nil {
		t.Error("SpotifyAuthenticated gauge not initialized")
	}
}

func TestIncCommand(t *testing.T) {
	Init()
	c := CommandsTotal.WithLabelValues("song", OutcomeNotFound)
	before := testutil.ToFloat64(c)

	IncCommand("song", OutcomeNotFound)
	IncCommand("song", OutcomeNotFound)

	if got := testutil.ToFloat64(c); got != before+2 {
		t.Errorf("songbot_commands_total{song,not_found} = %v, want %v", got, before+2)
	}
}

func TestSetAuthenticated(t *testing.T) {
	Init()
	SetAuthenticated(true)
	if got := testutil.ToFloat64(SpotifyAuthenticated); got != 1 {
		t.Errorf("gauge = %v, want 1", got)
	}
	SetAuthenticated(false)
	if got := testutil.ToFloat64(SpotifyAuthenticated); got != 0 {
		t.Errorf("gauge = %v, want 0", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || metric.Histogram.GetSampleCount() != 1 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestTimeFuncNilObserver(t *testing.T) {
	called := false
	TimeFunc(nil, func() { called = true })
	if !called {
		t.Error("TimeFunc did not execute provided function")
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty) = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
