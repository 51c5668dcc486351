package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
	"salon-assistant/internal/infra/metrics"
)

var _ application.Metrics = (*metrics.Metrics)(nil)

func TestMetrics_ObserveExchange(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	m.ObserveExchange(application.OutcomeOK, 2*time.Second)
	m.ObserveExchange(application.OutcomeOK, time.Second)
	m.ObserveExchange(application.OutcomeFailed, time.Second)

	if got := testutil.ToFloat64(m.Exchanges.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok exchanges: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Exchanges.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed exchanges: got %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ExchangeDuration); got != 2 {
		t.Errorf("duration series: got %d, want 2", got)
	}
}

func TestMetrics_ObserveTranscription(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	m.ObserveTranscription(application.OutcomeEmpty, 500*time.Millisecond)

	if got := testutil.ToFloat64(m.Transcriptions.WithLabelValues("empty")); got != 1 {
		t.Errorf("empty transcriptions: got %v, want 1", got)
	}
}

func TestMetrics_SetState(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	if got := testutil.ToFloat64(m.State.WithLabelValues("idle")); got != 1 {
		t.Errorf("initial idle gauge: got %v, want 1", got)
	}

	m.SetState(domain.StateThinking)

	tests := map[string]float64{"idle": 0, "recording": 0, "transcribing": 0, "thinking": 1}
	for state, want := range tests {
		if got := testutil.ToFloat64(m.State.WithLabelValues(state)); got != want {
			t.Errorf("%s gauge: got %v, want %v", state, got, want)
		}
	}
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.ObserveHTTP("POST /messages", 202, 10*time.Millisecond)
	m.ObserveHTTP("POST /messages", 409, 10*time.Millisecond)
	m.ObserveHTTP("POST /messages", 429, 10*time.Millisecond)
	m.ObserveRateLimited()

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST /messages", "4xx")); got != 2 {
		t.Errorf("4xx requests: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("rate limited: got %v, want 1", got)
	}

	if _, err := reg.Gather(); err != nil {
		t.Errorf("Gather: %v", err)
	}
}
