package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"salon-assistant/internal/domain"
)

var states = []domain.ActivityState{
	domain.StateIdle,
	domain.StateRecording,
	domain.StateTranscribing,
	domain.StateThinking,
}

// Metrics contains all Prometheus metrics for the assistant
type Metrics struct {
	// Conversation metrics
	Exchanges        *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	State            *prometheus.GaugeVec

	// Transcription metrics
	Transcriptions        *prometheus.CounterVec
	TranscriptionDuration *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimited         prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		Exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_exchanges_total",
			Help: "Chat exchanges by outcome",
		}, []string{"outcome"}),
		ExchangeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_exchange_duration_seconds",
			Help:    "Time from sending a message to receiving the reply",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~1 minute
		}, []string{"outcome"}),
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "assistant_activity_state",
			Help: "1 for the current activity state, 0 otherwise",
		}, []string{"state"}),

		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_transcriptions_total",
			Help: "Transcription requests by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_transcription_duration_seconds",
			Help:    "Time spent transcribing a recording",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "assistant_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}

	m.SetState(domain.StateIdle)
	return m
}

func (m *Metrics) ObserveExchange(outcome string, d time.Duration) {
	m.Exchanges.WithLabelValues(outcome).Inc()
	m.ExchangeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveTranscription(outcome string, d time.Duration) {
	m.Transcriptions.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) SetState(state domain.ActivityState) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, statusLabel(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveRateLimited() {
	m.RateLimited.Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
