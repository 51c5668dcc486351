package application

import (
	"time"

	"salon-assistant/internal/domain"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeEmpty  = "empty"
)

type Metrics interface {
	ObserveExchange(outcome string, took time.Duration)
	ObserveTranscription(outcome string, took time.Duration)
	SetState(state domain.ActivityState)
}

type NoopMetrics struct{}

func (NoopMetrics) ObserveExchange(string, time.Duration)      {}
func (NoopMetrics) ObserveTranscription(string, time.Duration) {}
func (NoopMetrics) SetState(domain.ActivityState)              {}
