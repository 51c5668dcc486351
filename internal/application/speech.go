package application

import (
	"context"
	"fmt"

	"salon-assistant/internal/domain"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.EncodedAudio) (string, error)
}

// NoopTranscriber stands in when no speech-to-text backend is configured.
type NoopTranscriber struct{}

func (n *NoopTranscriber) Transcribe(_ context.Context, _ domain.EncodedAudio) (string, error) {
	return "", fmt.Errorf("%w: speech-to-text not configured", domain.ErrTranscriptionFailed)
}
