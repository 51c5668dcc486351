package application

import (
	"context"

	"salon-assistant/internal/domain"
)

// AudioCapture records from a microphone between Start and Stop.
type AudioCapture interface {
	Start(ctx context.Context) error
	// Stop releases the device and returns the finalized recording. Calling
	// Stop without a successful Start returns an empty recording.
	Stop(ctx context.Context) (domain.EncodedAudio, error)
	Name() string
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}
