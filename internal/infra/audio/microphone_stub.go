//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"salon-assistant/internal/domain"
)

// PortAudioDevice stub when portaudio is not available
type PortAudioDevice struct {
	logger *slog.Logger
}

func NewMicrophoneDevice(sampleRate int, logger *slog.Logger) *PortAudioDevice {
	return &PortAudioDevice{logger: logger}
}

func (d *PortAudioDevice) Name() string {
	return "microphone"
}

func (d *PortAudioDevice) Open(_ context.Context) (Stream, error) {
	return nil, fmt.Errorf("%w: microphone support not built in, rebuild with -tags portaudio", domain.ErrDeviceUnavailable)
}
