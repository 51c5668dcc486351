//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"salon-assistant/internal/domain"
)

// PortAudioDevice captures 16-bit mono PCM from the default input device.
type PortAudioDevice struct {
	sampleRate      int
	framesPerBuffer int
	logger          *slog.Logger
}

func NewMicrophoneDevice(sampleRate int, logger *slog.Logger) *PortAudioDevice {
	return &PortAudioDevice{
		sampleRate:      sampleRate,
		framesPerBuffer: 1024,
		logger:          logger,
	}
}

func (d *PortAudioDevice) Name() string {
	return "microphone"
}

func (d *PortAudioDevice) Open(_ context.Context) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initializing portaudio: %v", domain.ErrDeviceUnavailable, err)
	}

	buffer := make([]int16, d.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.sampleRate), d.framesPerBuffer, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: opening input stream: %v", domain.ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: starting input stream: %v", domain.ErrDeviceUnavailable, err)
	}

	s := &portAudioStream{
		stream: stream,
		buffer: buffer,
		logger: d.logger,
		chunks: make(chan []byte, 64),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.read()

	d.logger.Info("microphone opened", "sample_rate", d.sampleRate)
	return s, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	buffer []int16
	logger *slog.Logger

	chunks chan []byte
	stop   chan struct{}
	exited chan struct{}

	stopOnce  sync.Once
	closeOnce sync.Once
	stopErr   error
	closeErr  error
}

func (s *portAudioStream) read() {
	defer close(s.exited)
	defer close(s.chunks)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			s.logger.Error("reading from microphone", "error", err)
			return
		}

		chunk := make([]byte, len(s.buffer)*2)
		for i, sample := range s.buffer {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(sample))
		}

		select {
		case <-s.stop:
			return
		case s.chunks <- chunk:
		}
	}
}

func (s *portAudioStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *portAudioStream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.exited
		s.stopErr = s.stream.Stop()
	})
	return s.stopErr
}

func (s *portAudioStream) Close() error {
	s.closeOnce.Do(func() {
		s.Stop()
		s.closeErr = s.stream.Close()
		portaudio.Terminate()
	})
	return s.closeErr
}
