package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"salon-assistant/internal/domain"
)

const drainTimeout = 2 * time.Second

// Capture records from a Device between Start and Stop and finalizes the
// chunks into one base64 encoded blob.
type Capture struct {
	device   Device
	encoder  Encoder
	maxBytes int
	logger   *slog.Logger

	mu      sync.Mutex
	stream  Stream
	current *recording
}

type recording struct {
	mu        sync.Mutex
	chunks    [][]byte
	size      int
	truncated bool
	done      chan struct{}
}

// NewCapture returns a capture adapter. maxBytes bounds the raw size of one
// recording; zero means unbounded.
func NewCapture(device Device, encoder Encoder, maxBytes int, logger *slog.Logger) *Capture {
	return &Capture{
		device:   device,
		encoder:  encoder,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (c *Capture) Name() string {
	return c.device.Name()
}

func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return fmt.Errorf("capture already started on %s", c.device.Name())
	}

	stream, err := c.device.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.device.Name(), err)
	}

	rec := &recording{done: make(chan struct{})}
	c.stream = stream
	c.current = rec
	go c.collect(stream, rec)

	c.logger.Info("capture started", "device", c.device.Name())
	return nil
}

func (c *Capture) collect(stream Stream, rec *recording) {
	defer close(rec.done)

	for chunk := range stream.Chunks() {
		rec.mu.Lock()
		if c.maxBytes > 0 && rec.size+len(chunk) > c.maxBytes {
			if !rec.truncated {
				c.logger.Warn("recording reached size limit, dropping further audio", "limit", c.maxBytes)
			}
			rec.truncated = true
			rec.mu.Unlock()
			continue
		}
		rec.chunks = append(rec.chunks, chunk)
		rec.size += len(chunk)
		rec.mu.Unlock()
	}
}

// Stop ends the recording. The device is released on every path, before the
// blob is encoded.
func (c *Capture) Stop(_ context.Context) (domain.EncodedAudio, error) {
	c.mu.Lock()
	stream, rec := c.stream, c.current
	c.stream, c.current = nil, nil
	c.mu.Unlock()

	if stream == nil {
		return domain.EncodedAudio{}, nil
	}

	stopErr := stream.Stop()
	if stopErr == nil {
		select {
		case <-rec.done:
		case <-time.After(drainTimeout):
			c.logger.Warn("timed out draining capture stream", "device", c.device.Name())
		}
	}

	if err := stream.Close(); err != nil {
		c.logger.Error("releasing capture device", "device", c.device.Name(), "error", err)
	}

	if stopErr != nil {
		return domain.EncodedAudio{}, fmt.Errorf("stopping %s: %w", c.device.Name(), stopErr)
	}

	rec.mu.Lock()
	raw := bytes.Join(rec.chunks, nil)
	rec.mu.Unlock()

	if len(raw) == 0 {
		return domain.EncodedAudio{}, nil
	}

	blob, err := c.encoder.Encode(raw)
	if err != nil {
		return domain.EncodedAudio{}, fmt.Errorf("encoding recording: %w", err)
	}

	c.logger.Info("capture stopped", "device", c.device.Name(), "raw_bytes", len(raw), "blob_bytes", len(blob))

	return domain.EncodedAudio{
		Data:     base64.StdEncoding.EncodeToString(blob),
		MimeType: c.encoder.MimeType(),
		Size:     len(blob),
	}, nil
}
