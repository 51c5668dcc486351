package audio

import "context"

// Device is a capture primitive producing raw audio chunks.
type Device interface {
	Open(ctx context.Context) (Stream, error)
	Name() string
}

// Stream delivers chunks in arrival order. Chunks is closed after Stop once
// the last chunk has been delivered. Close releases the underlying hardware.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
	Close() error
}

// Encoder turns the concatenated chunks into one blob.
type Encoder interface {
	Encode(raw []byte) ([]byte, error)
	MimeType() string
}

// PassthroughEncoder is used for devices that already yield a complete
// container.
type PassthroughEncoder struct {
	Mime string
}

func (p PassthroughEncoder) Encode(raw []byte) ([]byte, error) {
	return raw, nil
}

func (p PassthroughEncoder) MimeType() string {
	return p.Mime
}
