package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"salon-assistant/internal/application"
)

const wavHeaderSize = 44

// WAVEncoder wraps little-endian PCM in a RIFF/WAVE container.
type WAVEncoder struct {
	Format application.AudioFormat
}

func NewWAVEncoder(format application.AudioFormat) WAVEncoder {
	return WAVEncoder{Format: format}
}

func (w WAVEncoder) MimeType() string {
	return "audio/wav"
}

func (w WAVEncoder) Encode(pcm []byte) ([]byte, error) {
	f := w.Format
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitDepth <= 0 || f.BitDepth%8 != 0 {
		return nil, fmt.Errorf("invalid audio format: %+v", f)
	}
	blockAlign := f.Channels * f.BitDepth / 8
	if len(pcm)%blockAlign != 0 {
		return nil, fmt.Errorf("pcm length %d is not a multiple of frame size %d", len(pcm), blockAlign)
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// WAVInfo is the header of a PCM WAV blob.
type WAVInfo struct {
	Channels   int
	SampleRate int
	BitDepth   int
	DataSize   int
}

// ReadWAVInfo parses the canonical 44 byte header written by WAVEncoder.
func ReadWAVInfo(data []byte) (WAVInfo, error) {
	if len(data) < wavHeaderSize {
		return WAVInfo{}, errors.New("wav too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("missing RIFF/WAVE header")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return WAVInfo{}, errors.New("unexpected chunk layout")
	}
	return WAVInfo{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:   int(binary.LittleEndian.Uint32(data[40:44])),
	}, nil
}
