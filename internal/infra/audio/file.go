package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"salon-assistant/internal/domain"
)

var audioMimeTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
}

// MimeTypeForPath returns the audio mime type for the file extension, or ""
// when the extension is not a supported audio format.
func MimeTypeForPath(path string) string {
	return audioMimeTypes[strings.ToLower(filepath.Ext(path))]
}

// FileDevice plays recorded files back as if they were captured. When path is
// a directory each Open consumes the next unprocessed audio file in it.
type FileDevice struct {
	path       string
	chunkBytes int

	mu        sync.Mutex
	processed map[string]bool
}

func NewFileDevice(path string, chunkBytes int) *FileDevice {
	if chunkBytes <= 0 {
		chunkBytes = 4096
	}
	return &FileDevice{
		path:       path,
		chunkBytes: chunkBytes,
		processed:  make(map[string]bool),
	}
}

func (f *FileDevice) Name() string {
	return "file"
}

func (f *FileDevice) Open(_ context.Context) (Stream, error) {
	path, err := f.nextFile()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrDeviceUnavailable, path, err)
	}

	s := &fileStream{
		chunks: make(chan []byte),
		stop:   make(chan struct{}),
	}
	go s.play(data, f.chunkBytes)
	return s, nil
}

func (f *FileDevice) nextFile() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	if !info.IsDir() {
		return f.path, nil
	}

	entries, err := os.ReadDir(f.path)
	if err != nil {
		return "", fmt.Errorf("%w: reading dir: %v", domain.ErrDeviceUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || MimeTypeForPath(entry.Name()) == "" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(f.path, name)
		if f.processed[path] {
			continue
		}
		f.processed[path] = true
		return path, nil
	}

	return "", fmt.Errorf("%w: no unprocessed audio files in %s", domain.ErrDeviceUnavailable, f.path)
}

type fileStream struct {
	chunks   chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *fileStream) play(data []byte, chunkBytes int) {
	defer close(s.chunks)

	for len(data) > 0 {
		n := min(chunkBytes, len(data))
		chunk := make([]byte, n)
		copy(chunk, data[:n])
		data = data[n:]

		s.chunks <- chunk
	}

	<-s.stop
}

func (s *fileStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *fileStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *fileStream) Close() error {
	return s.Stop()
}
