package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"salon-assistant/internal/domain"
	"salon-assistant/internal/infra"
)

const DefaultModel = "whisper-1"

type WhisperClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	// prompt biases recognition toward the expected languages.
	prompt   string
	language string
	retry    infra.RetryConfig
}

func NewWhisperClient(apiKey, model, prompt string) *WhisperClient {
	return NewWhisperClientWithURL(apiKey, model, prompt, "https://api.openai.com/v1")
}

func NewWhisperClientWithURL(apiKey, model, prompt, baseURL string) *WhisperClient {
	if model == "" {
		model = DefaultModel
	}
	return &WhisperClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		model:      model,
		prompt:     prompt,
		retry:      infra.DefaultRetryConfig(),
	}
}

// WithLanguage pins the ISO-639-1 input language. Leave it unset when
// customers mix Arabic and English.
func (c *WhisperClient) WithLanguage(language string) *WhisperClient {
	c.language = language
	return c
}

func (c *WhisperClient) WithRetryConfig(cfg infra.RetryConfig) *WhisperClient {
	c.retry = cfg
	return c
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

var extensions = map[string]string{
	"audio/wav":  "wav",
	"audio/mpeg": "mp3",
	"audio/mp4":  "m4a",
	"audio/webm": "webm",
	"audio/ogg":  "ogg",
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio domain.EncodedAudio) (string, error) {
	blob, err := audio.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: decoding audio: %w", domain.ErrTranscriptionFailed, err)
	}
	if len(blob) == 0 {
		return "", fmt.Errorf("%w: empty audio", domain.ErrTranscriptionFailed)
	}

	ext, ok := extensions[audio.MimeType]
	if !ok {
		ext = "wav"
	}

	var result transcriptionResponse

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		part, err := writer.CreateFormFile("file", "audio."+ext)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating form file: %w", err))
		}

		if _, err = part.Write(blob); err != nil {
			return infra.Permanent(fmt.Errorf("writing audio: %w", err))
		}

		fields := map[string]string{
			"model":    c.model,
			"prompt":   c.prompt,
			"language": c.language,
		}
		for name, value := range fields {
			if value == "" {
				continue
			}
			if err = writer.WriteField(name, value); err != nil {
				return infra.Permanent(fmt.Errorf("writing %s field: %w", name, err))
			}
		}

		if err = writer.Close(); err != nil {
			return infra.Permanent(fmt.Errorf("closing writer: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if err := infra.CheckResponse("whisper", resp); err != nil {
			return err
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, retryErr)
	}

	return strings.TrimSpace(result.Text), nil
}
