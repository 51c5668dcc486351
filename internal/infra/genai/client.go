// Package genai implements the chat and transcription ports on top of the
// official Google Gen AI SDK.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
	"salon-assistant/internal/grounding"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey            string
	Model             string
	SystemInstruction string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	client            *genai.Client
	model             string
	systemInstruction string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		client:            client,
		model:             cfg.Model,
		systemInstruction: cfg.SystemInstruction,
	}, nil
}

// Create opens an SDK chat with search and maps grounding enabled. The chat
// keeps its own history.
func (c *Client) Create(ctx context.Context, location *domain.LocationCoords) (application.ChatSession, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
			{GoogleMaps: &genai.GoogleMaps{}},
		},
	}
	if c.systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.systemInstruction, genai.RoleUser)
	}
	if location != nil {
		lat, lng := location.Latitude, location.Longitude
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{Latitude: &lat, Longitude: &lng},
			},
		}
	}

	chat, err := c.client.Chats.Create(ctx, c.model, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	return &Session{chat: chat}, nil
}

type Session struct {
	chat *genai.Chat
}

func (s *Session) Send(ctx context.Context, text string) (*grounding.Response, error) {
	res, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}

	resp, err := convert(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}
	return resp, nil
}

// Transcriber sends inline audio through Models.GenerateContent.
type Transcriber struct {
	client      *genai.Client
	model       string
	instruction string
}

func (c *Client) NewTranscriber(model, instruction string) *Transcriber {
	if model == "" {
		model = c.model
	}
	if instruction == "" {
		instruction = "Transcribe this audio exactly as spoken in Arabic/English."
	}
	return &Transcriber{client: c.client, model: model, instruction: instruction}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio domain.EncodedAudio) (string, error) {
	data, err := audio.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty audio", domain.ErrTranscriptionFailed)
	}

	mimeType := audio.MimeType
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(t.instruction),
		}, genai.RoleUser),
	}

	res, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}

	return strings.TrimSpace(res.Text()), nil
}

// convert re-decodes the SDK response into the backend-neutral shape. Both
// use the REST field names.
func convert(res *genai.GenerateContentResponse) (*grounding.Response, error) {
	if res == nil {
		return &grounding.Response{}, nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding sdk response: %w", err)
	}
	var out grounding.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding sdk response: %w", err)
	}
	return &out, nil
}
