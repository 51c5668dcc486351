package gemini

import (
	"context"
	"fmt"
	"strings"

	"salon-assistant/internal/domain"
)

const DefaultTranscriptionInstruction = "Transcribe this audio exactly as spoken in Arabic/English."

// Transcriber sends recorded audio inline with a fixed instruction and
// returns the model's text.
type Transcriber struct {
	client      *Client
	model       string
	instruction string
}

func (c *Client) NewTranscriber(model, instruction string) *Transcriber {
	if model == "" {
		model = c.model
	}
	if instruction == "" {
		instruction = DefaultTranscriptionInstruction
	}
	return &Transcriber{client: c, model: model, instruction: instruction}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio domain.EncodedAudio) (string, error) {
	if audio.Empty() {
		return "", fmt.Errorf("%w: empty audio", domain.ErrTranscriptionFailed)
	}

	mimeType := audio.MimeType
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	req := request{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &blob{MimeType: mimeType, Data: audio.Data}},
				{Text: t.instruction},
			},
		}},
	}

	result, err := t.client.generate(ctx, t.model, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}

	return strings.TrimSpace(result.Text()), nil
}
