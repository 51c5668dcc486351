package grounding

import (
	"strings"

	"salon-assistant/internal/domain"
)

// Extract returns the citations attached to the first candidate of resp, in
// payload order. Missing fields at any level yield an empty result.
func Extract(resp *Response) []domain.GroundingChunk {
	if resp == nil || len(resp.Candidates) == 0 {
		return []domain.GroundingChunk{}
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return []domain.GroundingChunk{}
	}

	chunks := make([]domain.GroundingChunk, 0, len(meta.GroundingChunks))
	for _, raw := range meta.GroundingChunks {
		switch {
		case raw.Web != nil:
			chunks = append(chunks, domain.WebSource{
				URI:   raw.Web.URI,
				Title: raw.Web.Title,
			})
		case raw.Maps != nil:
			chunks = append(chunks, domain.MapSource{
				URI:            raw.Maps.URI,
				Title:          raw.Maps.Title,
				ReviewSnippets: reviewSnippets(raw.Maps.PlaceAnswerSources),
			})
		}
	}
	return chunks
}

func reviewSnippets(sources PlaceAnswerSources) []string {
	var out []string
	for _, src := range sources {
		for _, s := range src.ReviewSnippets {
			text := s.Content
			if text == "" {
				text = s.Title
			}
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// ReplyFrom builds the assistant reply for resp, substituting fallback when the
// backend produced no text.
func ReplyFrom(resp *Response, fallback string) domain.Reply {
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		text = fallback
	}
	return domain.Reply{
		Text:            text,
		GroundingChunks: Extract(resp),
	}
}
