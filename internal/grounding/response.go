// Package grounding turns raw generateContent payloads into renderable
// citation chunks.
package grounding

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Response mirrors the subset of a generateContent response that carries the
// reply text and its grounding metadata. Every nested field is optional.
type Response struct {
	Candidates []Candidate `json:"candidates,omitempty"`
}

type Candidate struct {
	Content           *Content  `json:"content,omitempty"`
	FinishReason      string    `json:"finishReason,omitempty"`
	GroundingMetadata *Metadata `json:"groundingMetadata,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type Metadata struct {
	WebSearchQueries []string `json:"webSearchQueries,omitempty"`
	GroundingChunks  []Chunk  `json:"groundingChunks,omitempty"`
}

// Chunk carries either a web or a maps citation.
type Chunk struct {
	Web  *WebChunk  `json:"web,omitempty"`
	Maps *MapsChunk `json:"maps,omitempty"`
}

type WebChunk struct {
	URI    string `json:"uri,omitempty"`
	Title  string `json:"title,omitempty"`
	Domain string `json:"domain,omitempty"`
}

type MapsChunk struct {
	URI                string             `json:"uri,omitempty"`
	Title              string             `json:"title,omitempty"`
	PlaceID            string             `json:"placeId,omitempty"`
	PlaceAnswerSources PlaceAnswerSources `json:"placeAnswerSources,omitempty"`
}

// PlaceAnswerSources accepts both the object form sent by the API and a list
// of such objects.
type PlaceAnswerSources []PlaceAnswerSource

type PlaceAnswerSource struct {
	ReviewSnippets []ReviewSnippet `json:"reviewSnippets,omitempty"`
}

type ReviewSnippet struct {
	ReviewID      string `json:"reviewId,omitempty"`
	Title         string `json:"title,omitempty"`
	Content       string `json:"content,omitempty"`
	GoogleMapsURI string `json:"googleMapsUri,omitempty"`
}

func (p *PlaceAnswerSources) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*p = nil
		return nil
	case data[0] == '[':
		var list []PlaceAnswerSource
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		var single PlaceAnswerSource
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*p = PlaceAnswerSources{single}
		return nil
	}
}

// Text concatenates the non-thought text parts of the first candidate.
func (r *Response) Text() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
