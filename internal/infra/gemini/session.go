package gemini

import (
	"context"
	"fmt"
	"sync"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
	"salon-assistant/internal/grounding"
)

// DefaultSystemInstruction is the persona used when none is configured.
const DefaultSystemInstruction = `You are "Maswadh AI", the virtual receptionist of Maswadh Salon, a men's barber shop.
Answer questions about services, prices, booking, opening hours and directions.
Reply in the language and dialect the customer uses, warmly and briefly.
The salon is open daily from 10:30 AM to 9:00 PM and smoking is not allowed inside.
Use Google Search for current information and Google Maps for places, distances and directions.
If you do not know something, say so and suggest calling the salon.`

// Create starts a conversation. The REST API is stateless, so the session
// keeps the history itself and replays it on every request. A non-nil
// location is sent as retrieval context with each turn.
func (c *Client) Create(_ context.Context, location *domain.LocationCoords) (application.ChatSession, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key")
	}

	s := &Session{
		client: c,
		tools: []tool{
			{GoogleSearch: &struct{}{}},
			{GoogleMaps: &struct{}{}},
		},
	}
	if location != nil {
		s.toolConfig = &toolConfig{
			RetrievalConfig: &retrievalConfig{
				LatLng: latLng{Latitude: location.Latitude, Longitude: location.Longitude},
			},
		}
	}
	return s, nil
}

type Session struct {
	client     *Client
	tools      []tool
	toolConfig *toolConfig

	mu      sync.Mutex
	history []content
}

// Send posts text with the conversation so far. History only grows when the
// call succeeds.
func (s *Session) Send(ctx context.Context, text string) (*grounding.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := content{Role: "user", Parts: []part{{Text: text}}}

	contents := make([]content, 0, len(s.history)+1)
	contents = append(contents, s.history...)
	contents = append(contents, turn)

	req := request{
		Contents:   contents,
		Tools:      s.tools,
		ToolConfig: s.toolConfig,
	}
	if s.client.systemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: s.client.systemInstruction}}}
	}

	result, err := s.client.generate(ctx, s.client.model, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}

	if reply := modelTurn(&result.Response); reply != nil {
		s.history = append(s.history, turn, *reply)
	}

	return &result.Response, nil
}

func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func modelTurn(resp *grounding.Response) *content {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}

	var parts []part
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Thought || p.Text == "" {
			continue
		}
		parts = append(parts, part{Text: p.Text})
	}
	if len(parts) == 0 {
		return nil
	}
	return &content{Role: "model", Parts: parts}
}
