package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
	"salon-assistant/internal/grounding"
	"salon-assistant/internal/infra"
)

const apiVersion = "2023-06-01"

// ClaudeClient is a chat backend on the Messages API. Web search citations
// are reported as web grounding chunks; there is no maps equivalent.
type ClaudeClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	system     string
	maxSearch  int
	retry      infra.RetryConfig
}

func NewClaudeClient(apiKey, model, system string) *ClaudeClient {
	return NewClaudeClientWithURL(apiKey, model, system, "https://api.anthropic.com/v1")
}

func NewClaudeClientWithURL(apiKey, model, system, baseURL string) *ClaudeClient {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &ClaudeClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    baseURL,
		model:      model,
		system:     system,
		maxSearch:  3,
		retry:      infra.DefaultRetryConfig(),
	}
}

func (c *ClaudeClient) WithRetryConfig(cfg infra.RetryConfig) *ClaudeClient {
	c.retry = cfg
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Tools     []tool    `json:"tools,omitempty"`
}

type citation struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type block struct {
	Type      string     `json:"type"`
	Text      string     `json:"text"`
	Citations []citation `json:"citations"`
}

type response struct {
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Create starts a conversation. The location is not used: the search tool
// only accepts a city-level location, not coordinates.
func (c *ClaudeClient) Create(_ context.Context, _ *domain.LocationCoords) (application.ChatSession, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: missing API key")
	}
	return &Session{client: c}, nil
}

type Session struct {
	client *ClaudeClient

	mu      sync.Mutex
	history []message
}

func (s *Session) Send(ctx context.Context, text string) (*grounding.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := message{Role: "user", Content: text}
	messages := append(append([]message{}, s.history...), turn)

	result, err := s.client.complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}

	resp := toGrounding(result)
	if reply := strings.TrimSpace(resp.Text()); reply != "" {
		s.history = append(s.history, turn, message{Role: "assistant", Content: reply})
	}
	return resp, nil
}

func (c *ClaudeClient) complete(ctx context.Context, messages []message) (*response, error) {
	reqBody := request{
		Model:     c.model,
		MaxTokens: 1024,
		System:    c.system,
		Messages:  messages,
		Tools: []tool{
			{Type: "web_search_20250305", Name: "web_search", MaxUses: c.maxSearch},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if err := infra.CheckResponse("claude", resp); err != nil {
			return err
		}

		result = response{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if result.Error != nil {
		return nil, fmt.Errorf("claude error: %s", result.Error.Message)
	}
	return &result, nil
}

// toGrounding joins the text blocks into one part and lists each cited URL
// once, in citation order.
func toGrounding(result *response) *grounding.Response {
	var text strings.Builder
	var chunks []grounding.Chunk
	seen := make(map[string]bool)

	for _, b := range result.Content {
		if b.Type != "text" {
			continue
		}
		text.WriteString(b.Text)
		for _, cit := range b.Citations {
			if cit.Type != "web_search_result_location" || cit.URL == "" || seen[cit.URL] {
				continue
			}
			seen[cit.URL] = true
			chunks = append(chunks, grounding.Chunk{Web: &grounding.WebChunk{URI: cit.URL, Title: cit.Title}})
		}
	}

	cand := grounding.Candidate{
		Content:      &grounding.Content{Role: "model", Parts: []grounding.Part{{Text: text.String()}}},
		FinishReason: result.StopReason,
	}
	if len(chunks) > 0 {
		cand.GroundingMetadata = &grounding.Metadata{GroundingChunks: chunks}
	}
	return &grounding.Response{Candidates: []grounding.Candidate{cand}}
}
