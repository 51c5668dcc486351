package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"salon-assistant/internal/grounding"
	"salon-assistant/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
)

// Client talks to the generateContent REST endpoint. It is safe for
// concurrent use; conversation state lives in Session.
type Client struct {
	apiKey            string
	httpClient        *http.Client
	baseURL           string
	model             string
	systemInstruction string
	retry             infra.RetryConfig
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(apiKey, model, DefaultBaseURL)
}

func NewClientWithURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:            apiKey,
		httpClient:        &http.Client{Timeout: 90 * time.Second},
		baseURL:           baseURL,
		model:             model,
		systemInstruction: DefaultSystemInstruction,
		retry:             infra.DefaultRetryConfig(),
	}
}

// WithSystemInstruction replaces the persona sent with every chat request.
func (c *Client) WithSystemInstruction(instruction string) *Client {
	if instruction != "" {
		c.systemInstruction = instruction
	}
	return c
}

func (c *Client) WithRetryConfig(cfg infra.RetryConfig) *Client {
	c.retry = cfg
	return c
}

func (c *Client) Model() string {
	return c.model
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
	GoogleMaps   *struct{} `json:"googleMaps,omitempty"`
}

type toolConfig struct {
	RetrievalConfig *retrievalConfig `json:"retrievalConfig,omitempty"`
}

type retrievalConfig struct {
	LatLng latLng `json:"latLng"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type request struct {
	Contents          []content   `json:"contents"`
	SystemInstruction *content    `json:"systemInstruction,omitempty"`
	Tools             []tool      `json:"tools,omitempty"`
	ToolConfig        *toolConfig `json:"toolConfig,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type response struct {
	grounding.Response
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) generate(ctx context.Context, model string, reqBody request) (*response, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, infra.Permanent(fmt.Errorf("marshaling request: %w", err))
	}

	var result response
	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if err := infra.CheckResponse("gemini", resp); err != nil {
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
		return nil, fmt.Errorf("gemini error %d: %s", result.Error.Code, result.Error.Message)
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReason)
	}

	return &result, nil
}
