package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salon-assistant/internal/infra"
)

const DefaultURL = "https://api.pushover.net/1/messages.json"

// maxMessage is the Pushover limit on the message field, in runes.
const maxMessage = 1024

// Client delivers operator alerts. With no token or user key every alert is
// dropped silently.
type Client struct {
	token      string
	userKey    string
	title      string
	url        string
	httpClient *http.Client
}

func NewClient(token, userKey, title string) *Client {
	return NewClientWithURL(token, userKey, title, DefaultURL)
}

func NewClientWithURL(token, userKey, title, endpoint string) *Client {
	if title == "" {
		title = "Salon Assistant"
	}
	return &Client{
		token:      token,
		userKey:    userKey,
		title:      title,
		url:        endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Alert(ctx context.Context, message string) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	if runes := []rune(message); len(runes) > maxMessage {
		message = string(runes[:maxMessage-1]) + "…"
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("message", message)
	data.Set("title", c.title)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if err := infra.CheckResponse("pushover", resp); err != nil {
		return err
	}

	return nil
}
