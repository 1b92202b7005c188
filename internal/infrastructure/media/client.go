package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TrendPress/internal/config"
	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// Client talks to the media-hosting service that re-hosts article media
// and issues expiring links.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.MediaStore = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.MediaConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload stores raw bytes under the given key and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, data []byte, key string) (string, error) {
	payload := map[string]any{
		"key":  key,
		"data": base64.StdEncoding.EncodeToString(data),
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/upload", payload, &resp); err != nil {
		return "", err
	}

	return resp.URL, nil
}

// Mirror downloads the source URL and re-hosts it under the given key so
// published articles do not depend on scraped-origin links going stale.
func (c *Client) Mirror(ctx context.Context, sourceURL, key string) (string, error) {
	payload := map[string]any{
		"key":    key,
		"source": sourceURL,
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/mirror", payload, &resp); err != nil {
		return "", err
	}

	return resp.URL, nil
}

// SignedURL issues an expiring link for a previously uploaded key.
func (c *Client) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	payload := map[string]any{
		"key":        key,
		"ttlSeconds": int(ttl / time.Second),
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/sign", payload, &resp); err != nil {
		return "", err
	}

	return resp.URL, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	if c.endpoint == "" {
		return &domain.Error{Kind: domain.KindConfig, Op: "media " + path, Err: fmt.Errorf("endpoint not configured")}
	}
	if _, err := url.Parse(c.endpoint + path); err != nil {
		return &domain.Error{Kind: domain.KindConfig, Op: "media " + path, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.Error{Kind: domain.KindTransient, Op: "media " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("media error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return &domain.Error{Kind: domain.KindTransient, Op: "media " + path, Err: cause}
		}
		return fmt.Errorf("media %s: %w", path, cause)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
