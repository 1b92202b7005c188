package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TrendPress/internal/config"
	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// Client pulls fresh posts for a monitored account from the external
// scraper service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ScrapeSource = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.ScraperConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 45 * time.Second},
	}
}

// scrapedPost is the scraper's wire shape for one observed post.
type scrapedPost struct {
	ThreadID  string    `json:"thread_id"`
	Content   string    `json:"content"`
	MediaURLs []string  `json:"media_urls"`
	Likes     int       `json:"likes"`
	Replies   int       `json:"replies"`
	Reposts   int       `json:"reposts"`
	Views     int       `json:"views"`
	SourceURL string    `json:"source_url"`
	PostedAt  time.Time `json:"posted_at"`
}

// Fetch requests the account's recent posts and maps them into domain
// posts tagged with the workspace.
func (c *Client) Fetch(ctx context.Context, workspace domain.Workspace, account string) ([]domain.Post, error) {
	if c.endpoint == "" {
		return nil, &domain.Error{Kind: domain.KindConfig, Op: "scrape fetch", Err: fmt.Errorf("endpoint not configured")}
	}

	body, err := json.Marshal(map[string]string{"account": account})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindTransient, Op: "scrape fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("scraper error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, &domain.Error{Kind: domain.KindTransient, Op: "scrape fetch", Err: cause}
		}
		return nil, fmt.Errorf("scrape fetch: %w", cause)
	}

	var parsed struct {
		Posts []scrapedPost `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	posts := make([]domain.Post, 0, len(parsed.Posts))
	for _, p := range parsed.Posts {
		posts = append(posts, domain.Post{
			WorkspaceID: workspace.ID,
			Account:     account,
			ThreadID:    p.ThreadID,
			Content:     p.Content,
			MediaURLs:   p.MediaURLs,
			Likes:       p.Likes,
			Replies:     p.Replies,
			Reposts:     p.Reposts,
			Views:       p.Views,
			SourceURL:   p.SourceURL,
			ObservedAt:  p.PostedAt,
		})
	}

	return posts, nil
}
