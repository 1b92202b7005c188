package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

const xAPIBase = "https://api.x.com"

// X posts articles as tweets via the v2 API. Bodies longer than the tweet
// limit are truncated with an ellipsis rather than failing the publish.
type X struct {
	base   string
	client *http.Client
}

var _ ports.Publisher = (*X)(nil)

const tweetLimit = 280

// NewX builds the publisher against the public API.
func NewX() *X {
	return &X{
		base:   xAPIBase,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewXWithBase points the publisher at an alternate API host.
func NewXWithBase(base string) *X {
	x := NewX()
	x.base = strings.TrimRight(base, "/")
	return x
}

// Platform identifies this publisher.
func (x *X) Platform() domain.Platform { return domain.PlatformX }

// Publish posts the article text as a tweet and returns its reference.
func (x *X) Publish(ctx context.Context, article domain.SynthesizedArticle, creds domain.PlatformCredentials) (ports.PublishResult, error) {
	if creds.Token == "" {
		return ports.PublishResult{}, &domain.Error{Kind: domain.KindConfig, Op: "x publish", Err: fmt.Errorf("missing token")}
	}

	body, err := json.Marshal(map[string]string{"text": tweetText(article)})
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.base+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return ports.PublishResult{}, &domain.Error{Kind: domain.KindTransient, Op: "x publish", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("x error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return ports.PublishResult{}, &domain.Error{Kind: domain.KindTransient, Op: "x publish", Err: cause}
		}
		return ports.PublishResult{}, fmt.Errorf("x publish: %w", cause)
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.PublishResult{}, fmt.Errorf("decode response: %w", err)
	}

	result := ports.PublishResult{PlatformPostID: parsed.Data.ID}
	if creds.Handle != "" {
		result.URL = fmt.Sprintf("https://x.com/%s/status/%s", strings.TrimPrefix(creds.Handle, "@"), parsed.Data.ID)
	}

	return result, nil
}

// tweetText appends the media link when it fits and truncates overlong
// bodies at a rune boundary.
func tweetText(article domain.SynthesizedArticle) string {
	text := article.Body
	if article.MediaURL != "" {
		text = text + "\n" + article.MediaURL
	}

	runes := []rune(text)
	if len(runes) <= tweetLimit {
		return text
	}
	return string(runes[:tweetLimit-1]) + "…"
}
