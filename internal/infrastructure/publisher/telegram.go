package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram posts articles to a Telegram chat via bot API. The article body
// goes out as the message text; selected media becomes a photo or video
// with the body as caption.
type Telegram struct {
	base   string
	client *http.Client
}

var _ ports.Publisher = (*Telegram)(nil)

// NewTelegram builds the publisher against the public bot API.
func NewTelegram() *Telegram {
	return &Telegram{
		base:   telegramAPIBase,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewTelegramWithBase points the publisher at an alternate API host.
func NewTelegramWithBase(base string) *Telegram {
	t := NewTelegram()
	t.base = strings.TrimRight(base, "/")
	return t
}

// Platform identifies this publisher.
func (t *Telegram) Platform() domain.Platform { return domain.PlatformTelegram }

// Publish sends the article to the workspace chat and returns the message
// reference.
func (t *Telegram) Publish(ctx context.Context, article domain.SynthesizedArticle, creds domain.PlatformCredentials) (ports.PublishResult, error) {
	if creds.Token == "" || creds.ChatID == "" {
		return ports.PublishResult{}, &domain.Error{Kind: domain.KindConfig, Op: "telegram publish", Err: fmt.Errorf("missing token or chat id")}
	}

	method, form := t.composeRequest(article, creds.ChatID)
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.base, creds.Token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return ports.PublishResult{}, &domain.Error{Kind: domain.KindTransient, Op: "telegram publish", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return ports.PublishResult{}, &domain.Error{Kind: domain.KindTransient, Op: "telegram publish", Err: cause}
		}
		return ports.PublishResult{}, fmt.Errorf("telegram publish: %w", cause)
	}

	var parsed struct {
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.PublishResult{}, fmt.Errorf("decode response: %w", err)
	}

	return ports.PublishResult{
		PlatformPostID: fmt.Sprintf("%d", parsed.Result.MessageID),
		URL:            messageURL(creds.ChatID, parsed.Result.MessageID),
	}, nil
}

func (t *Telegram) composeRequest(article domain.SynthesizedArticle, chatID string) (string, url.Values) {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("parse_mode", "Markdown")

	if article.MediaURL == "" {
		form.Set("text", article.Body)
		return "sendMessage", form
	}

	form.Set("caption", article.Body)
	if article.MediaType == domain.MediaVideo {
		form.Set("video", article.MediaURL)
		return "sendVideo", form
	}
	form.Set("photo", article.MediaURL)
	return "sendPhoto", form
}

// messageURL builds a public t.me link for channel chats; private numeric
// chats have no stable public URL.
func messageURL(chatID string, messageID int64) string {
	if strings.HasPrefix(chatID, "@") {
		return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(chatID, "@"), messageID)
	}
	return ""
}
