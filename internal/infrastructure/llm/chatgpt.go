package llm

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

// ChatGPTClient implements ports.Completer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Completer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatGPTClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as the system message and input as the user
// message, returning the first choice. Rate limits and server errors come
// back transient; a request rejection comes back as a policy error.
func (c *ChatGPTClient) Complete(ctx context.Context, prompt, input string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", &domain.Error{Kind: domain.KindConfig, Op: "chatgpt complete", Err: fmt.Errorf("client misconfigured")}
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt},
			{"role": "user", "content": input},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindTransient, Op: "chatgpt complete", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		cause := fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		return "", &domain.Error{Kind: classifyStatus(resp.StatusCode), Op: "chatgpt complete", Err: cause}
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.Error{Kind: domain.KindTransient, Op: "chatgpt complete", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &domain.Error{Kind: domain.KindTransient, Op: "chatgpt complete", Err: fmt.Errorf("empty choices")}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// classifyStatus maps HTTP failures onto retry policy. 429 and 5xx are
// worth retrying; any other 4xx means the request itself was refused.
func classifyStatus(status int) domain.ErrorKind {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.KindTransient
	}
	return domain.KindPolicy
}
