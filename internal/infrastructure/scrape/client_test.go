package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TrendPress/internal/config"
	"TrendPress/internal/domain"
)

func TestFetchMapsPosts(t *testing.T) {
	t.Parallel()

	postedAt := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["account"] != "alice" {
			t.Errorf("unexpected account %q", req["account"])
		}
		_, _ = w.Write([]byte(`{"posts":[{
			"thread_id":"t-1",
			"content":"battery prices falling",
			"media_urls":["https://cdn.example.com/pic.jpg"],
			"likes":450,"replies":12,"reposts":30,"views":9000,
			"source_url":"https://social.example.com/alice/t-1",
			"posted_at":"2026-03-02T08:00:00Z"
		}]}`))
	}))
	defer server.Close()

	client := NewClient(config.ScraperConfig{Endpoint: server.URL, APIKey: "key"})
	ws := domain.Workspace{ID: "ws-1"}

	posts, err := client.Fetch(context.Background(), ws, "alice")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}

	post := posts[0]
	if post.WorkspaceID != "ws-1" || post.Account != "alice" || post.ThreadID != "t-1" {
		t.Fatalf("identity fields lost: %+v", post)
	}
	if post.Likes != 450 || post.Views != 9000 {
		t.Fatalf("engagement lost: %+v", post)
	}
	if !post.ObservedAt.Equal(postedAt) {
		t.Fatalf("ObservedAt = %v, want %v", post.ObservedAt, postedAt)
	}
	if post.Accepted {
		t.Fatal("fetched posts are not admitted yet")
	}
}

func TestFetchServerErrorTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(config.ScraperConfig{Endpoint: server.URL})
	_, err := client.Fetch(context.Background(), domain.Workspace{ID: "ws-1"}, "alice")
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestFetchNoEndpoint(t *testing.T) {
	t.Parallel()

	client := NewClient(config.ScraperConfig{})
	_, err := client.Fetch(context.Background(), domain.Workspace{ID: "ws-1"}, "alice")
	if !domain.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}
