package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrendPress/internal/domain"
)

func TestMemoryArticleStoreOneActivePerTopic(t *testing.T) {
	t.Parallel()

	store := NewMemoryArticleStore()
	ctx := context.Background()

	first, err := store.Create(ctx, domain.SynthesizedArticle{
		WorkspaceID: "ws-1",
		TopicID:     "topic-1",
		Review:      domain.ReviewDraft,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated ID")
	}

	_, err = store.Create(ctx, domain.SynthesizedArticle{
		WorkspaceID: "ws-1",
		TopicID:     "topic-1",
		Review:      domain.ReviewDraft,
	})
	if !errors.Is(err, domain.ErrArticleExists) {
		t.Fatalf("expected ErrArticleExists, got %v", err)
	}

	// A rejected article frees the topic for a fresh attempt.
	if err := store.UpdateReview(ctx, first.ID, domain.ReviewRejected, "off topic", time.Time{}); err != nil {
		t.Fatalf("UpdateReview: %v", err)
	}
	if _, err := store.Create(ctx, domain.SynthesizedArticle{
		WorkspaceID: "ws-1",
		TopicID:     "topic-1",
		Review:      domain.ReviewDraft,
	}); err != nil {
		t.Fatalf("create after rejection: %v", err)
	}
}

func TestMemoryArticleStoreRecordPublicationIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryArticleStore()
	ctx := context.Background()

	article, err := store.Create(ctx, domain.SynthesizedArticle{
		WorkspaceID: "ws-1",
		TopicID:     "topic-1",
		Review:      domain.ReviewApproved,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := domain.Publication{
		Platform:       domain.PlatformTelegram,
		PlatformPostID: "42",
		URL:            "https://t.me/channel/42",
		PublishedAt:    time.Now(),
	}
	if err := store.RecordPublication(ctx, article.ID, first); err != nil {
		t.Fatalf("RecordPublication: %v", err)
	}

	// A redelivered job must not overwrite the original record.
	dup := first
	dup.PlatformPostID = "43"
	if err := store.RecordPublication(ctx, article.ID, dup); err != nil {
		t.Fatalf("RecordPublication redelivery: %v", err)
	}

	got, err := store.Get(ctx, article.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Publications) != 1 {
		t.Fatalf("expected 1 publication, got %d", len(got.Publications))
	}
	if got.Publications[domain.PlatformTelegram].PlatformPostID != "42" {
		t.Fatalf("original publication was overwritten: %+v", got.Publications)
	}
}

func TestMemoryArticleStoreCountPublicationsSince(t *testing.T) {
	t.Parallel()

	store := NewMemoryArticleStore()
	ctx := context.Background()
	now := time.Now()

	for i, topic := range []string{"topic-1", "topic-2"} {
		article, err := store.Create(ctx, domain.SynthesizedArticle{
			WorkspaceID: "ws-1",
			TopicID:     topic,
			Review:      domain.ReviewApproved,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := store.RecordPublication(ctx, article.ID, domain.Publication{
			Platform:       domain.PlatformTelegram,
			PlatformPostID: "1",
			PublishedAt:    now.Add(time.Duration(-i*30) * time.Hour),
		}); err != nil {
			t.Fatalf("RecordPublication: %v", err)
		}
	}

	other, err := store.Create(ctx, domain.SynthesizedArticle{
		WorkspaceID: "ws-2",
		TopicID:     "topic-3",
		Review:      domain.ReviewApproved,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.RecordPublication(ctx, other.ID, domain.Publication{
		Platform:       domain.PlatformX,
		PlatformPostID: "9",
		PublishedAt:    now,
	}); err != nil {
		t.Fatalf("RecordPublication: %v", err)
	}

	count, err := store.CountPublicationsSince(ctx, "ws-1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountPublicationsSince: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 recent publication for ws-1, got %d", count)
	}
}

func TestMemoryPostStoreUpsertRefreshes(t *testing.T) {
	t.Parallel()

	store := NewMemoryPostStore()
	ctx := context.Background()

	post, err := store.Upsert(ctx, domain.Post{
		WorkspaceID: "ws-1",
		ThreadID:    "t-1",
		Content:     "first pass",
		Likes:       100,
		Accepted:    true,
		ObservedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	updated, err := store.Upsert(ctx, domain.Post{
		WorkspaceID: "ws-1",
		ThreadID:    "t-1",
		Content:     "second pass",
		Likes:       500,
	})
	if err != nil {
		t.Fatalf("Upsert redelivery: %v", err)
	}
	if updated.ID != post.ID {
		t.Fatalf("redelivery created a new row: %s vs %s", updated.ID, post.ID)
	}
	if updated.Likes != 500 || updated.Content != "second pass" {
		t.Fatalf("counters not refreshed: %+v", updated)
	}
	if !updated.Accepted {
		t.Fatal("admission verdict must survive redelivery")
	}
}

type countingWorkspaceStore struct {
	mu    sync.Mutex
	gets  int
	inner *MemoryWorkspaceStore
}

func (s *countingWorkspaceStore) Get(ctx context.Context, id string) (domain.Workspace, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.inner.Get(ctx, id)
}

func (s *countingWorkspaceStore) List(ctx context.Context) ([]domain.Workspace, error) {
	return s.inner.List(ctx)
}

func TestCachedWorkspaceStoreServesFromCache(t *testing.T) {
	t.Parallel()

	inner := &countingWorkspaceStore{
		inner: NewMemoryWorkspaceStore([]domain.Workspace{{ID: "ws-1", Name: "News"}}),
	}
	cached := NewCachedWorkspaceStore(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ws, err := cached.Get(ctx, "ws-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ws.Name != "News" {
			t.Fatalf("unexpected workspace %+v", ws)
		}
	}

	inner.mu.Lock()
	gets := inner.gets
	inner.mu.Unlock()
	if gets != 1 {
		t.Fatalf("expected a single inner read, got %d", gets)
	}

	if _, err := cached.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedWorkspaceStoreListRefreshesCache(t *testing.T) {
	t.Parallel()

	inner := &countingWorkspaceStore{
		inner: NewMemoryWorkspaceStore([]domain.Workspace{{ID: "ws-1"}, {ID: "ws-2"}}),
	}
	cached := NewCachedWorkspaceStore(inner)
	ctx := context.Background()

	workspaces, err := cached.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(workspaces) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(workspaces))
	}

	if _, err := cached.Get(ctx, "ws-2"); err != nil {
		t.Fatalf("Get after List: %v", err)
	}
	inner.mu.Lock()
	gets := inner.gets
	inner.mu.Unlock()
	if gets != 0 {
		t.Fatalf("List should have primed the cache, inner reads = %d", gets)
	}
}
