package storage

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

const (
	workspaceCacheSize = 128
	workspaceCacheTTL  = 5 * time.Minute
)

// CachedWorkspaceStore fronts a WorkspaceStore with an expiring LRU.
// Workspace config changes rarely; a short TTL keeps edits visible within
// minutes without hitting the database on every job.
type CachedWorkspaceStore struct {
	inner ports.WorkspaceStore
	cache *expirable.LRU[string, domain.Workspace]
}

var _ ports.WorkspaceStore = (*CachedWorkspaceStore)(nil)

// NewCachedWorkspaceStore wraps inner with the default cache policy.
func NewCachedWorkspaceStore(inner ports.WorkspaceStore) *CachedWorkspaceStore {
	return &CachedWorkspaceStore{
		inner: inner,
		cache: expirable.NewLRU[string, domain.Workspace](workspaceCacheSize, nil, workspaceCacheTTL),
	}
}

// Get serves from cache when fresh, falling through to the inner store.
func (s *CachedWorkspaceStore) Get(ctx context.Context, id string) (domain.Workspace, error) {
	if ws, ok := s.cache.Get(id); ok {
		return ws, nil
	}

	ws, err := s.inner.Get(ctx, id)
	if err != nil {
		return domain.Workspace{}, err
	}
	s.cache.Add(id, ws)

	return ws, nil
}

// List always reads through so the poller sees new workspaces promptly,
// and refreshes the per-ID cache as a side effect.
func (s *CachedWorkspaceStore) List(ctx context.Context) ([]domain.Workspace, error) {
	workspaces, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, ws := range workspaces {
		s.cache.Add(ws.ID, ws)
	}
	return workspaces, nil
}
