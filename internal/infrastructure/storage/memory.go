package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// In-memory store set. Backs the pipeline when no database DSN is
// configured and gives tests hermetic collaborators with the same
// contracts as the Postgres set.

// MemoryWorkspaceStore holds seeded tenant configuration.
type MemoryWorkspaceStore struct {
	mu         sync.RWMutex
	workspaces map[string]domain.Workspace
}

var _ ports.WorkspaceStore = (*MemoryWorkspaceStore)(nil)

// NewMemoryWorkspaceStore seeds the store.
func NewMemoryWorkspaceStore(seed []domain.Workspace) *MemoryWorkspaceStore {
	workspaces := make(map[string]domain.Workspace, len(seed))
	for _, ws := range seed {
		workspaces[ws.ID] = ws
	}
	return &MemoryWorkspaceStore{workspaces: workspaces}
}

// Put inserts or replaces a workspace. Operator tooling uses this same
// surface the pipeline reads from.
func (s *MemoryWorkspaceStore) Put(ws domain.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[ws.ID] = ws
}

func (s *MemoryWorkspaceStore) Get(ctx context.Context, id string) (domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return domain.Workspace{}, domain.ErrNotFound
	}
	return ws, nil
}

func (s *MemoryWorkspaceStore) List(ctx context.Context) ([]domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryPostStore keeps posts unique per (workspace, threadId).
type MemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]domain.Post // keyed by workspace+"/"+threadID
	byID  map[string]string
}

var _ ports.PostStore = (*MemoryPostStore)(nil)

// NewMemoryPostStore builds an empty store.
func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{
		posts: make(map[string]domain.Post),
		byID:  make(map[string]string),
	}
}

func postKey(workspaceID, threadID string) string {
	return workspaceID + "/" + threadID
}

// Upsert refreshes engagement counters on the existing row or inserts a
// new one; the (workspace, threadId) pair never duplicates.
func (s *MemoryPostStore) Upsert(ctx context.Context, post domain.Post) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := postKey(post.WorkspaceID, post.ThreadID)
	if existing, ok := s.posts[key]; ok {
		existing.Likes = post.Likes
		existing.Replies = post.Replies
		existing.Reposts = post.Reposts
		existing.Views = post.Views
		existing.Content = post.Content
		existing.MediaURLs = post.MediaURLs
		s.posts[key] = existing
		return existing, nil
	}

	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	s.posts[key] = post
	s.byID[post.ID] = key
	return post, nil
}

func (s *MemoryPostStore) ListUnclustered(ctx context.Context, workspaceID string, cutoff time.Time) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Post
	for _, post := range s.posts {
		if post.WorkspaceID != workspaceID || !post.Accepted || post.TopicID != "" {
			continue
		}
		if !cutoff.IsZero() && post.ObservedAt.Before(cutoff) {
			continue
		}
		out = append(out, post)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	return out, nil
}

func (s *MemoryPostStore) ListByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		if key, ok := s.byID[id]; ok {
			out = append(out, s.posts[key])
		}
	}
	return out, nil
}

func (s *MemoryPostStore) AssignTopic(ctx context.Context, postID, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[postID]
	if !ok {
		return domain.ErrNotFound
	}
	post := s.posts[key]
	post.TopicID = topicID
	s.posts[key] = post
	return nil
}

// MemoryTopicStore keeps clusters.
type MemoryTopicStore struct {
	mu     sync.RWMutex
	topics map[string]domain.Topic
}

var _ ports.TopicStore = (*MemoryTopicStore)(nil)

// NewMemoryTopicStore builds an empty store.
func NewMemoryTopicStore() *MemoryTopicStore {
	return &MemoryTopicStore{topics: make(map[string]domain.Topic)}
}

func (s *MemoryTopicStore) Save(ctx context.Context, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic.ID] = topic
	return nil
}

func (s *MemoryTopicStore) Get(ctx context.Context, id string) (domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topic, ok := s.topics[id]
	if !ok {
		return domain.Topic{}, domain.ErrNotFound
	}
	return topic, nil
}

func (s *MemoryTopicStore) ListRecent(ctx context.Context, workspaceID string, cutoff time.Time) ([]domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Topic
	for _, topic := range s.topics {
		if topic.WorkspaceID != workspaceID {
			continue
		}
		if !cutoff.IsZero() && topic.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, topic)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryArticleStore enforces one active article per topic.
type MemoryArticleStore struct {
	mu       sync.RWMutex
	articles map[string]domain.SynthesizedArticle
}

var _ ports.ArticleStore = (*MemoryArticleStore)(nil)

// NewMemoryArticleStore builds an empty store.
func NewMemoryArticleStore() *MemoryArticleStore {
	return &MemoryArticleStore{articles: make(map[string]domain.SynthesizedArticle)}
}

func (s *MemoryArticleStore) Create(ctx context.Context, article domain.SynthesizedArticle) (domain.SynthesizedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.articles {
		if existing.TopicID == article.TopicID && existing.Active() {
			return domain.SynthesizedArticle{}, domain.ErrArticleExists
		}
	}

	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.Publications == nil {
		article.Publications = make(map[domain.Platform]domain.Publication)
	}
	s.articles[article.ID] = article
	return article, nil
}

func (s *MemoryArticleStore) Get(ctx context.Context, id string) (domain.SynthesizedArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[id]
	if !ok {
		return domain.SynthesizedArticle{}, domain.ErrNotFound
	}
	return cloneArticle(article), nil
}

func (s *MemoryArticleStore) ActiveByTopic(ctx context.Context, topicID string) (domain.SynthesizedArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, article := range s.articles {
		if article.TopicID == topicID && article.Active() {
			return cloneArticle(article), nil
		}
	}
	return domain.SynthesizedArticle{}, domain.ErrNotFound
}

func (s *MemoryArticleStore) UpdateReview(ctx context.Context, articleID string, state domain.ReviewState, reason string, scheduledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[articleID]
	if !ok {
		return domain.ErrNotFound
	}
	article.Review = state
	article.RejectReason = reason
	if !scheduledAt.IsZero() {
		article.ScheduledPublishAt = scheduledAt
	}
	article.UpdatedAt = time.Now()
	s.articles[articleID] = article
	return nil
}

func (s *MemoryArticleStore) SetBody(ctx context.Context, articleID, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[articleID]
	if !ok {
		return domain.ErrNotFound
	}
	article.Body = body
	article.UpdatedAt = time.Now()
	s.articles[articleID] = article
	return nil
}

func (s *MemoryArticleStore) SetMedia(ctx context.Context, articleID, mediaURL string, mediaType domain.MediaType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[articleID]
	if !ok {
		return domain.ErrNotFound
	}
	article.MediaURL = mediaURL
	article.MediaType = mediaType
	article.UpdatedAt = time.Now()
	s.articles[articleID] = article
	return nil
}

func (s *MemoryArticleStore) SetArchiveURL(ctx context.Context, articleID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[articleID]
	if !ok {
		return domain.ErrNotFound
	}
	article.ArchiveURL = url
	article.UpdatedAt = time.Now()
	s.articles[articleID] = article
	return nil
}

func (s *MemoryArticleStore) RecordPublication(ctx context.Context, articleID string, pub domain.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[articleID]
	if !ok {
		return domain.ErrNotFound
	}
	if article.Publications == nil {
		article.Publications = make(map[domain.Platform]domain.Publication)
	}
	if _, done := article.Publications[pub.Platform]; done {
		return nil
	}
	article.Publications[pub.Platform] = pub
	article.UpdatedAt = time.Now()
	s.articles[articleID] = article
	return nil
}

func (s *MemoryArticleStore) CountPublicationsSince(ctx context.Context, workspaceID string, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, article := range s.articles {
		if article.WorkspaceID != workspaceID {
			continue
		}
		for _, pub := range article.Publications {
			if !pub.PublishedAt.Before(cutoff) {
				count++
			}
		}
	}
	return count, nil
}

func cloneArticle(article domain.SynthesizedArticle) domain.SynthesizedArticle {
	pubs := make(map[domain.Platform]domain.Publication, len(article.Publications))
	for platform, pub := range article.Publications {
		pubs[platform] = pub
	}
	article.Publications = pubs
	return article
}

// MemoryJobStore mirrors queue jobs into durable records.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

var _ ports.JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore builds an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.Job)}
}

func (s *MemoryJobStore) Create(ctx context.Context, job domain.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	job.DBJobID = id
	s.jobs[id] = job
	return id, nil
}

func (s *MemoryJobStore) UpdateStatus(ctx context.Context, dbJobID string, status domain.JobStatus, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[dbJobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	job.Attempts = attempts
	job.LastError = lastError
	s.jobs[dbJobID] = job
	return nil
}

// Find returns the durable record for inspection.
func (s *MemoryJobStore) Find(dbJobID string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[dbJobID]
	return job, ok
}
