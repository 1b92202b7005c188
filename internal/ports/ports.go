package ports

import (
	"context"
	"time"

	"TrendPress/internal/domain"
)

// WorkspaceStore reads tenant configuration.
type WorkspaceStore interface {
	Get(ctx context.Context, id string) (domain.Workspace, error)
	List(ctx context.Context) ([]domain.Workspace, error)
}

// PostStore persists admitted posts, unique per (workspace, threadId).
type PostStore interface {
	// Upsert inserts the post or refreshes engagement counters on the
	// existing (workspace, threadId) row. It never duplicates.
	Upsert(ctx context.Context, post domain.Post) (domain.Post, error)
	// ListUnclustered returns accepted posts without a topic link, newest
	// first, observed after the cutoff.
	ListUnclustered(ctx context.Context, workspaceID string, cutoff time.Time) ([]domain.Post, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Post, error)
	// AssignTopic links an accepted post to its cluster.
	AssignTopic(ctx context.Context, postID, topicID string) error
}

// TopicStore persists clusters and their scores.
type TopicStore interface {
	Save(ctx context.Context, topic domain.Topic) error
	Get(ctx context.Context, id string) (domain.Topic, error)
	// ListRecent returns workspace topics updated after the cutoff, in
	// stable ID order.
	ListRecent(ctx context.Context, workspaceID string, cutoff time.Time) ([]domain.Topic, error)
}

// ArticleStore persists synthesized articles and per-platform publications.
type ArticleStore interface {
	// Create persists a new article, failing with domain.ErrArticleExists
	// when the topic already has a non-rejected article.
	Create(ctx context.Context, article domain.SynthesizedArticle) (domain.SynthesizedArticle, error)
	Get(ctx context.Context, id string) (domain.SynthesizedArticle, error)
	// ActiveByTopic returns the non-rejected article for a topic, or
	// domain.ErrNotFound.
	ActiveByTopic(ctx context.Context, topicID string) (domain.SynthesizedArticle, error)
	// UpdateReview transitions the review state and schedule.
	UpdateReview(ctx context.Context, articleID string, state domain.ReviewState, reason string, scheduledAt time.Time) error
	// SetBody stores the synthesized article text.
	SetBody(ctx context.Context, articleID, body string) error
	// SetMedia patches the selected media after asynchronous processing.
	SetMedia(ctx context.Context, articleID, mediaURL string, mediaType domain.MediaType) error
	// SetArchiveURL records the body-snapshot location.
	SetArchiveURL(ctx context.Context, articleID, url string) error
	// RecordPublication writes one platform's publish result; it is a
	// no-op returning the stored record when the platform is already set.
	RecordPublication(ctx context.Context, articleID string, pub domain.Publication) error
	// CountPublicationsSince counts per-platform publications recorded for
	// the workspace after the cutoff. Drives the daily quota.
	CountPublicationsSince(ctx context.Context, workspaceID string, cutoff time.Time) (int, error)
}

// JobStore mirrors queue jobs into durable records; the record is the
// source of truth for user-visible status.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) (string, error)
	UpdateStatus(ctx context.Context, dbJobID string, status domain.JobStatus, attempts int, lastError string) error
}

// Queue is the delivery mechanism for asynchronous jobs. Delivery is
// at-least-once; handlers must be idempotent.
type Queue interface {
	// Enqueue schedules a job, honoring RunAt delays. A job with a
	// DedupeKey already pending or active is silently dropped.
	Enqueue(ctx context.Context, job domain.Job) error
	// Dequeue blocks until a due job is available or ctx is done.
	Dequeue(ctx context.Context) (domain.Job, error)
	// Release clears the job's dedupe reservation once it reaches a
	// terminal state.
	Release(ctx context.Context, job domain.Job) error
	// Bury moves a terminally failed job to the dead-letter store.
	Bury(ctx context.Context, job domain.Job) error
	// PromoteDue moves elapsed delayed jobs into the ready set.
	PromoteDue(ctx context.Context, now time.Time) error
}

// Completer is the language-model collaborator: text in, text out.
// Failures are transient (retryable) or policy (terminal rejection).
type Completer interface {
	Complete(ctx context.Context, prompt, input string) (string, error)
}

// MediaStore re-hosts media and issues expiring links.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
	Mirror(ctx context.Context, sourceURL, key string) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PublishResult is the platform-native outcome of a successful publish.
type PublishResult struct {
	PlatformPostID string
	URL            string
}

// Publisher posts an article to one social platform.
type Publisher interface {
	Platform() domain.Platform
	Publish(ctx context.Context, article domain.SynthesizedArticle, creds domain.PlatformCredentials) (PublishResult, error)
}

// ScrapeSource pulls fresh posts for one monitored account.
type ScrapeSource interface {
	Fetch(ctx context.Context, workspace domain.Workspace, account string) ([]domain.Post, error)
}

// Scheduler controls when the poller fires.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Reporter pushes run summaries to an operator-facing channel. The default
// implementation only logs; a real sync service can be swapped in.
type Reporter interface {
	Report(ctx context.Context, status string, details map[string]any)
}
