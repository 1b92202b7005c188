package synthesis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/infrastructure/storage"
)

type scriptedCompleter struct {
	answers map[string]string // keyed by prompt
	err     error
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt, input string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if answer, ok := c.answers[prompt]; ok {
		return answer, nil
	}
	return "generated article body", nil
}

type fakeMedia struct {
	mu      sync.Mutex
	mirrors map[string]string
	uploads int
}

func (m *fakeMedia) Upload(ctx context.Context, data []byte, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	return "https://cdn.example.com/" + key, nil
}

func (m *fakeMedia) Mirror(ctx context.Context, sourceURL, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mirrors == nil {
		m.mirrors = make(map[string]string)
	}
	hosted := "https://cdn.example.com/" + key
	m.mirrors[sourceURL] = hosted
	return hosted, nil
}

func (m *fakeMedia) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://cdn.example.com/" + key + "?signed=1", nil
}

type recordingQueue struct {
	mu       sync.Mutex
	jobs     []domain.Job
	failures int // fail this many publish enqueues before accepting any
}

func (q *recordingQueue) Enqueue(ctx context.Context, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Type == domain.JobPublish && q.failures > 0 {
		q.failures--
		return &domain.Error{Kind: domain.KindTransient, Op: "enqueue", Err: fmt.Errorf("queue unavailable")}
	}
	for _, existing := range q.jobs {
		if job.DedupeKey != "" && existing.DedupeKey == job.DedupeKey {
			return nil
		}
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Dequeue(ctx context.Context) (domain.Job, error) { return domain.Job{}, nil }
func (q *recordingQueue) Release(ctx context.Context, job domain.Job) error { return nil }
func (q *recordingQueue) Bury(ctx context.Context, job domain.Job) error    { return nil }
func (q *recordingQueue) PromoteDue(ctx context.Context, now time.Time) error {
	return nil
}

func (q *recordingQueue) byType(jobType domain.JobType) []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.Job
	for _, job := range q.jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

type fixture struct {
	posts        *storage.MemoryPostStore
	topics       *storage.MemoryTopicStore
	articles     *storage.MemoryArticleStore
	queue        *recordingQueue
	completer    *scriptedCompleter
	media        *fakeMedia
	orchestrator *Orchestrator
	ws           domain.Workspace
	topic        domain.Topic
}

func synthWorkspace() domain.Workspace {
	return domain.Workspace{
		ID:                "ws-1",
		Subject:           "electric vehicles",
		PublishTimes:      []string{"09:00", "18:00"},
		Timezone:          "UTC",
		TranslationPrompt: "write an article",
		Platforms: map[domain.Platform]domain.PlatformCredentials{
			domain.PlatformTelegram: {Platform: domain.PlatformTelegram, Token: "tok", ChatID: "@chan"},
			domain.PlatformX:        {Platform: domain.PlatformX, Token: "tok"},
		},
	}
}

func newFixture(t *testing.T, ws domain.Workspace, mediaURLs ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		posts:     storage.NewMemoryPostStore(),
		topics:    storage.NewMemoryTopicStore(),
		articles:  storage.NewMemoryArticleStore(),
		queue:     &recordingQueue{},
		completer: &scriptedCompleter{},
		media:     &fakeMedia{},
		ws:        ws,
	}

	post, err := f.posts.Upsert(ctx, domain.Post{
		WorkspaceID: ws.ID,
		Account:     "alice",
		ThreadID:    "t-1",
		Content:     "battery prices falling across major markets",
		Likes:       900,
		MediaURLs:   mediaURLs,
		ObservedAt:  time.Now().Add(-time.Hour),
		Accepted:    true,
	})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}

	f.topic = domain.Topic{
		ID:          "topic-1",
		WorkspaceID: ws.ID,
		Label:       "battery prices",
		PostIDs:     []string{post.ID},
		PostCount:   1,
	}
	if err := f.topics.Save(ctx, f.topic); err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	f.orchestrator = NewOrchestrator(OrchestratorDeps{
		Posts:      f.posts,
		Topics:     f.topics,
		Articles:   f.articles,
		Workspaces: storage.NewMemoryWorkspaceStore([]domain.Workspace{ws}),
		Queue:      f.queue,
		Completer:  f.completer,
		Media:      f.media,
	})
	return f
}

func synthesizeJob(f *fixture) domain.Job {
	return domain.Job{
		Type:    domain.JobSynthesize,
		Payload: domain.SynthesizePayload{WorkspaceID: f.ws.ID, TopicID: f.topic.ID},
	}
}

func TestHandleSynthesizeProducesPendingReview(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace())

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}

	article, err := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if err != nil {
		t.Fatalf("ActiveByTopic: %v", err)
	}
	if article.Review != domain.ReviewPendingReview {
		t.Fatalf("expected PENDING_REVIEW, got %s", article.Review)
	}
	if article.Body != "generated article body" {
		t.Fatalf("unexpected body: %q", article.Body)
	}
	if article.ArchiveURL == "" {
		t.Fatal("expected body snapshot archived")
	}
	if len(f.queue.byType(domain.JobPublish)) != 0 {
		t.Fatal("no publish jobs before approval")
	}
}

func TestHandleSynthesizeAutoApproveFansOut(t *testing.T) {
	t.Parallel()

	ws := synthWorkspace()
	ws.AutoApproveDrafts = true
	ws.AutoApprovePrompt = "judge draft"

	f := newFixture(t, ws)
	f.completer.answers = map[string]string{
		"judge draft": `{"approve": true}`,
	}

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}

	article, _ := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if article.Review != domain.ReviewApproved {
		t.Fatalf("expected APPROVED, got %s", article.Review)
	}
	if article.ScheduledPublishAt.IsZero() {
		t.Fatal("expected publish slot set")
	}

	published := f.queue.byType(domain.JobPublish)
	if len(published) != 2 {
		t.Fatalf("expected publish job per platform, got %d", len(published))
	}
	for _, job := range published {
		if !job.RunAt.Equal(article.ScheduledPublishAt) {
			t.Fatalf("publish job not delayed to slot: %v vs %v", job.RunAt, article.ScheduledPublishAt)
		}
	}
}

func TestHandleSynthesizeAutoReject(t *testing.T) {
	t.Parallel()

	ws := synthWorkspace()
	ws.AutoApproveDrafts = true
	ws.AutoApprovePrompt = "judge draft"

	f := newFixture(t, ws)
	f.completer.answers = map[string]string{
		"judge draft": `{"approve": false, "reason": "too thin"}`,
	}

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}

	if _, err := f.articles.ActiveByTopic(context.Background(), f.topic.ID); err == nil {
		t.Fatal("rejected article must not stay active")
	}
	if len(f.queue.byType(domain.JobPublish)) != 0 {
		t.Fatal("rejected draft must not fan out")
	}
}

func TestHandleSynthesizeTransientFailureLeavesDraft(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace())
	f.completer.err = &domain.Error{Kind: domain.KindTransient, Op: "test", Err: fmt.Errorf("rate limited")}

	err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f))
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}

	// The draft survives so a retry or an operator can resume it.
	article, err := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if err != nil {
		t.Fatalf("expected surviving draft: %v", err)
	}
	if article.Review != domain.ReviewDraft || article.Body != "" {
		t.Fatalf("unexpected draft state: %s body=%q", article.Review, article.Body)
	}
}

func TestHandleSynthesizePolicyRejects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace())
	f.completer.err = &domain.Error{Kind: domain.KindPolicy, Op: "test", Err: fmt.Errorf("content refused")}

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("policy rejection is not a handler failure: %v", err)
	}

	if _, err := f.articles.ActiveByTopic(context.Background(), f.topic.ID); err == nil {
		t.Fatal("policy-rejected article must not stay active")
	}
}

func TestHandleSynthesizeRedeliveryAfterBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace())

	job := synthesizeJob(f)
	if err := f.orchestrator.HandleSynthesize(context.Background(), job); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// A redelivery must not synthesize a second body.
	f.completer.answers = map[string]string{"write an article": "different body"}
	if err := f.orchestrator.HandleSynthesize(context.Background(), job); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	article, _ := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if article.Body != "generated article body" {
		t.Fatalf("redelivery replaced the body: %q", article.Body)
	}
}

func TestHandleSynthesizeSelectsAndMirrorsImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace(), "https://cdn.source.com/pic.jpg")

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}

	article, _ := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if article.MediaType != domain.MediaImage {
		t.Fatalf("expected image media, got %q", article.MediaType)
	}
	if article.MediaURL == "https://cdn.source.com/pic.jpg" {
		t.Fatal("image should be re-hosted, not kept at source")
	}
}

func TestApproveVideoEnqueuesProcessing(t *testing.T) {
	t.Parallel()

	ws := synthWorkspace()
	ws.AutoApproveDrafts = true
	ws.AutoApprovePrompt = "judge draft"

	f := newFixture(t, ws, "https://cdn.source.com/clip.mp4")
	f.completer.answers = map[string]string{"judge draft": `{"approve": true}`}

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}

	article, _ := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if article.MediaType != domain.MediaVideo {
		t.Fatalf("expected video media, got %q", article.MediaType)
	}
	if article.MediaURL != "https://cdn.source.com/clip.mp4" {
		t.Fatalf("video must keep source url until processed, got %q", article.MediaURL)
	}

	jobs := f.queue.byType(domain.JobYouTubeProcess)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 youtube-process job, got %d", len(jobs))
	}
}

func TestHandleYouTubeProcessRehostsVideo(t *testing.T) {
	t.Parallel()

	ws := synthWorkspace()
	ws.AutoApproveDrafts = true
	ws.AutoApprovePrompt = "judge draft"

	f := newFixture(t, ws, "https://cdn.source.com/clip.mp4")
	f.completer.answers = map[string]string{"judge draft": `{"approve": true}`}

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}
	article, _ := f.articles.ActiveByTopic(context.Background(), f.topic.ID)

	err := f.orchestrator.HandleYouTubeProcess(context.Background(), domain.Job{
		Type:    domain.JobYouTubeProcess,
		Payload: domain.YouTubeProcessPayload{WorkspaceID: ws.ID, ArticleID: article.ID},
	})
	if err != nil {
		t.Fatalf("HandleYouTubeProcess: %v", err)
	}

	updated, _ := f.articles.Get(context.Background(), article.ID)
	if updated.MediaURL != "https://cdn.example.com/videos/"+article.ID {
		t.Fatalf("video not re-hosted: %q", updated.MediaURL)
	}
}

func TestApproveIdempotentFanout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace())

	if err := f.orchestrator.HandleSynthesize(context.Background(), synthesizeJob(f)); err != nil {
		t.Fatalf("HandleSynthesize: %v", err)
	}
	article, _ := f.articles.ActiveByTopic(context.Background(), f.topic.ID)

	for i := 0; i < 2; i++ {
		if err := f.orchestrator.Approve(context.Background(), article.ID); err != nil {
			t.Fatalf("Approve pass %d: %v", i, err)
		}
	}

	if got := len(f.queue.byType(domain.JobPublish)); got != 2 {
		t.Fatalf("expected one publish job per platform despite double approve, got %d", got)
	}
}

func TestHandleSynthesizeResumesApprovedFanout(t *testing.T) {
	t.Parallel()

	ws := synthWorkspace()
	ws.AutoApproveDrafts = true
	ws.AutoApprovePrompt = "judge draft"

	f := newFixture(t, ws)
	f.completer.answers = map[string]string{"judge draft": `{"approve": true}`}
	f.queue.failures = 1

	job := synthesizeJob(f)
	if err := f.orchestrator.HandleSynthesize(context.Background(), job); err == nil {
		t.Fatal("expected first delivery to fail on the publish enqueue")
	}

	// The article was approved before the fanout broke.
	article, err := f.articles.ActiveByTopic(context.Background(), f.topic.ID)
	if err != nil {
		t.Fatalf("ActiveByTopic: %v", err)
	}
	if article.Review != domain.ReviewApproved {
		t.Fatalf("expected APPROVED, got %s", article.Review)
	}

	// The redelivery must finish the interrupted fanout instead of
	// treating the approved state as already done.
	if err := f.orchestrator.HandleSynthesize(context.Background(), job); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if got := len(f.queue.byType(domain.JobPublish)); got != 2 {
		t.Fatalf("publish jobs after redelivery = %d, want 2", got)
	}
}

func TestApproveRejectedFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, synthWorkspace())

	article, err := f.articles.Create(context.Background(), domain.SynthesizedArticle{
		ID:          "a-rejected",
		WorkspaceID: f.ws.ID,
		TopicID:     "other-topic",
		Review:      domain.ReviewRejected,
	})
	if err != nil {
		t.Fatalf("seed rejected article: %v", err)
	}

	if err := f.orchestrator.Approve(context.Background(), article.ID); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
