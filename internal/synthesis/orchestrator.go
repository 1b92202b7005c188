package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
	"TrendPress/internal/publish"
)

// OrchestratorDeps wires the synthesis stage's collaborators.
type OrchestratorDeps struct {
	Posts      ports.PostStore
	Topics     ports.TopicStore
	Articles   ports.ArticleStore
	Workspaces ports.WorkspaceStore
	Queue      ports.Queue
	Completer  ports.Completer
	Media      ports.MediaStore
	Logger     *slog.Logger
}

// Orchestrator turns hot topics into draft articles, runs the optional
// auto-approve judgment, and fans out publish jobs on approval.
type Orchestrator struct {
	posts      ports.PostStore
	topics     ports.TopicStore
	articles   ports.ArticleStore
	workspaces ports.WorkspaceStore
	queue      ports.Queue
	completer  ports.Completer
	media      ports.MediaStore
	logger     *slog.Logger
}

// NewOrchestrator constructs the synthesis stage.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		posts:      deps.Posts,
		topics:     deps.Topics,
		articles:   deps.Articles,
		workspaces: deps.Workspaces,
		queue:      deps.Queue,
		completer:  deps.Completer,
		media:      deps.Media,
		logger:     deps.Logger,
	}
}

// HandleSynthesize consumes a synthesize job. The handler is resumable:
// every step re-reads durable state, so a retried delivery picks up where
// the previous attempt stopped instead of duplicating work.
func (o *Orchestrator) HandleSynthesize(ctx context.Context, job domain.Job) error {
	payload, ok := job.Payload.(domain.SynthesizePayload)
	if !ok {
		return &domain.Error{Kind: domain.KindValidation, Op: "synthesize job", Err: fmt.Errorf("unexpected payload %T", job.Payload)}
	}

	ws, err := o.workspaces.Get(ctx, payload.WorkspaceID)
	if err != nil {
		return fmt.Errorf("load workspace %s: %w", payload.WorkspaceID, err)
	}

	topic, err := o.topics.Get(ctx, payload.TopicID)
	if err != nil {
		return fmt.Errorf("load topic %s: %w", payload.TopicID, err)
	}

	members, err := o.posts.ListByIDs(ctx, topic.PostIDs)
	if err != nil {
		return fmt.Errorf("load topic members: %w", err)
	}
	if len(members) == 0 {
		return &domain.Error{Kind: domain.KindValidation, Op: "synthesize job", Err: fmt.Errorf("topic %s has no members", topic.ID)}
	}

	article, err := o.articles.ActiveByTopic(ctx, topic.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		article, err = o.createDraft(ctx, ws, topic, members)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load active article: %w", err)
	}

	if article.Review == domain.ReviewRejected {
		return nil
	}

	// Approved by a previous delivery that may have died before the
	// fanout completed. Approve keeps the stored slot and the queue
	// dedupes per platform, so re-running it only fills the gaps.
	if article.Review == domain.ReviewApproved {
		return o.Approve(ctx, article.ID)
	}

	if article.Body == "" {
		body, err := o.synthesizeBody(ctx, ws, members)
		if err != nil {
			if domain.IsPolicy(err) {
				// Content rejection is a state transition, not a failure.
				o.info("synthesis rejected by content policy", "article", article.ID)
				return o.articles.UpdateReview(ctx, article.ID, domain.ReviewRejected, "content policy rejection", time.Time{})
			}
			return err
		}

		if err := o.articles.SetBody(ctx, article.ID, body); err != nil {
			return fmt.Errorf("store article body: %w", err)
		}
		article.Body = body

		if err := o.articles.UpdateReview(ctx, article.ID, domain.ReviewPendingReview, "", time.Time{}); err != nil {
			return fmt.Errorf("mark pending review: %w", err)
		}
		article.Review = domain.ReviewPendingReview

		o.archiveBody(ctx, article)
	}

	if !ws.AutoApproveDrafts || ws.AutoApprovePrompt == "" {
		// Stays PENDING_REVIEW until an external reviewer calls Approve.
		return nil
	}

	approved, reason, err := o.judgeDraft(ctx, ws, article.Body)
	if err != nil {
		return err
	}

	if !approved {
		o.info("draft auto-rejected", "article", article.ID, "reason", reason)
		return o.articles.UpdateReview(ctx, article.ID, domain.ReviewRejected, reason, time.Time{})
	}

	return o.Approve(ctx, article.ID)
}

// Approve transitions an article to APPROVED, computes its publish slot,
// and enqueues one publish job per configured platform. It is the single
// approval path for both the auto-approve judgment and external reviewers.
func (o *Orchestrator) Approve(ctx context.Context, articleID string) error {
	article, err := o.articles.Get(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article %s: %w", articleID, err)
	}

	if article.Review == domain.ReviewRejected {
		return &domain.Error{Kind: domain.KindValidation, Op: "approve article", Err: fmt.Errorf("article %s is rejected", articleID)}
	}

	ws, err := o.workspaces.Get(ctx, article.WorkspaceID)
	if err != nil {
		return fmt.Errorf("load workspace %s: %w", article.WorkspaceID, err)
	}

	now := time.Now()
	slot := article.ScheduledPublishAt
	if article.Review != domain.ReviewApproved || slot.IsZero() {
		slot, err = publish.NextSlot(ws, now)
		if err != nil {
			return err
		}

		if err := o.articles.UpdateReview(ctx, articleID, domain.ReviewApproved, "", slot); err != nil {
			return fmt.Errorf("mark approved: %w", err)
		}
	}

	for _, platform := range ws.TargetPlatforms() {
		job := domain.Job{
			ID:        uuid.NewString(),
			Type:      domain.JobPublish,
			Status:    domain.JobPending,
			RunAt:     slot,
			DedupeKey: fmt.Sprintf("publish:%s:%s", articleID, platform),
			Payload: domain.PublishPayload{
				WorkspaceID: ws.ID,
				ArticleID:   articleID,
				Platform:    platform,
			},
			CreatedAt: now,
		}
		if err := o.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue publish for %s: %w", platform, err)
		}
	}

	if article.MediaType == domain.MediaVideo {
		job := domain.Job{
			ID:        uuid.NewString(),
			Type:      domain.JobYouTubeProcess,
			Status:    domain.JobPending,
			RunAt:     now,
			DedupeKey: "youtube:" + articleID,
			Payload:   domain.YouTubeProcessPayload{WorkspaceID: ws.ID, ArticleID: articleID},
			CreatedAt: now,
		}
		if err := o.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue youtube-process: %w", err)
		}
	}

	o.info("article approved", "article", articleID, "scheduled_publish_at", slot)
	return nil
}

// HandleYouTubeProcess re-hosts an article's video media through the media
// collaborator so platform publishers get a stable URL.
func (o *Orchestrator) HandleYouTubeProcess(ctx context.Context, job domain.Job) error {
	payload, ok := job.Payload.(domain.YouTubeProcessPayload)
	if !ok {
		return &domain.Error{Kind: domain.KindValidation, Op: "youtube-process job", Err: fmt.Errorf("unexpected payload %T", job.Payload)}
	}

	if o.media == nil {
		return &domain.Error{Kind: domain.KindConfig, Op: "youtube-process job", Err: fmt.Errorf("no media store configured")}
	}

	article, err := o.articles.Get(ctx, payload.ArticleID)
	if err != nil {
		return fmt.Errorf("load article %s: %w", payload.ArticleID, err)
	}

	if article.MediaType != domain.MediaVideo || article.MediaURL == "" {
		return nil
	}

	hosted, err := o.media.Mirror(ctx, article.MediaURL, "videos/"+article.ID)
	if err != nil {
		return fmt.Errorf("mirror video: %w", err)
	}

	if err := o.articles.SetMedia(ctx, article.ID, hosted, domain.MediaVideo); err != nil {
		return fmt.Errorf("store hosted media: %w", err)
	}

	return nil
}

func (o *Orchestrator) createDraft(ctx context.Context, ws domain.Workspace, topic domain.Topic, members []domain.Post) (domain.SynthesizedArticle, error) {
	mediaURL, mediaType := selectMedia(ctx, o.media, members, o.logger)

	article := domain.SynthesizedArticle{
		ID:          uuid.NewString(),
		WorkspaceID: ws.ID,
		TopicID:     topic.ID,
		MediaURL:    mediaURL,
		MediaType:   mediaType,
		Review:      domain.ReviewDraft,
		CreatedAt:   time.Now(),
	}

	created, err := o.articles.Create(ctx, article)
	if errors.Is(err, domain.ErrArticleExists) {
		// Lost the race with a concurrent delivery; adopt its article.
		return o.articles.ActiveByTopic(ctx, topic.ID)
	}
	if err != nil {
		return domain.SynthesizedArticle{}, fmt.Errorf("create draft: %w", err)
	}

	return created, nil
}

func (o *Orchestrator) synthesizeBody(ctx context.Context, ws domain.Workspace, members []domain.Post) (string, error) {
	if o.completer == nil {
		return "", &domain.Error{Kind: domain.KindConfig, Op: "synthesize body", Err: fmt.Errorf("no completer configured")}
	}

	var input strings.Builder
	for i, post := range members {
		fmt.Fprintf(&input, "%d. @%s (%d likes, %d reposts):\n%s\n\n", i+1, post.Account, post.Likes, post.Reposts, strings.TrimSpace(post.Content))
	}

	body, err := o.completer.Complete(ctx, ws.TranslationPrompt, input.String())
	if err != nil {
		return "", fmt.Errorf("synthesize article body: %w", err)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", &domain.Error{Kind: domain.KindTransient, Op: "synthesize body", Err: fmt.Errorf("empty completion")}
	}

	return body, nil
}

type approveVerdict struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (o *Orchestrator) judgeDraft(ctx context.Context, ws domain.Workspace, body string) (bool, string, error) {
	answer, err := o.completer.Complete(ctx, ws.AutoApprovePrompt, body)
	if err != nil {
		return false, "", fmt.Errorf("auto-approve judgment: %w", err)
	}

	var verdict approveVerdict
	if jsonErr := json.Unmarshal([]byte(cleanJSON(answer)), &verdict); jsonErr == nil {
		return verdict.Approve, verdict.Reason, nil
	}

	normalized := strings.ToLower(answer)
	return strings.Contains(normalized, "approve") && !strings.Contains(normalized, "not approve"), strings.TrimSpace(answer), nil
}

// archiveBody snapshots the synthesized text to media storage. Best
// effort: the article record stays authoritative if the upload fails.
func (o *Orchestrator) archiveBody(ctx context.Context, article domain.SynthesizedArticle) {
	if o.media == nil {
		return
	}

	url, err := o.media.Upload(ctx, []byte(article.Body), "articles/"+article.ID+".md")
	if err != nil {
		o.warn("archive upload failed", "article", article.ID, "error", err)
		return
	}

	if err := o.articles.SetArchiveURL(ctx, article.ID, url); err != nil {
		o.warn("store archive url failed", "article", article.ID, "error", err)
	}
}

func cleanJSON(answer string) string {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	return strings.TrimSpace(answer)
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
