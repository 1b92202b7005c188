package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// SchedulerDeps wires the publish stage's collaborators.
type SchedulerDeps struct {
	Articles   ports.ArticleStore
	Workspaces ports.WorkspaceStore
	Publishers map[domain.Platform]ports.Publisher
	Logger     *slog.Logger
}

// Scheduler consumes due publish jobs and delivers articles to their
// target platforms, one platform per job.
type Scheduler struct {
	articles   ports.ArticleStore
	workspaces ports.WorkspaceStore
	publishers map[domain.Platform]ports.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduler constructs the publish stage.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	return &Scheduler{
		articles:   deps.Articles,
		workspaces: deps.Workspaces,
		publishers: deps.Publishers,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// HandlePublish consumes a publish job. The per-platform publication
// record is re-read immediately before the remote call: a redelivered or
// retried job for an already-published pair is a no-op, so the remote
// publish happens at most once per recorded success. A publish that
// succeeded remotely but timed out locally can still be re-sent on retry;
// that residual duplicate risk is accepted because the platform APIs offer
// no idempotency keys.
func (s *Scheduler) HandlePublish(ctx context.Context, job domain.Job) error {
	payload, ok := job.Payload.(domain.PublishPayload)
	if !ok {
		return &domain.Error{Kind: domain.KindValidation, Op: "publish job", Err: fmt.Errorf("unexpected payload %T", job.Payload)}
	}

	article, err := s.articles.Get(ctx, payload.ArticleID)
	if err != nil {
		return fmt.Errorf("load article %s: %w", payload.ArticleID, err)
	}

	if article.PublishedOn(payload.Platform) {
		s.debug("already published, skipping", "article", article.ID, "platform", payload.Platform)
		return nil
	}

	if article.Review != domain.ReviewApproved {
		return &domain.Error{Kind: domain.KindValidation, Op: "publish job", Err: fmt.Errorf("article %s is %s, not approved", article.ID, article.Review)}
	}

	ws, err := s.workspaces.Get(ctx, payload.WorkspaceID)
	if err != nil {
		return fmt.Errorf("load workspace %s: %w", payload.WorkspaceID, err)
	}

	now := s.now()
	if ws.DailyPostLimit > 0 {
		published, err := s.articles.CountPublicationsSince(ctx, ws.ID, now.Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("count publications: %w", err)
		}
		if published >= ws.DailyPostLimit {
			retryAt, slotErr := NextDaySlot(ws, now)
			if slotErr != nil {
				return slotErr
			}
			return &domain.Error{
				Kind:    domain.KindQuota,
				Op:      "publish job",
				Err:     fmt.Errorf("workspace %s hit daily limit %d", ws.ID, ws.DailyPostLimit),
				RetryAt: retryAt,
			}
		}
	}

	publisher, ok := s.publishers[payload.Platform]
	if !ok {
		return &domain.Error{Kind: domain.KindConfig, Op: "publish job", Err: fmt.Errorf("no publisher registered for %s", payload.Platform)}
	}

	creds, ok := ws.Platforms[payload.Platform]
	if !ok {
		return &domain.Error{Kind: domain.KindConfig, Op: "publish job", Err: fmt.Errorf("workspace %s has no %s credentials", ws.ID, payload.Platform)}
	}

	result, err := publisher.Publish(ctx, article, creds)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", payload.Platform, err)
	}

	pub := domain.Publication{
		Platform:       payload.Platform,
		PlatformPostID: result.PlatformPostID,
		URL:            result.URL,
		PublishedAt:    now,
	}
	if err := s.articles.RecordPublication(ctx, article.ID, pub); err != nil {
		return fmt.Errorf("record publication: %w", err)
	}

	s.info("article published", "article", article.ID, "platform", payload.Platform, "url", result.URL)
	return nil
}

func (s *Scheduler) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Scheduler) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
