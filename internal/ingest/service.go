package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// ServiceDeps wires the admission stage's collaborators.
type ServiceDeps struct {
	Source     ports.ScrapeSource
	Posts      ports.PostStore
	Workspaces ports.WorkspaceStore
	Filter     *Filter
	Logger     *slog.Logger
}

// Service runs scraped batches through admission and persists what passes.
type Service struct {
	source     ports.ScrapeSource
	posts      ports.PostStore
	workspaces ports.WorkspaceStore
	filter     *Filter
	logger     *slog.Logger
}

// NewService constructs the ingestion stage.
func NewService(deps ServiceDeps) *Service {
	return &Service{
		source:     deps.Source,
		posts:      deps.Posts,
		workspaces: deps.Workspaces,
		filter:     deps.Filter,
		logger:     deps.Logger,
	}
}

// HandleScrape consumes a scrape job: fetch one account's fresh posts and
// run them through admission. Safe to redeliver; accepted posts upsert by
// (workspace, threadId) and rejects are simply dropped again.
func (s *Service) HandleScrape(ctx context.Context, job domain.Job) error {
	payload, ok := job.Payload.(domain.ScrapePayload)
	if !ok {
		return &domain.Error{Kind: domain.KindValidation, Op: "scrape job", Err: fmt.Errorf("unexpected payload %T", job.Payload)}
	}

	ws, err := s.workspaces.Get(ctx, payload.WorkspaceID)
	if err != nil {
		return fmt.Errorf("load workspace %s: %w", payload.WorkspaceID, err)
	}

	if s.source == nil {
		return &domain.Error{Kind: domain.KindConfig, Op: "scrape job", Err: fmt.Errorf("no scrape source configured")}
	}

	batch, err := s.source.Fetch(ctx, ws, payload.Account)
	if err != nil {
		return fmt.Errorf("fetch account %s: %w", payload.Account, err)
	}

	accepted, err := s.Ingest(ctx, ws, batch, time.Now())
	if err != nil {
		return err
	}

	s.debug("scrape batch admitted", "workspace", ws.ID, "account", payload.Account, "fetched", len(batch), "accepted", accepted)
	return nil
}

// Ingest evaluates each post and upserts those that pass admission.
// Rejections are logged with their reason and dropped; re-evaluating the
// same batch is idempotent.
func (s *Service) Ingest(ctx context.Context, ws domain.Workspace, batch []domain.Post, now time.Time) (int, error) {
	accepted := 0
	for _, post := range batch {
		post.WorkspaceID = ws.ID

		decision := s.filter.Evaluate(ctx, post, ws, now)
		if !decision.Accepted {
			s.debug("post rejected", "workspace", ws.ID, "thread_id", post.ThreadID, "reason", decision.Reason)
			continue
		}

		post.Accepted = true
		if _, err := s.posts.Upsert(ctx, post); err != nil {
			return accepted, fmt.Errorf("persist post %s: %w", post.ThreadID, err)
		}
		accepted++
	}

	return accepted, nil
}

func (s *Service) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
