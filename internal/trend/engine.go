package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// EngineDeps wires the trend scan's collaborators.
type EngineDeps struct {
	Posts      ports.PostStore
	Topics     ports.TopicStore
	Articles   ports.ArticleStore
	Workspaces ports.WorkspaceStore
	Queue      ports.Queue
	Score      ScoreConfig
	Logger     *slog.Logger
}

// Engine clusters admitted posts into topics, recomputes heat, and
// enqueues synthesis for topics crossing their workspace threshold.
type Engine struct {
	posts      ports.PostStore
	topics     ports.TopicStore
	articles   ports.ArticleStore
	workspaces ports.WorkspaceStore
	queue      ports.Queue
	score      ScoreConfig
	logger     *slog.Logger
}

// NewEngine constructs the trend engine.
func NewEngine(deps EngineDeps) *Engine {
	score := deps.Score
	if score == (ScoreConfig{}) {
		score = DefaultScoreConfig
	}
	return &Engine{
		posts:      deps.Posts,
		topics:     deps.Topics,
		articles:   deps.Articles,
		workspaces: deps.Workspaces,
		queue:      deps.Queue,
		score:      score,
		logger:     deps.Logger,
	}
}

// ScanAll runs the trend scan for every workspace. A failure in one
// workspace is logged and never aborts the others.
func (e *Engine) ScanAll(ctx context.Context, now time.Time) {
	workspaces, err := e.workspaces.List(ctx)
	if err != nil {
		e.warn("list workspaces", "error", err)
		return
	}

	for _, ws := range workspaces {
		if err := e.ScanWorkspace(ctx, ws, now); err != nil {
			e.warn("trend scan failed", "workspace", ws.ID, "error", err)
		}
	}
}

// ScanWorkspace clusters the workspace's unassigned posts, rescores every
// touched topic, and enqueues synthesis where heat crosses the threshold.
func (e *Engine) ScanWorkspace(ctx context.Context, ws domain.Workspace, now time.Time) error {
	var cutoff time.Time
	if maxAge := ws.MaxPostAge(); maxAge > 0 {
		cutoff = now.Add(-maxAge)
	}

	existing, err := e.topics.ListRecent(ctx, ws.ID, cutoff)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].ID < existing[j].ID })

	topics := make([]*domain.Topic, 0, len(existing))
	for i := range existing {
		topics = append(topics, &existing[i])
	}

	fresh, err := e.posts.ListUnclustered(ctx, ws.ID, cutoff)
	if err != nil {
		return fmt.Errorf("list unclustered posts: %w", err)
	}

	touched := make(map[string]*domain.Topic)
	for _, post := range fresh {
		tokens := Tokens(post.Content)
		if len(tokens) == 0 {
			continue
		}

		topic := e.bestMatch(topics, tokens)
		if topic == nil {
			topic = &domain.Topic{
				ID:          uuid.NewString(),
				WorkspaceID: ws.ID,
				Label:       Label(tokens),
				Keywords:    tokens,
				CreatedAt:   now,
			}
			topics = append(topics, topic)
		}

		topic.AddPost(post.ID)
		topic.Keywords = MergeSignature(topic.Keywords, tokens)
		topic.UpdatedAt = now
		touched[topic.ID] = topic

		// The topic record must exist before any post points at it. A
		// post assigned to an unsaved topic would drop out of the
		// unclustered set with no topic ever picking it up.
		if err := e.topics.Save(ctx, *topic); err != nil {
			return fmt.Errorf("save topic %s: %w", topic.ID, err)
		}
		if err := e.posts.AssignTopic(ctx, post.ID, topic.ID); err != nil {
			return fmt.Errorf("assign post %s to topic %s: %w", post.ID, topic.ID, err)
		}
	}

	for _, topic := range touched {
		if err := e.rescoreAndMaybeEnqueue(ctx, ws, topic, now); err != nil {
			e.warn("topic rescore failed", "workspace", ws.ID, "topic", topic.ID, "error", err)
		}
	}

	return nil
}

// bestMatch returns the topic with the highest Jaccard similarity at or
// above the join threshold; ties resolve to the earlier topic in ID order.
func (e *Engine) bestMatch(topics []*domain.Topic, tokens []string) *domain.Topic {
	var best *domain.Topic
	bestSim := 0.0
	for _, topic := range topics {
		sim := Jaccard(topic.Keywords, tokens)
		if sim >= joinThreshold && sim > bestSim {
			best = topic
			bestSim = sim
		}
	}
	return best
}

func (e *Engine) rescoreAndMaybeEnqueue(ctx context.Context, ws domain.Workspace, topic *domain.Topic, now time.Time) error {
	members, err := e.posts.ListByIDs(ctx, topic.PostIDs)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	authors := make(map[string]struct{}, len(members))
	for _, post := range members {
		authors[post.Account] = struct{}{}
	}

	topic.AuthorCount = len(authors)
	topic.PostCount = len(topic.PostIDs)
	topic.HotScore = HotScoreWith(e.score, members, topic.AuthorCount, now)

	if err := e.topics.Save(ctx, *topic); err != nil {
		return fmt.Errorf("save topic: %w", err)
	}

	if topic.HotScore < ws.HotScoreThreshold {
		return nil
	}

	// The Topic→Article relationship is the idempotency guard: a topic
	// with a live article is never enqueued again, regardless of job
	// identity. The dedupe key only suppresses duplicates while the first
	// job is still in flight.
	_, err = e.articles.ActiveByTopic(ctx, topic.ID)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("check active article: %w", err)
	}

	job := domain.Job{
		ID:        uuid.NewString(),
		Type:      domain.JobSynthesize,
		Status:    domain.JobPending,
		RunAt:     now,
		DedupeKey: "synthesize:" + topic.ID,
		Payload:   domain.SynthesizePayload{WorkspaceID: ws.ID, TopicID: topic.ID},
		CreatedAt: now,
	}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue synthesize: %w", err)
	}

	e.info("topic crossed threshold", "workspace", ws.ID, "topic", topic.ID, "label", topic.Label, "hot_score", topic.HotScore)
	return nil
}

func (e *Engine) info(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
