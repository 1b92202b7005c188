package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"TrendPress/internal/config"
	"TrendPress/internal/domain"
	"TrendPress/internal/infrastructure/llm"
	"TrendPress/internal/infrastructure/media"
	"TrendPress/internal/infrastructure/publisher"
	"TrendPress/internal/infrastructure/report"
	"TrendPress/internal/infrastructure/scrape"
	"TrendPress/internal/infrastructure/storage"
	"TrendPress/internal/ingest"
	"TrendPress/internal/logging"
	"TrendPress/internal/poller"
	"TrendPress/internal/ports"
	"TrendPress/internal/publish"
	"TrendPress/internal/queue"
	"TrendPress/internal/synthesis"
	"TrendPress/internal/trend"
)

// stores bundles the persistence ports the pipeline components share.
type stores struct {
	workspaces ports.WorkspaceStore
	posts      ports.PostStore
	topics     ports.TopicStore
	articles   ports.ArticleStore
	jobs       ports.JobStore
}

// Application wires configuration to the pipeline components and owns
// their lifecycle.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	worker *queue.Worker
	poller *poller.Poller

	db    *sql.DB
	redis *redis.Client
}

// New builds a runnable application instance. An empty database DSN runs
// on in-memory stores seeded from config; an empty Redis URL runs the
// in-process queue.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	st, err := a.buildStores()
	if err != nil {
		return nil, err
	}

	q, err := a.buildQueue()
	if err != nil {
		return nil, err
	}

	var completer ports.Completer
	if cfg.ChatGPT.APIKey != "" {
		completer = llm.NewChatGPTClient(cfg.ChatGPT)
	}

	filter := ingest.NewFilter(completer, baseLogger.With("component", "filter"))
	ingestSvc := ingest.NewService(ingest.ServiceDeps{
		Source:     scrape.NewClient(cfg.Scraper),
		Posts:      st.posts,
		Workspaces: st.workspaces,
		Filter:     filter,
		Logger:     baseLogger.With("component", "ingest"),
	})

	engine := trend.NewEngine(trend.EngineDeps{
		Posts:      st.posts,
		Topics:     st.topics,
		Articles:   st.articles,
		Workspaces: st.workspaces,
		Queue:      q,
		Score:      trend.DefaultScoreConfig,
		Logger:     baseLogger.With("component", "trend"),
	})

	orchestrator := synthesis.NewOrchestrator(synthesis.OrchestratorDeps{
		Posts:      st.posts,
		Topics:     st.topics,
		Articles:   st.articles,
		Workspaces: st.workspaces,
		Queue:      q,
		Completer:  completer,
		Media:      media.NewClient(cfg.Media),
		Logger:     baseLogger.With("component", "synthesis"),
	})

	registry := publisher.NewRegistry(publisher.NewTelegram(), publisher.NewX())
	scheduler := publish.NewScheduler(publish.SchedulerDeps{
		Articles:   st.articles,
		Workspaces: st.workspaces,
		Publishers: registry.Map(),
		Logger:     baseLogger.With("component", "publish"),
	})

	worker := queue.NewWorker(queue.WorkerDeps{
		Queue:       q,
		Jobs:        st.jobs,
		Logger:      baseLogger.With("component", "worker"),
		Concurrency: cfg.Queue.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BackoffBase: cfg.Queue.BackoffBase,
	})
	worker.Register(domain.JobScrape, ingestSvc.HandleScrape)
	worker.Register(domain.JobSynthesize, orchestrator.HandleSynthesize)
	worker.Register(domain.JobPublish, scheduler.HandlePublish)
	worker.Register(domain.JobYouTubeProcess, orchestrator.HandleYouTubeProcess)
	a.worker = worker

	a.poller = poller.New(poller.Deps{
		Workspaces: st.workspaces,
		Engine:     engine,
		Queue:      q,
		Driver:     poller.NewIntervalScheduler(cfg.Poller.Interval),
		Reporter:   report.NewLogReporter(baseLogger.With("component", "report")),
		Logger:     baseLogger.With("component", "poller"),
	})

	return a, nil
}

// Run starts the poller and worker pool and blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if err := a.poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	a.logger.Info("application started",
		"interval", a.cfg.Poller.Interval,
		"concurrency", a.cfg.Queue.Concurrency)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.worker.Run(ctx)
	}()

	<-ctx.Done()

	stopCtx := context.Background()
	if err := a.poller.Stop(stopCtx); err != nil {
		a.logger.Warn("poller stop", "error", err)
	}
	wg.Wait()
	a.close()

	a.logger.Info("application stopped")
	return nil
}

func (a *Application) buildStores() (stores, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database configured, using in-memory stores")
		return stores{
			workspaces: storage.NewMemoryWorkspaceStore(seedWorkspaces(a.cfg.Workspaces)),
			posts:      storage.NewMemoryPostStore(),
			topics:     storage.NewMemoryTopicStore(),
			articles:   storage.NewMemoryArticleStore(),
			jobs:       storage.NewMemoryJobStore(),
		}, nil
	}

	db, err := storage.Open(a.cfg.Database.DSN)
	if err != nil {
		return stores{}, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	return stores{
		workspaces: storage.NewCachedWorkspaceStore(storage.NewPostgresWorkspaceStore(db)),
		posts:      storage.NewPostgresPostStore(db),
		topics:     storage.NewPostgresTopicStore(db),
		articles:   storage.NewPostgresArticleStore(db),
		jobs:       storage.NewPostgresJobStore(db),
	}, nil
}

func (a *Application) buildQueue() (ports.Queue, error) {
	if a.cfg.Redis.URL == "" {
		a.logger.Info("no redis configured, using in-process queue")
		return queue.NewMemoryQueue(), nil
	}

	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	a.redis = redis.NewClient(opts)

	return queue.NewRedisQueue(a.redis, a.cfg.Queue.Name), nil
}

func (a *Application) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
}

// seedWorkspaces maps config seeds into domain workspaces for the
// in-memory store.
func seedWorkspaces(seeds []config.WorkspaceConfig) []domain.Workspace {
	out := make([]domain.Workspace, 0, len(seeds))
	for _, s := range seeds {
		ws := domain.Workspace{
			ID:                s.ID,
			Name:              s.Name,
			Accounts:          s.Accounts,
			Subject:           s.Subject,
			MinLikes:          s.MinLikes,
			HotScoreThreshold: s.HotScoreThreshold,
			MaxPostAgeHours:   s.MaxPostAgeHours,
			DailyPostLimit:    s.DailyPostLimit,
			PublishTimes:      s.PublishTimes,
			Timezone:          s.Timezone,
			ReviewWindowHours: s.ReviewWindowHours,
			TranslationPrompt: s.TranslationPrompt,
			RelevancePrompt:   s.RelevancePrompt,
			AutoApproveDrafts: s.AutoApproveDrafts,
			AutoApprovePrompt: s.AutoApprovePrompt,
		}
		if len(s.Platforms) > 0 {
			ws.Platforms = make(map[domain.Platform]domain.PlatformCredentials, len(s.Platforms))
			for _, p := range s.Platforms {
				platform := domain.Platform(p.Platform)
				ws.Platforms[platform] = domain.PlatformCredentials{
					Platform: platform,
					Token:    p.Token,
					ChatID:   p.ChatID,
					Handle:   p.Handle,
				}
			}
		}
		out = append(out, ws)
	}
	return out
}
