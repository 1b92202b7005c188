package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
	"TrendPress/internal/trend"
)

// Deps wires the poller's collaborators.
type Deps struct {
	Workspaces ports.WorkspaceStore
	Engine     *trend.Engine
	Queue      ports.Queue
	Driver     ports.Scheduler
	Reporter   ports.Reporter
	Logger     *slog.Logger
}

// Poller is the single periodic trigger for the pipeline: it promotes due
// delayed jobs, enqueues scrape work, and kicks trend scans. Scans for a
// workspace never overlap; a tick that finds a scan still running skips
// that workspace.
type Poller struct {
	workspaces ports.WorkspaceStore
	engine     *trend.Engine
	queue      ports.Queue
	driver     ports.Scheduler
	reporter   ports.Reporter
	logger     *slog.Logger

	mu       sync.Mutex
	scanning map[string]bool

	ctx context.Context
}

// New constructs the poller.
func New(deps Deps) *Poller {
	return &Poller{
		workspaces: deps.Workspaces,
		engine:     deps.Engine,
		queue:      deps.Queue,
		driver:     deps.Driver,
		reporter:   deps.Reporter,
		logger:     deps.Logger,
		scanning:   make(map[string]bool),
	}
}

// Start begins periodic ticking until Stop or context cancellation.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx = ctx
	return p.driver.Start(ctx, p.Tick)
}

// Stop halts the periodic driver.
func (p *Poller) Stop(ctx context.Context) error {
	return p.driver.Stop(ctx)
}

// Tick runs one poll cycle. Exposed for tests and manual runs.
func (p *Poller) Tick(now time.Time) {
	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := p.queue.PromoteDue(ctx, now); err != nil {
		p.warn("promote due jobs", "error", err)
	}

	workspaces, err := p.workspaces.List(ctx)
	if err != nil {
		p.warn("list workspaces", "error", err)
		return
	}

	scansStarted := 0
	for _, ws := range workspaces {
		p.enqueueScrapes(ctx, ws, now)

		if !p.beginScan(ws.ID) {
			p.debug("scan still running, skipping", "workspace", ws.ID)
			continue
		}
		scansStarted++

		go func(ws domain.Workspace) {
			defer p.endScan(ws.ID)
			if err := p.engine.ScanWorkspace(ctx, ws, now); err != nil {
				p.warn("trend scan failed", "workspace", ws.ID, "error", err)
			}
		}(ws)
	}

	if p.reporter != nil {
		p.reporter.Report(ctx, "poll-cycle", map[string]any{
			"workspaces":    len(workspaces),
			"scans_started": scansStarted,
			"at":            now,
		})
	}
}

func (p *Poller) enqueueScrapes(ctx context.Context, ws domain.Workspace, now time.Time) {
	for _, account := range ws.Accounts {
		job := domain.Job{
			ID:        uuid.NewString(),
			Type:      domain.JobScrape,
			Status:    domain.JobPending,
			RunAt:     now,
			DedupeKey: "scrape:" + ws.ID + ":" + account,
			Payload:   domain.ScrapePayload{WorkspaceID: ws.ID, Account: account},
			CreatedAt: now,
		}
		if err := p.queue.Enqueue(ctx, job); err != nil {
			p.warn("enqueue scrape", "workspace", ws.ID, "account", account, "error", err)
		}
	}
}

func (p *Poller) beginScan(workspaceID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scanning[workspaceID] {
		return false
	}
	p.scanning[workspaceID] = true
	return true
}

func (p *Poller) endScan(workspaceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.scanning, workspaceID)
}

func (p *Poller) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Poller) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
