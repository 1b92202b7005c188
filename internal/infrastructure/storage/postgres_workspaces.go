package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// PostgresWorkspaceStore reads tenant configuration. Platform credentials
// live in a jsonb column keyed by platform name.
type PostgresWorkspaceStore struct {
	db *sql.DB
}

var _ ports.WorkspaceStore = (*PostgresWorkspaceStore)(nil)

// NewPostgresWorkspaceStore wires a sql.DB implementation.
func NewPostgresWorkspaceStore(db *sql.DB) *PostgresWorkspaceStore {
	return &PostgresWorkspaceStore{db: db}
}

var workspaceColumns = []string{
	"id", "name", "accounts", "subject", "min_likes", "hot_score_threshold",
	"max_post_age_hours", "daily_post_limit", "publish_times", "timezone",
	"review_window_hours", "translation_prompt", "relevance_prompt",
	"auto_approve_drafts", "auto_approve_prompt", "platforms",
}

// Get loads one workspace.
func (s *PostgresWorkspaceStore) Get(ctx context.Context, id string) (domain.Workspace, error) {
	query, args, err := psql.Select(workspaceColumns...).
		From("workspaces").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("build get workspace: %w", err)
	}

	ws, err := scanWorkspace(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Workspace{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("get workspace: %w", err)
	}

	return ws, nil
}

// List returns every workspace in stable ID order.
func (s *PostgresWorkspaceStore) List(ctx context.Context) ([]domain.Workspace, error) {
	query, args, err := psql.Select(workspaceColumns...).
		From("workspaces").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list workspaces: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []domain.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, ws)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return out, nil
}

func scanWorkspace(row rowScanner) (domain.Workspace, error) {
	var ws domain.Workspace
	var accounts, publishTimes pq.StringArray
	var platforms []byte
	err := row.Scan(&ws.ID, &ws.Name, &accounts, &ws.Subject, &ws.MinLikes, &ws.HotScoreThreshold,
		&ws.MaxPostAgeHours, &ws.DailyPostLimit, &publishTimes, &ws.Timezone,
		&ws.ReviewWindowHours, &ws.TranslationPrompt, &ws.RelevancePrompt,
		&ws.AutoApproveDrafts, &ws.AutoApprovePrompt, &platforms)
	if err != nil {
		return domain.Workspace{}, err
	}
	ws.Accounts = accounts
	ws.PublishTimes = publishTimes
	if len(platforms) > 0 {
		if err := json.Unmarshal(platforms, &ws.Platforms); err != nil {
			return domain.Workspace{}, fmt.Errorf("decode platforms: %w", err)
		}
	}
	return ws, nil
}
