package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// PostgresPostStore persists posts, unique per (workspace, threadId).
type PostgresPostStore struct {
	db *sql.DB
}

var _ ports.PostStore = (*PostgresPostStore)(nil)

// NewPostgresPostStore wires a sql.DB implementation.
func NewPostgresPostStore(db *sql.DB) *PostgresPostStore {
	return &PostgresPostStore{db: db}
}

var postColumns = []string{
	"id", "workspace_id", "account", "thread_id", "content", "media_urls",
	"likes", "replies", "reposts", "views", "source_url", "observed_at",
	"accepted", "coalesce(topic_id, '')",
}

// Upsert inserts the post or refreshes the engagement counters on the
// existing (workspace, threadId) row.
func (s *PostgresPostStore) Upsert(ctx context.Context, post domain.Post) (domain.Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}

	query, args, err := psql.Insert("posts").
		Columns("id", "workspace_id", "account", "thread_id", "content", "media_urls",
			"likes", "replies", "reposts", "views", "source_url", "observed_at", "accepted").
		Values(post.ID, post.WorkspaceID, post.Account, post.ThreadID, post.Content, pq.StringArray(post.MediaURLs),
			post.Likes, post.Replies, post.Reposts, post.Views, post.SourceURL, post.ObservedAt, post.Accepted).
		Suffix(`ON CONFLICT (workspace_id, thread_id) DO UPDATE
			SET content = EXCLUDED.content,
			    media_urls = EXCLUDED.media_urls,
			    likes = EXCLUDED.likes,
			    replies = EXCLUDED.replies,
			    reposts = EXCLUDED.reposts,
			    views = EXCLUDED.views
			RETURNING id, coalesce(topic_id, '')`).
		ToSql()
	if err != nil {
		return domain.Post{}, fmt.Errorf("build upsert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&post.ID, &post.TopicID); err != nil {
		return domain.Post{}, fmt.Errorf("upsert post: %w", err)
	}

	return post, nil
}

// ListUnclustered returns accepted posts without a topic link.
func (s *PostgresPostStore) ListUnclustered(ctx context.Context, workspaceID string, cutoff time.Time) ([]domain.Post, error) {
	builder := psql.Select(postColumns...).
		From("posts").
		Where(sq.Eq{"workspace_id": workspaceID, "accepted": true}).
		Where("topic_id IS NULL").
		OrderBy("observed_at DESC")
	if !cutoff.IsZero() {
		builder = builder.Where(sq.GtOrEq{"observed_at": cutoff})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list unclustered: %w", err)
	}

	return s.queryPosts(ctx, query, args)
}

// ListByIDs loads member posts by primary key.
func (s *PostgresPostStore) ListByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := psql.Select(postColumns...).
		From("posts").
		Where("id = ANY(?)", pq.StringArray(ids)).
		OrderBy("observed_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list by ids: %w", err)
	}

	return s.queryPosts(ctx, query, args)
}

// AssignTopic links an accepted post to its cluster.
func (s *PostgresPostStore) AssignTopic(ctx context.Context, postID, topicID string) error {
	query, args, err := psql.Update("posts").
		Set("topic_id", topicID).
		Where(sq.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign topic: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("assign topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *PostgresPostStore) queryPosts(ctx context.Context, query string, args []interface{}) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		var media pq.StringArray
		err := rows.Scan(&post.ID, &post.WorkspaceID, &post.Account, &post.ThreadID, &post.Content, &media,
			&post.Likes, &post.Replies, &post.Reposts, &post.Views, &post.SourceURL, &post.ObservedAt,
			&post.Accepted, &post.TopicID)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		post.MediaURLs = media
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return posts, nil
}
