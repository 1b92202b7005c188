package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// PostgresTopicStore persists clusters and their scores.
type PostgresTopicStore struct {
	db *sql.DB
}

var _ ports.TopicStore = (*PostgresTopicStore)(nil)

// NewPostgresTopicStore wires a sql.DB implementation.
func NewPostgresTopicStore(db *sql.DB) *PostgresTopicStore {
	return &PostgresTopicStore{db: db}
}

var topicColumns = []string{
	"id", "workspace_id", "label", "post_ids", "keywords",
	"author_count", "post_count", "hot_score", "created_at", "updated_at",
}

// Save upserts the topic snapshot.
func (s *PostgresTopicStore) Save(ctx context.Context, topic domain.Topic) error {
	query, args, err := psql.Insert("topics").
		Columns(topicColumns...).
		Values(topic.ID, topic.WorkspaceID, topic.Label, pq.StringArray(topic.PostIDs), pq.StringArray(topic.Keywords),
			topic.AuthorCount, topic.PostCount, topic.HotScore, topic.CreatedAt, topic.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE
			SET label = EXCLUDED.label,
			    post_ids = EXCLUDED.post_ids,
			    keywords = EXCLUDED.keywords,
			    author_count = EXCLUDED.author_count,
			    post_count = EXCLUDED.post_count,
			    hot_score = EXCLUDED.hot_score,
			    updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save topic: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save topic: %w", err)
	}

	return nil
}

// Get loads one topic.
func (s *PostgresTopicStore) Get(ctx context.Context, id string) (domain.Topic, error) {
	query, args, err := psql.Select(topicColumns...).
		From("topics").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Topic{}, fmt.Errorf("build get topic: %w", err)
	}

	topic, err := s.scanTopic(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Topic{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Topic{}, fmt.Errorf("get topic: %w", err)
	}

	return topic, nil
}

// ListRecent returns workspace topics updated after the cutoff.
func (s *PostgresTopicStore) ListRecent(ctx context.Context, workspaceID string, cutoff time.Time) ([]domain.Topic, error) {
	builder := psql.Select(topicColumns...).
		From("topics").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("id ASC")
	if !cutoff.IsZero() {
		builder = builder.Where(sq.GtOrEq{"updated_at": cutoff})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list topics: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		topic, err := s.scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return topics, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresTopicStore) scanTopic(row rowScanner) (domain.Topic, error) {
	var topic domain.Topic
	var postIDs, keywords pq.StringArray
	err := row.Scan(&topic.ID, &topic.WorkspaceID, &topic.Label, &postIDs, &keywords,
		&topic.AuthorCount, &topic.PostCount, &topic.HotScore, &topic.CreatedAt, &topic.UpdatedAt)
	if err != nil {
		return domain.Topic{}, err
	}
	topic.PostIDs = postIDs
	topic.Keywords = keywords
	return topic, nil
}
