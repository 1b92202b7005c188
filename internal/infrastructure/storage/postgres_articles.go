package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// PostgresArticleStore persists synthesized articles and their per-platform
// publications. A partial unique index on (topic_id) WHERE review <> 'REJECTED'
// enforces the one-active-article-per-topic rule.
type PostgresArticleStore struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*PostgresArticleStore)(nil)

// NewPostgresArticleStore wires a sql.DB implementation.
func NewPostgresArticleStore(db *sql.DB) *PostgresArticleStore {
	return &PostgresArticleStore{db: db}
}

var articleColumns = []string{
	"id", "workspace_id", "topic_id", "body", "media_url", "media_type",
	"archive_url", "review", "reject_reason", "scheduled_publish_at",
	"created_at", "updated_at",
}

// Create persists a new article. The partial unique index turns a second
// active article for the same topic into domain.ErrArticleExists.
func (s *PostgresArticleStore) Create(ctx context.Context, article domain.SynthesizedArticle) (domain.SynthesizedArticle, error) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}

	query, args, err := psql.Insert("articles").
		Columns(articleColumns...).
		Values(article.ID, article.WorkspaceID, article.TopicID, article.Body, article.MediaURL, article.MediaType,
			article.ArchiveURL, article.Review, article.RejectReason, article.ScheduledPublishAt,
			article.CreatedAt, article.UpdatedAt).
		ToSql()
	if err != nil {
		return domain.SynthesizedArticle{}, fmt.Errorf("build create article: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.SynthesizedArticle{}, domain.ErrArticleExists
		}
		return domain.SynthesizedArticle{}, fmt.Errorf("create article: %w", err)
	}

	return article, nil
}

// Get loads one article with its publications.
func (s *PostgresArticleStore) Get(ctx context.Context, id string) (domain.SynthesizedArticle, error) {
	return s.getOne(ctx, sq.Eq{"id": id})
}

// ActiveByTopic returns the non-rejected article for a topic.
func (s *PostgresArticleStore) ActiveByTopic(ctx context.Context, topicID string) (domain.SynthesizedArticle, error) {
	return s.getOne(ctx, sq.And{sq.Eq{"topic_id": topicID}, sq.NotEq{"review": domain.ReviewRejected}})
}

func (s *PostgresArticleStore) getOne(ctx context.Context, pred interface{}) (domain.SynthesizedArticle, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(pred).
		ToSql()
	if err != nil {
		return domain.SynthesizedArticle{}, fmt.Errorf("build get article: %w", err)
	}

	var a domain.SynthesizedArticle
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.WorkspaceID, &a.TopicID, &a.Body, &a.MediaURL, &a.MediaType,
		&a.ArchiveURL, &a.Review, &a.RejectReason, &a.ScheduledPublishAt,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SynthesizedArticle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SynthesizedArticle{}, fmt.Errorf("get article: %w", err)
	}

	if a.Publications, err = s.loadPublications(ctx, a.ID); err != nil {
		return domain.SynthesizedArticle{}, err
	}

	return a, nil
}

// UpdateReview transitions the review state and schedule.
func (s *PostgresArticleStore) UpdateReview(ctx context.Context, articleID string, state domain.ReviewState, reason string, scheduledAt time.Time) error {
	return s.patch(ctx, articleID, map[string]interface{}{
		"review":               state,
		"reject_reason":        reason,
		"scheduled_publish_at": scheduledAt,
	})
}

// SetBody stores the synthesized article text.
func (s *PostgresArticleStore) SetBody(ctx context.Context, articleID, body string) error {
	return s.patch(ctx, articleID, map[string]interface{}{"body": body})
}

// SetMedia patches the selected media after asynchronous processing.
func (s *PostgresArticleStore) SetMedia(ctx context.Context, articleID, mediaURL string, mediaType domain.MediaType) error {
	return s.patch(ctx, articleID, map[string]interface{}{
		"media_url":  mediaURL,
		"media_type": mediaType,
	})
}

// SetArchiveURL records the body-snapshot location.
func (s *PostgresArticleStore) SetArchiveURL(ctx context.Context, articleID, url string) error {
	return s.patch(ctx, articleID, map[string]interface{}{"archive_url": url})
}

func (s *PostgresArticleStore) patch(ctx context.Context, articleID string, sets map[string]interface{}) error {
	builder := psql.Update("articles").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": articleID})
	for col, val := range sets {
		builder = builder.Set(col, val)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update article: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// RecordPublication writes one platform's publish result. ON CONFLICT DO
// NOTHING keeps the first record when a retried publish races itself.
func (s *PostgresArticleStore) RecordPublication(ctx context.Context, articleID string, pub domain.Publication) error {
	query, args, err := psql.Insert("article_publications").
		Columns("article_id", "platform", "platform_post_id", "url", "published_at").
		Values(articleID, pub.Platform, pub.PlatformPostID, pub.URL, pub.PublishedAt).
		Suffix("ON CONFLICT (article_id, platform) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build record publication: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record publication: %w", err)
	}

	return nil
}

// CountPublicationsSince counts publications recorded for the workspace
// after the cutoff across all platforms.
func (s *PostgresArticleStore) CountPublicationsSince(ctx context.Context, workspaceID string, cutoff time.Time) (int, error) {
	query, args, err := psql.Select("count(*)").
		From("article_publications p").
		Join("articles a ON a.id = p.article_id").
		Where(sq.Eq{"a.workspace_id": workspaceID}).
		Where(sq.GtOrEq{"p.published_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count publications: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count publications: %w", err)
	}

	return count, nil
}

func (s *PostgresArticleStore) loadPublications(ctx context.Context, articleID string) (map[domain.Platform]domain.Publication, error) {
	query, args, err := psql.Select("platform", "platform_post_id", "url", "published_at").
		From("article_publications").
		Where(sq.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load publications: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load publications: %w", err)
	}
	defer rows.Close()

	pubs := make(map[domain.Platform]domain.Publication)
	for rows.Next() {
		var pub domain.Publication
		if err := rows.Scan(&pub.Platform, &pub.PlatformPostID, &pub.URL, &pub.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		pubs[pub.Platform] = pub
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return pubs, nil
}
