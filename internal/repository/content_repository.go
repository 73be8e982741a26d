package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kkkkikiki/portal/internal/model"
)

// contentQueries maps each content kind to a SELECT that projects its table onto
// model.ContentItem columns. Each query takes a single LIMIT argument.
var contentQueries = map[string]string{
	model.ContentLearning: `
		SELECT id, title, description AS summary, category, location, '' AS url,
			starts_at, ends_at, NULL AS published_at
		FROM learning_contents
		ORDER BY starts_at IS NULL, starts_at DESC, id ASC
		LIMIT ?`,
	model.ContentVideo: `
		SELECT id, title, description AS summary, category, '' AS location, video_url AS url,
			NULL AS starts_at, NULL AS ends_at, published_at
		FROM learning_videos
		ORDER BY published_at IS NULL, published_at DESC, id ASC
		LIMIT ?`,
	model.ContentQuiz: `
		SELECT id, title, description AS summary, category, '' AS location, '' AS url,
			starts_at, ends_at, NULL AS published_at
		FROM quizzes
		ORDER BY starts_at IS NULL, starts_at DESC, id ASC
		LIMIT ?`,
	model.ContentLink: `
		SELECT id, title, description AS summary, category, '' AS location, url,
			NULL AS starts_at, NULL AS ends_at, NULL AS published_at
		FROM links
		ORDER BY title ASC, id ASC
		LIMIT ?`,
	model.ContentNews: `
		SELECT id, title, summary, category, location, '' AS url,
			NULL AS starts_at, NULL AS ends_at, published_at
		FROM news
		ORDER BY published_at IS NULL, published_at DESC, id ASC
		LIMIT ?`,
}

// ContentKinds lists the content kinds in the order the assistant reads them
var ContentKinds = []string{
	model.ContentLearning,
	model.ContentVideo,
	model.ContentQuiz,
	model.ContentLink,
	model.ContentNews,
}

// ContentRepository reads the portal's content tables. It never writes.
type ContentRepository struct{}

// NewContentRepository creates a new content repository
func NewContentRepository() *ContentRepository {
	return &ContentRepository{}
}

// ListContent returns up to limit rows of the given kind
func (r *ContentRepository) ListContent(ctx context.Context, db DBExecutor, kind string, limit int) ([]model.ContentItem, error) {
	query, ok := contentQueries[kind]
	if !ok {
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}

	items := []model.ContentItem{}
	if err := db.SelectContext(ctx, &items, db.Rebind(query), limit); err != nil {
		return nil, fmt.Errorf("failed to list %s content: %w", kind, err)
	}
	for i := range items {
		items[i].Kind = kind
	}
	return items, nil
}

// ListLearningStartingBetween returns up to limit learning contents whose start
// falls in [from, to), earliest first
func (r *ContentRepository) ListLearningStartingBetween(ctx context.Context, db DBExecutor, from, to time.Time, limit int) ([]model.ContentItem, error) {
	query := db.Rebind(`
		SELECT id, title, description AS summary, category, location, '' AS url,
			starts_at, ends_at, NULL AS published_at
		FROM learning_contents
		WHERE starts_at >= ? AND starts_at < ?
		ORDER BY starts_at ASC, id ASC
		LIMIT ?
	`)

	items := []model.ContentItem{}
	if err := db.SelectContext(ctx, &items, query, from.UTC(), to.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list learning content by start: %w", err)
	}
	for i := range items {
		items[i].Kind = model.ContentLearning
	}
	return items, nil
}
