package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/repository"
)

// Source loads the content snapshot a reply is grounded on
type Source interface {
	Load(ctx context.Context) (*model.ContentSnapshot, error)
}

// DBSource reads the snapshot straight from the content tables
type DBSource struct {
	db    *sqlx.DB
	repo  *repository.ContentRepository
	limit int
	loc   *time.Location
	now   func() time.Time
}

// SourceOption configures a DBSource
type SourceOption func(*DBSource)

// WithSourceClock sets the time source that picks the current month
func WithSourceClock(now func() time.Time) SourceOption {
	return func(s *DBSource) {
		s.now = now
	}
}

// WithSourceLocation sets the location calendar months are computed in. Defaults to JST.
func WithSourceLocation(loc *time.Location) SourceOption {
	return func(s *DBSource) {
		s.loc = loc
	}
}

// NewDBSource creates a source reading at most limit rows per collection
func NewDBSource(db *sqlx.DB, limit int, opts ...SourceOption) *DBSource {
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	s := &DBSource{
		db:    db,
		repo:  repository.NewContentRepository(),
		limit: limit,
		loc:   jst,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements Source
func (s *DBSource) Load(ctx context.Context) (*model.ContentSnapshot, error) {
	snap := &model.ContentSnapshot{}
	for _, kind := range repository.ContentKinds {
		items, err := s.repo.ListContent(ctx, s.db, kind, s.limit)
		if err != nil {
			return nil, err
		}
		snap.Set(kind, items)
	}

	from, to := monthBounds(s.now(), s.loc)
	monthly, err := s.repo.ListLearningStartingBetween(ctx, s.db, from, to, s.limit)
	if err != nil {
		return nil, err
	}
	snap.MonthlyLearning = monthly
	return snap, nil
}

// monthBounds returns the start of now's calendar month in loc and the start of the next
func monthBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

var sectionTitles = []struct {
	title string
	items func(*model.ContentSnapshot) []model.ContentItem
}{
	{"学びコンテンツ", func(s *model.ContentSnapshot) []model.ContentItem { return s.Learning }},
	{"学習動画", func(s *model.ContentSnapshot) []model.ContentItem { return s.Videos }},
	{"クイズ", func(s *model.ContentSnapshot) []model.ContentItem { return s.Quizzes }},
	{"リンク", func(s *model.ContentSnapshot) []model.ContentItem { return s.Links }},
	{"ニュース", func(s *model.ContentSnapshot) []model.ContentItem { return s.News }},
}

// dumpSnapshot flattens every non-empty collection to "title: summary (metadata)"
// lines, at most limit per collection.
func dumpSnapshot(snap *model.ContentSnapshot, limit int, loc *time.Location) string {
	var b strings.Builder
	for _, sec := range sectionTitles {
		items := sec.items(snap)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "【%s】\n", sec.title)
		for i, item := range items {
			if i == limit {
				break
			}
			b.WriteString("- ")
			b.WriteString(flatten(item, loc))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// flatten renders one item as "title: summary (metadata)"
func flatten(item model.ContentItem, loc *time.Location) string {
	line := item.Title
	if item.Summary != "" {
		line += ": " + item.Summary
	}
	if meta := metadata(item, loc); meta != "" {
		line += " (" + meta + ")"
	}
	return line
}

func metadata(item model.ContentItem, loc *time.Location) string {
	var parts []string
	if item.Category != "" {
		parts = append(parts, item.Category)
	}
	if item.Location != "" {
		parts = append(parts, item.Location)
	}
	switch {
	case item.StartsAt != nil && item.EndsAt != nil:
		parts = append(parts, formatDate(*item.StartsAt, loc)+"〜"+formatDate(*item.EndsAt, loc))
	case item.StartsAt != nil:
		parts = append(parts, formatDate(*item.StartsAt, loc)+"〜")
	case item.PublishedAt != nil:
		parts = append(parts, formatDate(*item.PublishedAt, loc))
	}
	if item.URL != "" {
		parts = append(parts, item.URL)
	}
	return strings.Join(parts, " / ")
}

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006/01/02")
}
