package model

import (
	"time"
)

// Content kinds read by the assistant
const (
	ContentLearning = "learning"
	ContentVideo    = "video"
	ContentQuiz     = "quiz"
	ContentLink     = "link"
	ContentNews     = "news"
)

// ContentItem is a read-only row from one of the portal content tables
type ContentItem struct {
	Kind        string     `db:"-" json:"kind"`
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Summary     string     `db:"summary" json:"summary"`
	Category    string     `db:"category" json:"category"`
	Location    string     `db:"location" json:"location"`
	URL         string     `db:"url" json:"url"`
	StartsAt    *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt      *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
}

// ContentSnapshot is the current state of every content collection, as read
// by the assistant
type ContentSnapshot struct {
	Learning []ContentItem `json:"learning"`
	Videos   []ContentItem `json:"videos"`
	Quizzes  []ContentItem `json:"quizzes"`
	Links    []ContentItem `json:"links"`
	News     []ContentItem `json:"news"`

	// MonthlyLearning holds learning contents starting in the current calendar
	// month, queried separately from the row-capped Learning list. Nil when the
	// source did not resolve the month.
	MonthlyLearning []ContentItem `json:"monthly_learning"`
}

// Empty reports whether no collection has any rows
func (s *ContentSnapshot) Empty() bool {
	return s == nil ||
		len(s.Learning)+len(s.Videos)+len(s.Quizzes)+len(s.Links)+len(s.News) == 0
}

// Set stores items under the collection for kind
func (s *ContentSnapshot) Set(kind string, items []ContentItem) {
	switch kind {
	case ContentLearning:
		s.Learning = items
	case ContentVideo:
		s.Videos = items
	case ContentQuiz:
		s.Quizzes = items
	case ContentLink:
		s.Links = items
	case ContentNews:
		s.News = items
	}
}
