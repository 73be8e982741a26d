package model

import (
	"time"
)

// QuizAttempt is one completed quiz submission. Immutable once stored.
type QuizAttempt struct {
	ID              string     `db:"id" json:"id"`
	QuizID          string     `db:"quiz_id" json:"quiz_id"`
	ParticipantName string     `db:"participant_name" json:"participant_name"`
	Score           float64    `db:"score" json:"score"`
	MaxScore        float64    `db:"max_score" json:"max_score"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Answers         string     `db:"answers" json:"answers"` // raw JSON detail payload
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
