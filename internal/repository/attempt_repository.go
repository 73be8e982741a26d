package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kkkkikiki/portal/internal/model"
)

// AttemptRepository stores quiz attempts. Attempts are insert-only.
type AttemptRepository struct{}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{}
}

// CreateAttempt inserts attempt, assigning its ID and creation time
func (r *AttemptRepository) CreateAttempt(ctx context.Context, db DBExecutor, attempt *model.QuizAttempt) error {
	query := db.Rebind(`
		INSERT INTO quiz_attempts
			(id, quiz_id, participant_name, score, max_score, started_at, finished_at, answers, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	attempt.ID = uuid.NewString()
	attempt.CreatedAt = time.Now().UTC()
	attempt.StartedAt = utc(attempt.StartedAt)
	attempt.FinishedAt = utc(attempt.FinishedAt)
	if attempt.Answers == "" {
		attempt.Answers = "{}"
	}

	if _, err := db.ExecContext(ctx, query,
		attempt.ID, attempt.QuizID, attempt.ParticipantName, attempt.Score, attempt.MaxScore,
		attempt.StartedAt, attempt.FinishedAt, attempt.Answers, attempt.CreatedAt); err != nil {
		return fmt.Errorf("failed to create quiz attempt: %w", err)
	}
	return nil
}

// CountAttempts returns the number of stored attempts for a quiz
func (r *AttemptRepository) CountAttempts(ctx context.Context, db DBExecutor, quizID string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = ?`), quizID); err != nil {
		return 0, fmt.Errorf("failed to count quiz attempts: %w", err)
	}
	return n, nil
}
