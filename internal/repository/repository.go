package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")

	// ErrOutOfStock is returned when a conditional stock decrement matches no row
	ErrOutOfStock = errors.New("out of stock")

	// ErrAlreadyUsed is returned when a conditional redemption update matches no row
	ErrAlreadyUsed = errors.New("already used")
)

// Timestamp columns carry no zone, so every time is written as UTC.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
