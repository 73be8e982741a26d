package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kkkkikiki/portal/internal/model"
)

const ruleColumns = `id, organization_id, name, description, reward_kind, starts_at, ends_at,
		stock, conditions, created_at, updated_at`

// RuleRepository handles reward rule data operations
type RuleRepository struct{}

// NewRuleRepository creates a new rule repository
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{}
}

// CreateRule creates a new reward rule
func (r *RuleRepository) CreateRule(ctx context.Context, db DBExecutor, rule *model.RewardRule) error {
	query := db.Rebind(`
		INSERT INTO reward_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	rule.ID = uuid.NewString()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.CreatedAt
	rule.StartsAt = utc(rule.StartsAt)
	rule.EndsAt = utc(rule.EndsAt)

	_, err := db.ExecContext(ctx, query,
		rule.ID, rule.OrganizationID, rule.Name, rule.Description, rule.RewardKind,
		rule.StartsAt, rule.EndsAt, rule.Stock, rule.Condition, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// GetRule retrieves a rule by ID
func (r *RuleRepository) GetRule(ctx context.Context, db DBExecutor, id string) (*model.RewardRule, error) {
	query := db.Rebind(`SELECT ` + ruleColumns + ` FROM reward_rules WHERE id = ?`)

	var rule model.RewardRule
	if err := db.GetContext(ctx, &rule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return &rule, nil
}

// ListRules lists the rules of an organization, or every rule when organizationID is empty
func (r *RuleRepository) ListRules(ctx context.Context, db DBExecutor, organizationID string) ([]model.RewardRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM reward_rules`
	args := []interface{}{}
	if organizationID != "" {
		query += ` WHERE organization_id = ?`
		args = append(args, organizationID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rules := []model.RewardRule{}
	if err := db.SelectContext(ctx, &rules, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ListGrantableRules lists rules that still have stock, oldest first.
// Quiz applicability and activation windows are checked by the caller.
func (r *RuleRepository) ListGrantableRules(ctx context.Context, db DBExecutor) ([]model.RewardRule, error) {
	query := db.Rebind(`
		SELECT ` + ruleColumns + `
		FROM reward_rules
		WHERE stock IS NULL OR stock > 0
		ORDER BY created_at ASC, id ASC
	`)

	var rules []model.RewardRule
	if err := db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list grantable rules: %w", err)
	}
	return rules, nil
}

// DecrementStock takes one unit of finite stock. Returns ErrOutOfStock when the
// rule has no stock left, so two concurrent grants cannot both take the last unit.
func (r *RuleRepository) DecrementStock(ctx context.Context, db DBExecutor, ruleID string) error {
	query := db.Rebind(`
		UPDATE reward_rules
		SET stock = stock - 1, updated_at = ?
		WHERE id = ? AND stock IS NOT NULL AND stock > 0
	`)

	result, err := db.ExecContext(ctx, query, time.Now().UTC(), ruleID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	// Check if any row was actually updated
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOutOfStock
	}

	return nil
}
