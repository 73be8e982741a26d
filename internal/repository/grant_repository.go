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

// GrantRepository handles redemption grant data operations
type GrantRepository struct{}

// NewGrantRepository creates a new grant repository
func NewGrantRepository() *GrantRepository {
	return &GrantRepository{}
}

// CreateGrant inserts an unused grant, assigning its ID
func (r *GrantRepository) CreateGrant(ctx context.Context, db DBExecutor, grant *model.RedemptionGrant) error {
	query := db.Rebind(`
		INSERT INTO redemption_grants (id, rule_id, code, recipient_name, granted_at, used, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	grant.ID = uuid.NewString()
	grant.GrantedAt = grant.GrantedAt.UTC()
	grant.Used = false
	grant.UsedAt = nil

	if _, err := db.ExecContext(ctx, query,
		grant.ID, grant.RuleID, grant.Code, grant.RecipientName, grant.GrantedAt, false, nil); err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

// GetDetailByCode looks up a grant by exact code together with its rule and organization.
// Codes are not unique; the earliest grant carrying the code wins.
func (r *GrantRepository) GetDetailByCode(ctx context.Context, db DBExecutor, code string) (*model.RedemptionDetail, error) {
	query := db.Rebind(`
		SELECT g.id, g.rule_id, g.code, g.recipient_name, g.granted_at, g.used, g.used_at,
			r.name AS rule_name, r.description AS rule_description, r.reward_kind,
			o.id AS organization_id, o.name AS organization_name,
			o.prefecture, o.municipality, o.contact
		FROM redemption_grants g
		JOIN reward_rules r ON r.id = g.rule_id
		JOIN organizations o ON o.id = r.organization_id
		WHERE g.code = ?
		ORDER BY g.granted_at ASC, g.id ASC
		LIMIT 1
	`)

	var detail model.RedemptionDetail
	if err := db.GetContext(ctx, &detail, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return &detail, nil
}

// GetGrant retrieves a grant by ID
func (r *GrantRepository) GetGrant(ctx context.Context, db DBExecutor, id string) (*model.RedemptionGrant, error) {
	query := db.Rebind(`
		SELECT id, rule_id, code, recipient_name, granted_at, used, used_at
		FROM redemption_grants
		WHERE id = ?
	`)

	var grant model.RedemptionGrant
	if err := db.GetContext(ctx, &grant, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return &grant, nil
}

// MarkUsed flips a grant from unused to used. Returns ErrAlreadyUsed when the
// grant was consumed first by someone else, so a code redeems exactly once.
func (r *GrantRepository) MarkUsed(ctx context.Context, db DBExecutor, grantID string, usedAt time.Time) error {
	query := db.Rebind(`
		UPDATE redemption_grants
		SET used = ?, used_at = ?
		WHERE id = ? AND used = ?
	`)

	result, err := db.ExecContext(ctx, query, true, usedAt.UTC(), grantID, false)
	if err != nil {
		return fmt.Errorf("failed to mark grant as used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyUsed
	}

	return nil
}
