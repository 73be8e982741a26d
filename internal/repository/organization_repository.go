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

// OrganizationRepository handles organization data operations
type OrganizationRepository struct{}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository() *OrganizationRepository {
	return &OrganizationRepository{}
}

// CreateOrganization inserts org, assigning its ID and creation time
func (r *OrganizationRepository) CreateOrganization(ctx context.Context, db DBExecutor, org *model.Organization) error {
	query := db.Rebind(`
		INSERT INTO organizations (id, name, prefecture, municipality, contact, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	org.ID = uuid.NewString()
	org.CreatedAt = time.Now().UTC()

	if _, err := db.ExecContext(ctx, query,
		org.ID, org.Name, org.Prefecture, org.Municipality, org.Contact, org.CreatedAt); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (r *OrganizationRepository) GetOrganization(ctx context.Context, db DBExecutor, id string) (*model.Organization, error) {
	query := db.Rebind(`
		SELECT id, name, prefecture, municipality, contact, created_at
		FROM organizations
		WHERE id = ?
	`)

	var org model.Organization
	if err := db.GetContext(ctx, &org, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}
