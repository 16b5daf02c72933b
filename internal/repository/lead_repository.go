package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openadmit/admissions-api/internal/models"
)

const leadColumns = `id, school_id, child_name, parent_name, parent_email, parent_phone, lead_score, lead_status, program, next_follow_up, created_at`

// LeadRepository reads admissions leads. Lead CRUD is owned by another
// service; this side only consumes the fields the waitlist engine needs.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindByID returns a lead by its ID.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1`, leadColumns)
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		return nil, err
	}
	return &lead, nil
}
