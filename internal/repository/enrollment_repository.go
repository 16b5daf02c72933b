package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/openadmit/admissions-api/internal/models"
)

// EnrollmentRepository reads converted enrollments. The waitlist engine never
// writes enrollments; it only needs active-enrollment sets for view filtering
// and sibling detection.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListActiveLeadIDs returns the subset of leadIDs with an active enrollment at
// the school.
func (r *EnrollmentRepository) ListActiveLeadIDs(ctx context.Context, schoolID string, leadIDs []string) (map[string]struct{}, error) {
	active := make(map[string]struct{}, len(leadIDs))
	if len(leadIDs) == 0 {
		return active, nil
	}
	const chunkSize = 100
	for start := 0; start < len(leadIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(leadIDs) {
			end = len(leadIDs)
		}
		chunk := leadIDs[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)+2)
		args = append(args, schoolID, models.EnrollmentStatusActive)
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		query := fmt.Sprintf(`SELECT lead_id FROM enrollments WHERE school_id = $1 AND status = $2 AND lead_id IN (%s)`, strings.Join(placeholders, ","))
		rows, err := r.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("list active enrollment leads: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan enrollment lead id: %w", err)
			}
			active[id] = struct{}{}
		}
		rows.Close()
	}
	return active, nil
}

// FindActiveByParentEmails returns (parent email, lead id) pairs for active
// enrollments whose lead shares one of the given parent emails. Matching is
// case-insensitive; returned emails are lowercased.
func (r *EnrollmentRepository) FindActiveByParentEmails(ctx context.Context, schoolID string, emails []string) ([]models.ParentEnrollment, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(emails))
	args := make([]interface{}, 0, len(emails)+2)
	args = append(args, schoolID, models.EnrollmentStatusActive)
	for i, email := range emails {
		placeholders[i] = fmt.Sprintf("LOWER($%d)", len(args)+1)
		args = append(args, email)
	}
	query := fmt.Sprintf(`SELECT LOWER(l.parent_email) AS parent_email, e.lead_id
        FROM enrollments e
        JOIN leads l ON l.id = e.lead_id
        WHERE e.school_id = $1 AND e.status = $2 AND LOWER(l.parent_email) IN (%s)`, strings.Join(placeholders, ","))
	var pairs []models.ParentEnrollment
	if err := r.db.SelectContext(ctx, &pairs, query, args...); err != nil {
		return nil, fmt.Errorf("find enrollments by parent emails: %w", err)
	}
	return pairs, nil
}
