package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadmit/admissions-api/internal/models"
)

func TestEnrollmentRepositoryListActiveLeadIDs(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT lead_id FROM enrollments WHERE school_id = $1 AND status = $2 AND lead_id IN ($3,$4,$5)")).
		WithArgs("sch-1", models.EnrollmentStatusActive, "lead-1", "lead-2", "lead-3").
		WillReturnRows(sqlmock.NewRows([]string{"lead_id"}).AddRow("lead-2"))

	active, err := repo.ListActiveLeadIDs(context.Background(), "sch-1", []string{"lead-1", "lead-2", "lead-3"})
	require.NoError(t, err)
	assert.Len(t, active, 1)
	_, ok := active["lead-2"]
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveLeadIDsEmptyInput(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	active, err := repo.ListActiveLeadIDs(context.Background(), "sch-1", nil)
	require.NoError(t, err)
	assert.Empty(t, active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindActiveByParentEmails(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("LOWER\\(l.parent_email\\) IN \\(LOWER\\(\\$3\\),LOWER\\(\\$4\\)\\)").
		WithArgs("sch-1", models.EnrollmentStatusActive, "fam@example.com", "other@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"parent_email", "lead_id"}).
			AddRow("fam@example.com", "lead-1").
			AddRow("fam@example.com", "lead-2"))

	pairs, err := repo.FindActiveByParentEmails(context.Background(), "sch-1", []string{"fam@example.com", "other@example.com"})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "fam@example.com", pairs[0].ParentEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}
