package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

type mockQueueEntries struct {
	detailed []models.WaitlistEntryDetail
	byParent []models.WaitlistEntryDetail
	err      error
}

func (m *mockQueueEntries) ListActiveDetailed(ctx context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detailed, nil
}

func (m *mockQueueEntries) ListActiveByParentEmail(ctx context.Context, parentEmail string) ([]models.WaitlistEntryDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byParent, nil
}

type mockEnrollmentChecker struct {
	active map[string]struct{}
	err    error
}

func (m *mockEnrollmentChecker) ListActiveLeadIDs(ctx context.Context, schoolID string, leadIDs []string) (map[string]struct{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.active, nil
}

func detailEntry(id, leadID, schoolID, program, parentEmail string, position, score int, createdAt time.Time) models.WaitlistEntryDetail {
	return models.WaitlistEntryDetail{
		WaitlistEntry: models.WaitlistEntry{
			ID:               id,
			LeadID:           leadID,
			SchoolID:         schoolID,
			Program:          program,
			WaitlistPosition: position,
			PriorityScore:    score,
			Status:           models.WaitlistStatusWaitlisted,
			CreatedAt:        createdAt,
		},
		ChildName:   "Child " + id,
		ParentName:  "Parent " + id,
		ParentEmail: parentEmail,
	}
}

func TestGetQueueRanksByPriorityThenAge(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{detailed: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Pre-K", "a@example.com", 1, 50, base),
		detailEntry("w2", "lead-2", "sch-1", "Pre-K", "b@example.com", 2, 90, base.Add(time.Hour)),
		detailEntry("w3", "lead-3", "sch-1", "Pre-K", "c@example.com", 3, 50, base.Add(-time.Hour)),
	}}
	capacity := &mockCapacity{snapshot: map[string]models.CapacitySnapshot{
		"Pre-K": {Capacity: 20, Enrolled: 17, Available: 3},
	}}
	svc := NewQueueService(entries, capacity, &mockSiblings{}, &mockEnrollmentChecker{}, nil, nil)

	view, err := svc.GetQueue(context.Background(), models.WaitlistFilter{})
	require.NoError(t, err)
	require.Len(t, view.Entries, 3)

	// Score wins, then earlier created_at breaks the tie.
	assert.Equal(t, "w2", view.Entries[0].ID)
	assert.Equal(t, "w3", view.Entries[1].ID)
	assert.Equal(t, "w1", view.Entries[2].ID)

	assert.Equal(t, 1, view.Entries[0].PositionInProgram)
	assert.Equal(t, "1 of 3", view.Entries[0].ProgramPosition)
	assert.Equal(t, "3 of 3", view.Entries[2].ProgramPosition)

	// The stored manual position rides along unchanged.
	assert.Equal(t, 2, view.Entries[0].WaitlistPosition)

	assert.Equal(t, 3, view.Entries[0].AvailableSpots)
	assert.Equal(t, "High", view.Entries[0].PriorityLabel)
	assert.Equal(t, 9, view.Entries[0].UIScore)
	assert.Equal(t, "Waitlisted", view.Entries[0].Status)

	assert.Equal(t, 3, view.Stats.TotalWaitlisted)
	assert.Equal(t, 1, view.Stats.TotalSchools)
	assert.Equal(t, 3, view.CapacityByProgram["Pre-K"].Available)
}

func TestGetQueueNoClassesForUnknownProgram(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{detailed: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Kindergarten", "a@example.com", 1, 50, base),
	}}
	capacity := &mockCapacity{snapshot: map[string]models.CapacitySnapshot{
		"Pre-K": {Capacity: 20, Enrolled: 10, Available: 10},
	}}
	svc := NewQueueService(entries, capacity, &mockSiblings{}, &mockEnrollmentChecker{}, nil, nil)

	view, err := svc.GetQueue(context.Background(), models.WaitlistFilter{})
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "No classes", view.Entries[0].ProgramPosition)
	assert.Equal(t, 0, view.Entries[0].AvailableSpots)
}

func TestGetQueueSiblingExcludesSelf(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{detailed: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Pre-K", "fam@example.com", 1, 50, base),
		detailEntry("w2", "lead-2", "sch-1", "Pre-K", "solo@example.com", 2, 50, base.Add(time.Minute)),
	}}
	siblings := &mockSiblings{families: map[string]map[string]struct{}{
		// lead-1's family set contains only lead-1 itself, so no sibling.
		"fam@example.com":  {"lead-1": {}},
		"solo@example.com": {"lead-9": {}},
	}}
	svc := NewQueueService(entries, &mockCapacity{}, siblings, &mockEnrollmentChecker{}, nil, nil)

	view, err := svc.GetQueue(context.Background(), models.WaitlistFilter{})
	require.NoError(t, err)
	require.Len(t, view.Entries, 2)
	byID := map[string]bool{}
	for _, e := range view.Entries {
		byID[e.ID] = e.HasSiblings
	}
	assert.False(t, byID["w1"])
	assert.True(t, byID["w2"])
}

func TestGetQueueDegradesOnEnrichmentFailure(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{detailed: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Pre-K", "a@example.com", 1, 50, base),
	}}
	capacity := &mockCapacity{err: appErrors.Clone(appErrors.ErrUpstreamUnavailable, "")}
	siblings := &mockSiblings{err: appErrors.Clone(appErrors.ErrUpstreamUnavailable, "")}
	svc := NewQueueService(entries, capacity, siblings, &mockEnrollmentChecker{}, nil, nil)

	view, err := svc.GetQueue(context.Background(), models.WaitlistFilter{})
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "No classes", view.Entries[0].ProgramPosition)
	assert.False(t, view.Entries[0].HasSiblings)
}

func TestGetQueueMergesCapacityAcrossSchools(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{detailed: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Pre-K", "a@example.com", 1, 50, base),
		detailEntry("w2", "lead-2", "sch-2", "Pre-K", "b@example.com", 1, 50, base),
	}}
	capacity := &mockCapacity{snapshot: map[string]models.CapacitySnapshot{
		"Pre-K": {Capacity: 10, Enrolled: 8, Available: 2},
	}}
	svc := NewQueueService(entries, capacity, &mockSiblings{}, &mockEnrollmentChecker{}, nil, nil)

	view, err := svc.GetQueue(context.Background(), models.WaitlistFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Stats.TotalSchools)
	assert.Equal(t, 20, view.CapacityByProgram["Pre-K"].Capacity)
	assert.Equal(t, 4, view.CapacityByProgram["Pre-K"].Available)
}

func TestGetParentViewHidesEnrolledChildren(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{byParent: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Pre-K", "fam@example.com", 1, 70, base),
		detailEntry("w2", "lead-2", "sch-1", "Pre-K", "fam@example.com", 2, 40, base.Add(time.Minute)),
	}}
	enrollments := &mockEnrollmentChecker{active: map[string]struct{}{"lead-1": {}}}
	svc := NewQueueService(entries, &mockCapacity{}, &mockSiblings{}, enrollments, nil, nil)

	result, err := svc.GetParentView(context.Background(), "Fam@Example.com")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Child w2", result[0].ChildName)
	assert.Equal(t, 1, result[0].Position)
}

func TestGetParentViewEstimates(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var detailed []models.WaitlistEntryDetail
	for i := 0; i < 12; i++ {
		detailed = append(detailed, detailEntry(
			// Descending scores keep the display order equal to seed order.
			"w"+string(rune('a'+i)), "lead-"+string(rune('a'+i)),
			"sch-1", "Pre-K", "fam@example.com", i+1, 100-i, base.Add(time.Duration(i)*time.Minute)))
	}
	entries := &mockQueueEntries{byParent: detailed}
	svc := NewQueueService(entries, &mockCapacity{}, &mockSiblings{}, &mockEnrollmentChecker{}, nil, nil)

	result, err := svc.GetParentView(context.Background(), "fam@example.com")
	require.NoError(t, err)
	require.Len(t, result, 12)
	assert.Equal(t, "1-2 weeks", result[0].EstimatedWait)
	assert.Equal(t, "1-2 weeks", result[2].EstimatedWait)
	assert.Equal(t, "2-4 weeks", result[3].EstimatedWait)
	assert.Equal(t, "2-4 weeks", result[5].EstimatedWait)
	assert.Equal(t, "1-2 months", result[6].EstimatedWait)
	assert.Equal(t, "1-2 months", result[9].EstimatedWait)
	assert.Equal(t, "2-3 months", result[10].EstimatedWait)
}

func TestGetParentViewRequiresEmail(t *testing.T) {
	svc := NewQueueService(&mockQueueEntries{}, &mockCapacity{}, &mockSiblings{}, &mockEnrollmentChecker{}, nil, nil)
	_, err := svc.GetParentView(context.Background(), "   ")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGetParentViewDegradesWhenEnrollmentLookupFails(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := &mockQueueEntries{byParent: []models.WaitlistEntryDetail{
		detailEntry("w1", "lead-1", "sch-1", "Pre-K", "fam@example.com", 1, 50, base),
	}}
	enrollments := &mockEnrollmentChecker{err: appErrors.Clone(appErrors.ErrUpstreamUnavailable, "")}
	svc := NewQueueService(entries, &mockCapacity{}, &mockSiblings{}, enrollments, nil, nil)

	// Enrollment failure degrades to showing the entry rather than erroring.
	result, err := svc.GetParentView(context.Background(), "fam@example.com")
	require.NoError(t, err)
	assert.Len(t, result, 1)
}
