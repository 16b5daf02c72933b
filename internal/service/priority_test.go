package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openadmit/admissions-api/internal/models"
)

func intPtr(v int) *int { return &v }

func TestComputePriorityScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	overdue := now.Add(-48 * time.Hour)
	upcoming := now.Add(48 * time.Hour)

	tests := []struct {
		name string
		in   ScoreInputs
		want int
	}{
		{
			name: "default base when lead has no score",
			in:   ScoreInputs{Hint: HintNone, Status: models.WaitlistStatusWaitlisted, Now: now},
			want: 50,
		},
		{
			name: "lead score used as base",
			in:   ScoreInputs{BaseScore: intPtr(30), Hint: HintNone, Status: models.WaitlistStatusContacted, Now: now},
			want: 30,
		},
		{
			name: "high hint adds twenty",
			in:   ScoreInputs{BaseScore: intPtr(40), Hint: HintHigh, Status: models.WaitlistStatusContacted, Now: now},
			want: 60,
		},
		{
			name: "sibling hint adds ten",
			in:   ScoreInputs{BaseScore: intPtr(40), Hint: HintSibling, Status: models.WaitlistStatusContacted, Now: now},
			want: 50,
		},
		{
			name: "open spots only count while waitlisted",
			in:   ScoreInputs{BaseScore: intPtr(40), AvailableSpots: 3, Status: models.WaitlistStatusWaitlisted, Now: now},
			want: 50,
		},
		{
			name: "open spots ignored after contact",
			in:   ScoreInputs{BaseScore: intPtr(40), AvailableSpots: 3, Status: models.WaitlistStatusContacted, Now: now},
			want: 40,
		},
		{
			name: "overdue follow-up adds five",
			in:   ScoreInputs{BaseScore: intPtr(40), Status: models.WaitlistStatusContacted, NextFollowUp: &overdue, Now: now},
			want: 45,
		},
		{
			name: "future follow-up adds nothing",
			in:   ScoreInputs{BaseScore: intPtr(40), Status: models.WaitlistStatusContacted, NextFollowUp: &upcoming, Now: now},
			want: 40,
		},
		{
			name: "all signals stack",
			in: ScoreInputs{
				BaseScore:      intPtr(60),
				Hint:           HintHigh,
				AvailableSpots: 2,
				Status:         models.WaitlistStatusWaitlisted,
				NextFollowUp:   &overdue,
				Now:            now,
			},
			want: 95,
		},
		{
			name: "clamped at one hundred",
			in: ScoreInputs{
				BaseScore:      intPtr(95),
				Hint:           HintHigh,
				AvailableSpots: 1,
				Status:         models.WaitlistStatusWaitlisted,
				Now:            now,
			},
			want: 100,
		},
		{
			name: "clamped at zero",
			in:   ScoreInputs{BaseScore: intPtr(-10), Status: models.WaitlistStatusContacted, Now: now},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePriorityScore(tt.in, 50))
		})
	}
}

func TestPriorityLabel(t *testing.T) {
	assert.Equal(t, LabelHigh, PriorityLabel(100))
	assert.Equal(t, LabelHigh, PriorityLabel(80))
	assert.Equal(t, LabelSibling, PriorityLabel(79))
	assert.Equal(t, LabelSibling, PriorityLabel(50))
	assert.Equal(t, LabelStandard, PriorityLabel(49))
	assert.Equal(t, LabelStandard, PriorityLabel(0))
}

func TestUIScoreRoundTrip(t *testing.T) {
	for ui := 1; ui <= 10; ui++ {
		assert.Equal(t, ui, ToUIScore(FromUIScore(ui)), "ui score %d should survive the round trip", ui)
	}
}

func TestToUIScoreRounding(t *testing.T) {
	assert.Equal(t, 5, ToUIScore(45))
	assert.Equal(t, 4, ToUIScore(44))
	assert.Equal(t, 10, ToUIScore(100))
	assert.Equal(t, 0, ToUIScore(0))
	assert.Equal(t, 10, ToUIScore(150))
}
