package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadmit/admissions-api/internal/dto"
	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

type mockQueueProvider struct {
	view *dto.QueueView
	err  error
}

func (m *mockQueueProvider) GetQueue(ctx context.Context, filter models.WaitlistFilter) (*dto.QueueView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func exportTestView() *dto.QueueView {
	return &dto.QueueView{
		Entries: []dto.QueueEntryView{
			{
				ID:              "w1",
				ChildName:       "Ada",
				ParentName:      "Grace",
				ParentEmail:     "grace@example.com",
				SchoolID:        "sch-1",
				Program:         "Pre-K",
				Status:          "Waitlisted",
				PriorityScore:   80,
				PriorityLabel:   "High",
				ProgramPosition: "1 of 1",
				AvailableSpots:  2,
				HasSiblings:     true,
				CreatedAt:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestExportQueueCSV(t *testing.T) {
	svc := NewExportService(&mockQueueProvider{view: exportTestView()}, nil)

	result, err := svc.ExportQueue(context.Background(), models.WaitlistFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Content)
	assert.Contains(t, body, "Position,Child,Parent")
	assert.Contains(t, body, "1 of 1,Ada,Grace,grace@example.com,sch-1,Pre-K,Waitlisted,80,High,2,Yes,2026-02-01")
}

func TestExportQueuePDF(t *testing.T) {
	svc := NewExportService(&mockQueueProvider{view: exportTestView()}, nil)

	result, err := svc.ExportQueue(context.Background(), models.WaitlistFilter{SchoolID: "sch-1"}, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportQueueUnknownFormat(t *testing.T) {
	svc := NewExportService(&mockQueueProvider{view: exportTestView()}, nil)

	_, err := svc.ExportQueue(context.Background(), models.WaitlistFilter{}, ExportFormat("xlsx"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportQueuePropagatesQueueError(t *testing.T) {
	svc := NewExportService(&mockQueueProvider{err: appErrors.Clone(appErrors.ErrInternal, "")}, nil)

	_, err := svc.ExportQueue(context.Background(), models.WaitlistFilter{}, ExportFormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
