package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openadmit/admissions-api/internal/dto"
	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
	"github.com/openadmit/admissions-api/pkg/export"
)

type queueProvider interface {
	GetQueue(ctx context.Context, filter models.WaitlistFilter) (*dto.QueueView, error)
}

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes with response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders the staff queue as a downloadable document.
type ExportService struct {
	queue  queueProvider
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(queue queueProvider, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		queue:  queue,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var queueExportHeaders = []string{
	"Position", "Child", "Parent", "Email", "School", "Program",
	"Status", "Priority", "Label", "Spots", "Siblings", "Joined",
}

// ExportQueue renders the current staff queue in the requested format.
func (s *ExportService) ExportQueue(ctx context.Context, filter models.WaitlistFilter, format ExportFormat) (*ExportResult, error) {
	view, err := s.queue.GetQueue(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: queueExportHeaders, Rows: make([]map[string]string, 0, len(view.Entries))}
	for _, entry := range view.Entries {
		data.Rows = append(data.Rows, map[string]string{
			"Position": entry.ProgramPosition,
			"Child":    entry.ChildName,
			"Parent":   entry.ParentName,
			"Email":    entry.ParentEmail,
			"School":   entry.SchoolID,
			"Program":  entry.Program,
			"Status":   entry.Status,
			"Priority": strconv.Itoa(entry.PriorityScore),
			"Label":    entry.PriorityLabel,
			"Spots":    strconv.Itoa(entry.AvailableSpots),
			"Siblings": yesNo(entry.HasSiblings),
			"Joined":   entry.CreatedAt.Format("2006-01-02"),
		})
	}

	stamp := time.Now().Format("20060102")
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("waitlist-%s.csv", stamp),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(data, exportTitle(filter))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("waitlist-%s.pdf", stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+string(format))
	}
}

func exportTitle(filter models.WaitlistFilter) string {
	parts := []string{"Waitlist Queue"}
	if filter.SchoolID != "" {
		parts = append(parts, filter.SchoolID)
	}
	if filter.Program != "" {
		parts = append(parts, filter.Program)
	}
	return strings.Join(parts, " - ")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
