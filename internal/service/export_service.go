package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/export"
)

type rosterRepository interface {
	Roster(ctx context.Context, templateID string, classDate time.Time) ([]models.RosterEntry, error)
}

// ExportService renders class rosters for front-desk staff.
type ExportService struct {
	bookings  rosterRepository
	templates bookingTemplateStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewExportService instantiates ExportService.
func NewExportService(bookings rosterRepository, templates bookingTemplateStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		bookings:  bookings,
		templates: templates,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// ExportFormat enumerates supported roster output formats.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult bundles rendered bytes with response metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

var rosterHeaders = []string{"Name", "Email", "Status", "Position", "Booked At"}

// Roster renders the attendee list of one class instance, confirmed members
// first and waitlisted members in position order.
func (s *ExportService) Roster(ctx context.Context, templateID string, classDate time.Time, format ExportFormat) (*ExportResult, error) {
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class template not found")
	}

	entries, err := s.bookings.Roster(ctx, templateID, classDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(entries))}
	for _, entry := range entries {
		position := ""
		if entry.Position != nil {
			position = strconv.Itoa(*entry.Position)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":      entry.FullName,
			"Email":     entry.Email,
			"Status":    string(entry.Status),
			"Position":  position,
			"Booked At": entry.CreatedAt.Format(time.RFC3339),
		})
	}

	base := fmt.Sprintf("roster_%s_%s", classDate.Format("2006-01-02"), tpl.StartTime)
	title := fmt.Sprintf("Roster %s %s", classDate.Format("2006-01-02"), tpl.StartTime)

	switch format {
	case FormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &ExportResult{FileName: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	case FormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &ExportResult{FileName: base + ".csv", ContentType: "text/csv", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
