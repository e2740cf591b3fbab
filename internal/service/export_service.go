package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
	"github.com/noah-isme/rackbook-api/pkg/export"
)

const (
	SheetFormatCSV = "csv"
	SheetFormatPDF = "pdf"
)

var sheetHeaders = []string{"Day", "Date", "Time", "Booking", "Racks", "Areas", "Athletes"}

type sideInstanceLister interface {
	ListBySide(ctx context.Context, sideID string, from, to time.Time) ([]models.BookedInstance, error)
}

type sheetRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

// SheetResult is a rendered rack sheet.
type SheetResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the weekly rack sheet for one side.
type ExportService struct {
	instances sideInstanceLister
	cutoff    *CutoffCalculator
	validator *validator.Validate
	logger    *zap.Logger
	csv       sheetRenderer
	pdf       sheetRenderer
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// default CSV and PDF exporters.
func NewExportService(instances sideInstanceLister, cutoff *CutoffCalculator, validate *validator.Validate, logger *zap.Logger, csv, pdf sheetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cutoff == nil {
		cutoff = NewCutoffCalculator(time.UTC)
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(1, 1.2, 1.2, 3, 1.5, 1.5, 1)
	}
	return &ExportService{
		instances: instances,
		cutoff:    cutoff,
		validator: validate,
		logger:    logger,
		csv:       csv,
		pdf:       pdf,
		now:       time.Now,
	}
}

// WeeklySheet renders every live session on the side during the Monday-start
// week containing query.Week (today when empty).
func (s *ExportService) WeeklySheet(ctx context.Context, sideID string, query dto.WeeklySheetQuery) (*SheetResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sheet query")
	}
	if strings.TrimSpace(sideID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "side id is required")
	}

	loc := s.cutoff.Location()
	day := s.now().In(loc)
	if query.Week != "" {
		parsed, err := time.ParseInLocation(dateLayout, query.Week, loc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week")
		}
		day = parsed
	}
	from := s.cutoff.WeekStart(day)
	to := from.AddDate(0, 0, 7)

	instances, err := s.instances.ListBySide(ctx, sideID, from, to)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load side sessions")
	}

	sheet := export.Sheet{
		Title:    fmt.Sprintf("Rack sheet: %s", sideID),
		Subtitle: fmt.Sprintf("Week of %s", from.Format("Mon 02 Jan 2006")),
		Headers:  sheetHeaders,
		Rows:     make([][]string, 0, len(instances)),
	}
	for _, inst := range instances {
		start, end := inst.Start.In(loc), inst.End.In(loc)
		sheet.Rows = append(sheet.Rows, []string{
			start.Format("Mon"),
			start.Format(dateLayout),
			fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04")),
			inst.BookingTitle,
			joinInt64(inst.Racks),
			strings.Join(inst.Areas, " "),
			strconv.Itoa(inst.Capacity),
		})
	}

	format := query.Format
	if format == "" {
		format = SheetFormatCSV
	}
	renderer, contentType := s.csv, "text/csv"
	if format == SheetFormatPDF {
		renderer, contentType = s.pdf, "application/pdf"
	}
	body, err := renderer.Render(sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render sheet")
	}

	s.logger.Info("rack sheet exported",
		zap.String("side_id", sideID),
		zap.String("week", from.Format(dateLayout)),
		zap.String("format", format),
		zap.Int("rows", len(sheet.Rows)),
	)
	return &SheetResult{
		Filename:    fmt.Sprintf("rack-sheet-%s-%s.%s", sideID, from.Format(dateLayout), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func joinInt64(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, " ")
}
