package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
	"github.com/noah-isme/rackbook-api/pkg/export"
)

type sheetRendererStub struct {
	sheet export.Sheet
}

func (r *sheetRendererStub) Render(sheet export.Sheet) ([]byte, error) {
	r.sheet = sheet
	return []byte("rendered"), nil
}

type failingLister struct{}

func (failingLister) ListBySide(ctx context.Context, sideID string, from, to time.Time) ([]models.BookedInstance, error) {
	return nil, errors.New("timeout")
}

func TestExportServiceWeeklySheetCoversMondayWeek(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
		instance("sun", at(2024, 6, 16, 9, 0), time.Hour, 1),
		instance("mon", at(2024, 6, 17, 9, 0), time.Hour, 1, 2),
		instance("wed", at(2024, 6, 19, 18, 0), 90*time.Minute, 4),
		instance("next", at(2024, 6, 24, 9, 0), time.Hour, 1),
	)
	pdf := &sheetRendererStub{}
	svc := NewExportService(store, NewCutoffCalculator(time.UTC), nil, nil, nil, pdf)

	result, err := svc.WeeklySheet(context.Background(), "side-a", dto.WeeklySheetQuery{Week: "2024-06-19", Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "rack-sheet-side-a-2024-06-17.pdf", result.Filename)
	require.Len(t, pdf.sheet.Rows, 2)
	assert.Equal(t, []string{"Mon", "2024-06-17", "09:00-10:00", "Squad", "1 2", "", "1"}, pdf.sheet.Rows[0])
	assert.Equal(t, "18:00-19:30", pdf.sheet.Rows[1][2])
	assert.Contains(t, pdf.sheet.Subtitle, "17 Jun 2024")
}

func TestExportServiceDefaultsToCSV(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"}, instance("mon", at(2024, 6, 17, 9, 0), time.Hour, 3))
	svc := NewExportService(store, NewCutoffCalculator(time.UTC), nil, nil, nil, nil)
	svc.now = func() time.Time { return at(2024, 6, 20, 12, 0) }

	result, err := svc.WeeklySheet(context.Background(), "side-a", dto.WeeklySheetQuery{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Day,Date,Time,Booking,Racks,Areas,Athletes", lines[0])
	assert.Equal(t, "Mon,2024-06-17,09:00-10:00,Squad,3,,1", lines[1])
}

func TestExportServiceRejectsBadQuery(t *testing.T) {
	svc := NewExportService(newMemoryStore(), nil, nil, nil, nil, nil)

	_, err := svc.WeeklySheet(context.Background(), "side-a", dto.WeeklySheetQuery{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.WeeklySheet(context.Background(), "side-a", dto.WeeklySheetQuery{Week: "19/06/2024"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceStoreFailure(t *testing.T) {
	svc := NewExportService(failingLister{}, nil, nil, nil, nil, nil)
	_, err := svc.WeeklySheet(context.Background(), "side-a", dto.WeeklySheetQuery{Week: "2024-06-19"})
	require.Error(t, err)
	assert.True(t, appErrors.FromError(err).Retryable)
}
