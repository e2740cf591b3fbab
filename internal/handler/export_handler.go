package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/service"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
	"github.com/noah-isme/rackbook-api/pkg/response"
)

type sheetExporter interface {
	WeeklySheet(ctx context.Context, sideID string, query dto.WeeklySheetQuery) (*service.SheetResult, error)
}

// ExportHandler serves printable rack sheets.
type ExportHandler struct {
	exporter sheetExporter
}

// NewExportHandler builds a new handler.
func NewExportHandler(exporter sheetExporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// WeeklySheet godoc
// @Summary Download the weekly rack sheet of a side
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Side ID"
// @Param week query string false "Any date in the week (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /sides/{id}/sheet [get]
func (h *ExportHandler) WeeklySheet(c *gin.Context) {
	var query dto.WeeklySheetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sheet query"))
		return
	}
	result, err := h.exporter.WeeklySheet(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.ContentType, result.Filename, result.Body)
}
