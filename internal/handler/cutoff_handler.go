package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rackbook-api/internal/dto"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
	"github.com/noah-isme/rackbook-api/pkg/response"
)

type cutoffCalculator interface {
	Location() *time.Location
	Cutoff(date time.Time) time.Time
	IsAfterCutoff(date, now time.Time) bool
}

// CutoffHandler reports the submission deadline for a session date.
type CutoffHandler struct {
	calculator cutoffCalculator
	now        func() time.Time
}

// NewCutoffHandler builds a new handler.
func NewCutoffHandler(calculator cutoffCalculator) *CutoffHandler {
	return &CutoffHandler{calculator: calculator, now: time.Now}
}

// Get godoc
// @Summary Get the booking cutoff for a date
// @Tags Bookings
// @Produce json
// @Param date query string true "Session date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /cutoff [get]
func (h *CutoffHandler) Get(c *gin.Context) {
	raw := c.Query("date")
	date, err := time.ParseInLocation("2006-01-02", raw, h.calculator.Location())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "date must be YYYY-MM-DD"))
		return
	}
	response.JSON(c, http.StatusOK, dto.CutoffResponse{
		Date:        raw,
		Cutoff:      h.calculator.Cutoff(date),
		AfterCutoff: h.calculator.IsAfterCutoff(date, h.now()),
	}, nil)
}
