package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
	"github.com/noah-isme/rackbook-api/pkg/response"
)

type bookingPlanner interface {
	CheckConflicts(ctx context.Context, req dto.CandidateRequest) (*models.ConflictReport, error)
	CheckCapacity(ctx context.Context, req dto.CandidateRequest) (*models.CapacityViolation, error)
	CreateBooking(ctx context.Context, req dto.CreateBookingRequest, actor models.Actor) (*dto.MutationPlan, error)
	ExtendBooking(ctx context.Context, bookingID string, req dto.ExtendBookingRequest, actor models.Actor) (*dto.MutationPlan, error)
	EditInstances(ctx context.Context, bookingID string, req dto.EditInstancesRequest, actor models.Actor) (*dto.MutationPlan, error)
	CancelInstances(ctx context.Context, bookingID string, req dto.CancelRequest, actor models.Actor) (*dto.MutationPlan, error)
	ProcessBookings(ctx context.Context, req dto.ProcessBookingsRequest, actor models.Actor) ([]dto.ProcessResult, error)
}

// BookingHandler exposes the booking reconciliation endpoints.
type BookingHandler struct {
	planner bookingPlanner
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(planner bookingPlanner) *BookingHandler {
	return &BookingHandler{planner: planner}
}

// Create godoc
// @Summary Create a booking series
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	plan, err := h.planner.CreateBooking(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !plan.Committed {
		response.JSON(c, http.StatusOK, plan, nil)
		return
	}
	response.Created(c, plan)
}

// CheckConflicts godoc
// @Summary Check a candidate session for rack conflicts
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CandidateRequest true "Candidate session"
// @Success 200 {object} response.Envelope
// @Router /bookings/check/conflicts [post]
func (h *BookingHandler) CheckConflicts(c *gin.Context) {
	var req dto.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid candidate payload"))
		return
	}
	report, err := h.planner.CheckConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	conflicts := report.Conflicts
	if conflicts == nil {
		conflicts = []models.ConflictTriple{}
	}
	groups := report.GroupByBooking()
	if groups == nil {
		groups = []models.BookingConflictGroup{}
	}
	response.JSON(c, http.StatusOK, dto.ConflictCheckResponse{
		HasConflicts: report.HasConflicts(),
		Conflicts:    conflicts,
		Groups:       groups,
	}, nil)
}

// CheckCapacity godoc
// @Summary Check a candidate session against capacity schedules
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CandidateRequest true "Candidate session"
// @Success 200 {object} response.Envelope
// @Router /bookings/check/capacity [post]
func (h *BookingHandler) CheckCapacity(c *gin.Context) {
	var req dto.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid candidate payload"))
		return
	}
	violation, err := h.planner.CheckCapacity(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CapacityCheckResponse{
		Valid:     violation == nil,
		Violation: violation,
		Message:   violation.Message(),
	}, nil)
}

// Extend godoc
// @Summary Extend a booking series by whole weeks
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.ExtendBookingRequest true "Extend payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/extend [post]
func (h *BookingHandler) Extend(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExtendBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid extend payload"))
		return
	}
	plan, err := h.planner.ExtendBooking(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// EditInstances godoc
// @Summary Edit selected sessions of a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.EditInstancesRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/instances [patch]
func (h *BookingHandler) EditInstances(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.EditInstancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid edit payload"))
		return
	}
	plan, err := h.planner.EditInstances(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Cancel godoc
// @Summary Cancel one, later or all sessions of a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.CancelRequest true "Cancel payload"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
		return
	}
	plan, err := h.planner.CancelInstances(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Process godoc
// @Summary Mark pending bookings as processed
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.ProcessBookingsRequest true "Booking IDs"
// @Success 200 {object} response.Envelope
// @Router /bookings/process [post]
func (h *BookingHandler) Process(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ProcessBookingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid process payload"))
		return
	}
	results, err := h.planner.ProcessBookings(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	processed := 0
	for _, r := range results {
		if r.Processed {
			processed++
		}
	}
	response.JSON(c, http.StatusOK, results, nil, map[string]interface{}{"processed": processed, "total": len(results)})
}
