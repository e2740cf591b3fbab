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

type capacityScheduleService interface {
	List(ctx context.Context, sideID string) ([]models.CapacitySchedule, error)
	Upsert(ctx context.Context, sideID string, req dto.UpsertSchedulesRequest) ([]models.CapacitySchedule, error)
	Delete(ctx context.Context, id string) error
}

// CapacityScheduleHandler manages the capacity rules of a side.
type CapacityScheduleHandler struct {
	service capacityScheduleService
}

// NewCapacityScheduleHandler builds a new handler.
func NewCapacityScheduleHandler(service capacityScheduleService) *CapacityScheduleHandler {
	return &CapacityScheduleHandler{service: service}
}

// List godoc
// @Summary List capacity schedules of a side
// @Tags Capacity
// @Produce json
// @Param id path string true "Side ID"
// @Success 200 {object} response.Envelope
// @Router /sides/{id}/schedules [get]
func (h *CapacityScheduleHandler) List(c *gin.Context) {
	schedules, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if schedules == nil {
		schedules = []models.CapacitySchedule{}
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Upsert godoc
// @Summary Create or replace capacity schedules of a side
// @Tags Capacity
// @Accept json
// @Produce json
// @Param id path string true "Side ID"
// @Param payload body dto.UpsertSchedulesRequest true "Schedules"
// @Success 200 {object} response.Envelope
// @Router /sides/{id}/schedules [put]
func (h *CapacityScheduleHandler) Upsert(c *gin.Context) {
	var req dto.UpsertSchedulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedules payload"))
		return
	}
	schedules, err := h.service.Upsert(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Delete godoc
// @Summary Delete a capacity schedule
// @Tags Capacity
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *CapacityScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
