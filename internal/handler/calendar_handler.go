package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
	"github.com/noah-isme/bimbingan-api/pkg/response"
)

// ScheduleOperations is the weekly calendar surface the handler needs.
type ScheduleOperations interface {
	WeeklySchedule(ctx context.Context, ownerID string, role models.UserRole) ([]models.WeeklyEntry, error)
	ReplaceSchedule(ctx context.Context, ownerID string, role models.UserRole, payload dto.ReplaceSchedulePayload) ([]models.WeeklyEntry, error)
}

// CalendarHandler exposes the fixed weekly schedule endpoints.
type CalendarHandler struct {
	service ScheduleOperations
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(svc ScheduleOperations) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// MySchedule godoc
// @Summary Get my weekly schedule
// @Description Returns the caller's fixed weekly entries for the active semester.
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/me [get]
func (h *CalendarHandler) MySchedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.service.WeeklySchedule(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ReplaceMySchedule godoc
// @Summary Replace my weekly schedule
// @Description Swaps the caller's entire weekly schedule for the active semester.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ReplaceSchedulePayload true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/me [put]
func (h *CalendarHandler) ReplaceMySchedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReplaceSchedulePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entries, err := h.service.ReplaceSchedule(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
