package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/middleware"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
	"github.com/noah-isme/bimbingan-api/pkg/response"
)

// AvailabilityOperations is the slot calculator surface the handler needs.
type AvailabilityOperations interface {
	GetAvailableSlots(ctx context.Context, query dto.AvailabilityQuery) (*models.AvailabilityResult, bool, error)
}

// AvailabilityHandler exposes the slot calculator.
type AvailabilityHandler struct {
	service AvailabilityOperations
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(svc AvailabilityOperations) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// GetSlots godoc
// @Summary List available meeting slots
// @Description Computes the open hourly windows shared by a student and the listed lecturers on one date. Results are advisory and re-checked at submission.
// @Tags Availability
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param lecturerIds query string true "Comma-separated lecturer IDs"
// @Param studentId query string false "Student ID (defaults to the caller for students)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/slots [get]
func (h *AvailabilityHandler) GetSlots(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := c.Query("studentId")
	if claims.Role == models.RoleStudent {
		studentID = claims.UserID
	}
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}

	var lecturerIDs []string
	for _, id := range strings.Split(c.Query("lecturerIds"), ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			lecturerIDs = append(lecturerIDs, trimmed)
		}
	}

	start := time.Now()
	result, cacheHit, err := h.service.GetAvailableSlots(c.Request.Context(), dto.AvailabilityQuery{
		StudentID:   studentID,
		LecturerIDs: lecturerIDs,
		Date:        c.Query("date"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, result, nil, meta)
}
