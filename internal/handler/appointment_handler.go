package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
	"github.com/noah-isme/bimbingan-api/pkg/response"
)

// AppointmentOperations is the lifecycle surface the handler needs.
type AppointmentOperations interface {
	SubmitRequest(ctx context.Context, studentID string, req dto.SubmitRequestPayload) (*models.AppointmentDetail, error)
	Invite(ctx context.Context, lecturerID string, req dto.InvitePayload) (*models.AppointmentDetail, error)
	RecordResponse(ctx context.Context, appointmentID, lecturerID string, req dto.RespondPayload) (*dto.ConsensusResult, error)
	Reschedule(ctx context.Context, appointmentID, requesterID string, req dto.ReschedulePayload) (*models.Appointment, error)
	MarkComplete(ctx context.Context, appointmentID, requesterID string) (*models.Appointment, error)
	Cancel(ctx context.Context, appointmentID, studentID string) error
	Get(ctx context.Context, appointmentID string) (*models.AppointmentDetail, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error)
	Logs(ctx context.Context, appointmentID string) ([]models.AppointmentLog, error)
}

// RecurringOperations expands session templates into booked appointments.
type RecurringOperations interface {
	Generate(ctx context.Context, lecturerID string, template dto.RecurringTemplate) (int, error)
}

// AppointmentHandler exposes the appointment lifecycle endpoints.
type AppointmentHandler struct {
	service   AppointmentOperations
	recurring RecurringOperations
}

// NewAppointmentHandler constructs an appointment handler.
func NewAppointmentHandler(svc AppointmentOperations, recurring RecurringOperations) *AppointmentHandler {
	return &AppointmentHandler{service: svc, recurring: recurring}
}

// Submit godoc
// @Summary Submit a supervision meeting request
// @Description Creates a pending appointment with one pending response per listed supervisor.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [post]
func (h *AppointmentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.SubmitRequest(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Invite godoc
// @Summary Book a meeting as a supervisor
// @Description Creates an approved appointment on the lecturer's initiative, bypassing consensus.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.InvitePayload true "Invite payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/invite [post]
func (h *AppointmentHandler) Invite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.InvitePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.service.Invite(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// GenerateRecurring godoc
// @Summary Generate recurring supervision sessions
// @Description Expands a session template into a series of auto-approved appointments.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.RecurringTemplate true "Session template"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/recurring [post]
func (h *AppointmentHandler) GenerateRecurring(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var template dto.RecurringTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	count, err := h.recurring.Generate(c.Request.Context(), claims.UserID, template)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"created_count": count})
}

// List godoc
// @Summary List appointments
// @Description Lists the caller's appointments. Coordinators may filter by student or lecturer.
// @Tags Appointments
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.AppointmentFilter
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleLecturer:
		filter.LecturerID = claims.UserID
	default:
		filter.StudentID = c.Query("studentId")
		filter.LecturerID = c.Query("lecturerId")
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.AppointmentStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	appointments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, pagination)
}

// Get godoc
// @Summary Get one appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Logs godoc
// @Summary Get the audit trail of an appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/logs [get]
func (h *AppointmentHandler) Logs(c *gin.Context) {
	logs, err := h.service.Logs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Respond godoc
// @Summary Record a supervisor's decision
// @Description Stores one lecturer's accept/reject decision and returns the resulting global status.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.RespondPayload true "Decision payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/respond [post]
func (h *AppointmentHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RespondPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.RecordResponse(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reschedule godoc
// @Summary Reschedule an appointment
// @Description Moves the meeting window and resets every supervisor response to pending.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.ReschedulePayload true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/reschedule [put]
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReschedulePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	appt, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Complete godoc
// @Summary Mark an approved appointment as completed
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/complete [post]
func (h *AppointmentHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	appt, err := h.service.MarkComplete(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Cancel godoc
// @Summary Cancel an appointment
// @Description Soft-deletes an appointment owned by the calling student.
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Security BearerAuth
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
