package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bimbingan-api/internal/consensus"
	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	"github.com/noah-isme/bimbingan-api/internal/repository"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type appointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	ListLogs(ctx context.Context, appointmentID string) ([]models.AppointmentLog, error)
	Create(ctx context.Context, appt *models.Appointment, responses []models.SupervisorResponse) error
	RecordResponse(ctx context.Context, appointmentID, lecturerID string, status models.ResponseStatus, reason string) (*models.Appointment, consensus.Decision, error)
	Reschedule(ctx context.Context, appointmentID string, newStart, newEnd time.Time, reason, actorID string) (*models.Appointment, error)
	MarkComplete(ctx context.Context, appointmentID string) (*models.Appointment, bool, error)
	SoftDelete(ctx context.Context, appointmentID, studentID string) error
}

type appointmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	SupervisesStudent(ctx context.Context, lecturerID, studentID, semesterID string) (bool, error)
}

type appointmentSemesterRepository interface {
	FindActive(ctx context.Context) (*models.Semester, error)
}

type notificationDispatcher interface {
	Dispatch(event models.NotificationEvent)
}

// AppointmentService drives the appointment lifecycle: student requests,
// lecturer invites, per-supervisor decisions, reschedules, completion and
// cancellation.
type AppointmentService struct {
	repo      appointmentRepository
	users     appointmentUserRepository
	semesters appointmentSemesterRepository
	notifier  notificationDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	now func() time.Time
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(
	repo appointmentRepository,
	users appointmentUserRepository,
	semesters appointmentSemesterRepository,
	notifier notificationDispatcher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AppointmentService{
		repo:      repo,
		users:     users,
		semesters: semesters,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitRequest creates a pending appointment with one pending response per
// listed lecturer, as one atomic unit. Every lecturer must supervise the
// student in the active semester.
func (s *AppointmentService) SubmitRequest(ctx context.Context, studentID string, req dto.SubmitRequestPayload) (*models.AppointmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment request")
	}
	if err := s.validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active semester")
	}

	responses := make([]models.SupervisorResponse, 0, len(req.LecturerIDs))
	for _, lecturerID := range req.LecturerIDs {
		ok, err := s.users.SupervisesStudent(ctx, lecturerID, studentID, semester.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify supervisor assignment")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lecturer %s does not supervise this student", lecturerID))
		}
		responses = append(responses, models.SupervisorResponse{
			LecturerID: lecturerID,
			Status:     models.ResponseStatusPending,
		})
	}

	appt := &models.Appointment{
		StudentID: studentID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
		Mode:      models.AppointmentMode(req.Mode),
		Origin:    models.OriginStudentRequest,
		Status:    models.AppointmentStatusPending,
		Notes:     req.Notes,
	}

	queryStart := time.Now()
	err = s.repo.Create(ctx, appt, responses)
	s.observeQuery("appointment_create", queryStart)
	if err != nil {
		if errors.Is(err, repository.ErrOverlappingAppointment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the requested slot is no longer free")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.observeDecision("submitted")
	s.notifier.Dispatch(models.NotificationEvent{
		RecipientIDs: req.LecturerIDs,
		Title:        "New supervision request",
		Body:         fmt.Sprintf("A student requested a meeting on %s", req.StartTime.Format("Monday, 02 Jan 2006 15:04")),
		SourceLabel:  "appointment_request",
	})

	for i := range responses {
		responses[i].AppointmentID = appt.ID
	}
	return &models.AppointmentDetail{Appointment: *appt, Responses: responses}, nil
}

// Invite books a meeting on a lecturer's initiative. The appointment is
// created approved with the initiator's response pre-accepted: a unilateral
// announcement, not a negotiation.
func (s *AppointmentService) Invite(ctx context.Context, lecturerID string, req dto.InvitePayload) (*models.AppointmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invite payload")
	}
	if err := s.validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active semester")
	}
	ok, err := s.users.SupervisesStudent(ctx, lecturerID, req.StudentID, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify supervisor assignment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not supervise this student")
	}

	now := s.now().UTC()
	appt := &models.Appointment{
		StudentID: req.StudentID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
		Mode:      models.AppointmentMode(req.Mode),
		Origin:    models.OriginLecturerInvite,
		Status:    models.AppointmentStatusApproved,
		Notes:     req.Notes,
	}
	responses := []models.SupervisorResponse{{
		LecturerID:  lecturerID,
		Status:      models.ResponseStatusAccepted,
		RespondedAt: &now,
	}}

	if err := s.repo.Create(ctx, appt, responses); err != nil {
		if errors.Is(err, repository.ErrOverlappingAppointment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the requested slot is no longer free")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.notifier.Dispatch(models.NotificationEvent{
		RecipientIDs: []string{req.StudentID},
		Title:        "Supervision session scheduled",
		Body:         fmt.Sprintf("Your supervisor booked a meeting on %s", req.StartTime.Format("Monday, 02 Jan 2006 15:04")),
		SourceLabel:  "appointment_invite",
	})

	responses[0].AppointmentID = appt.ID
	return &models.AppointmentDetail{Appointment: *appt, Responses: responses}, nil
}

// RecordResponse stores one lecturer's accept/reject decision and returns the
// appointment's resulting global status. A response against an appointment
// already decided is a conflict, not a silent overwrite.
func (s *AppointmentService) RecordResponse(ctx context.Context, appointmentID, lecturerID string, req dto.RespondPayload) (*dto.ConsensusResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	status := models.ResponseStatusAccepted
	if req.Decision == "reject" {
		status = models.ResponseStatusRejected
		if req.Reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection requires a reason")
		}
	}

	queryStart := time.Now()
	appt, decision, err := s.repo.RecordResponse(ctx, appointmentID, lecturerID, status, req.Reason)
	s.observeQuery("appointment_respond", queryStart)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		case errors.Is(err, repository.ErrNotParticipant):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this appointment")
		case errors.Is(err, repository.ErrAlreadyDecided):
			return nil, appErrors.Clone(appErrors.ErrConflict, "the appointment has already been decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record response")
	}

	if decision.Final {
		s.observeDecision(string(decision.Status))
		title := "Supervision request approved"
		if decision.Status == models.AppointmentStatusRejected {
			title = "Supervision request rejected"
		}
		s.notifier.Dispatch(models.NotificationEvent{
			RecipientIDs: []string{appt.StudentID},
			Title:        title,
			Body:         fmt.Sprintf("Your meeting on %s is %s", appt.StartTime.Format("Monday, 02 Jan 2006 15:04"), decision.Status),
			SourceLabel:  "appointment_decision",
		})
	}

	return &dto.ConsensusResult{
		AppointmentID: appointmentID,
		Status:        string(decision.Status),
		Final:         decision.Final,
	}, nil
}

// Reschedule moves an appointment forward in time and reopens its consensus.
// Only the owning student or an assigned supervisor may reschedule.
func (s *AppointmentService) Reschedule(ctx context.Context, appointmentID, requesterID string, req dto.ReschedulePayload) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if err := s.validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	detail, err := s.repo.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if !s.mayTouch(detail, requesterID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student or an assigned supervisor may reschedule")
	}

	appt, err := s.repo.Reschedule(ctx, appointmentID, req.StartTime, req.EndTime, req.Reason, requesterID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		case errors.Is(err, repository.ErrAlreadyDecided):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a decided appointment cannot be rescheduled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule appointment")
	}

	recipients := make([]string, 0, len(detail.Responses)+1)
	for _, resp := range detail.Responses {
		if resp.LecturerID != requesterID {
			recipients = append(recipients, resp.LecturerID)
		}
	}
	if detail.StudentID != requesterID {
		recipients = append(recipients, detail.StudentID)
	}
	s.notifier.Dispatch(models.NotificationEvent{
		RecipientIDs: recipients,
		Title:        "Supervision meeting rescheduled",
		Body:         fmt.Sprintf("The meeting moved to %s: %s", req.StartTime.Format("Monday, 02 Jan 2006 15:04"), req.Reason),
		SourceLabel:  "appointment_reschedule",
	})

	return appt, nil
}

// MarkComplete closes an approved appointment. Completing an already
// completed appointment is benign.
func (s *AppointmentService) MarkComplete(ctx context.Context, appointmentID, requesterID string) (*models.Appointment, error) {
	detail, err := s.repo.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if !s.mayTouch(detail, requesterID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a participant may complete the appointment")
	}

	appt, changed, err := s.repo.MarkComplete(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotApproved) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only approved appointments can be completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete appointment")
	}

	if changed {
		s.observeDecision("completed")
		s.notifier.Dispatch(models.NotificationEvent{
			RecipientIDs: []string{appt.StudentID},
			Title:        "Supervision session completed",
			Body:         fmt.Sprintf("The meeting on %s was marked complete", appt.StartTime.Format("Monday, 02 Jan 2006 15:04")),
			SourceLabel:  "appointment_complete",
		})
	}
	return appt, nil
}

// Cancel soft-deletes an appointment owned by the student.
func (s *AppointmentService) Cancel(ctx context.Context, appointmentID, studentID string) error {
	detail, err := s.repo.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if detail.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owning student may cancel")
	}

	if err := s.repo.SoftDelete(ctx, appointmentID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "the appointment can no longer be cancelled")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel appointment")
	}

	recipients := make([]string, 0, len(detail.Responses))
	for _, resp := range detail.Responses {
		recipients = append(recipients, resp.LecturerID)
	}
	s.notifier.Dispatch(models.NotificationEvent{
		RecipientIDs: recipients,
		Title:        "Supervision request cancelled",
		Body:         fmt.Sprintf("The meeting on %s was cancelled by the student", detail.StartTime.Format("Monday, 02 Jan 2006 15:04")),
		SourceLabel:  "appointment_cancel",
	})
	return nil
}

// Get loads one appointment with its responses.
func (s *AppointmentService) Get(ctx context.Context, appointmentID string) (*models.AppointmentDetail, error) {
	queryStart := time.Now()
	detail, err := s.repo.FindByID(ctx, appointmentID)
	s.observeQuery("appointment_detail", queryStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return detail, nil
}

// List returns appointments matching the filter.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	queryStart := time.Now()
	appointments, total, err := s.repo.List(ctx, filter)
	s.observeQuery("appointment_list", queryStart)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return appointments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Logs returns the append-only audit trail of an appointment.
func (s *AppointmentService) Logs(ctx context.Context, appointmentID string) ([]models.AppointmentLog, error) {
	logs, err := s.repo.ListLogs(ctx, appointmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment logs")
	}
	return logs, nil
}

func (s *AppointmentService) validateWindow(start, end time.Time) error {
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	if !start.After(s.now()) {
		return appErrors.Clone(appErrors.ErrValidation, "start time must be in the future")
	}
	return nil
}

func (s *AppointmentService) mayTouch(detail *models.AppointmentDetail, requesterID string) bool {
	if detail.StudentID == requesterID {
		return true
	}
	for _, resp := range detail.Responses {
		if resp.LecturerID == requesterID {
			return true
		}
	}
	return false
}

func (s *AppointmentService) observeDecision(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAppointmentOutcome(outcome)
	}
}

func (s *AppointmentService) observeQuery(label string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(started))
	}
}
