package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/middleware"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type appointmentServiceMock struct {
	submitResp    *models.AppointmentDetail
	submitErr     error
	respondResp   *dto.ConsensusResult
	respondErr    error
	listResp      []models.Appointment
	cancelErr     error
	lastStudentID string
	lastFilter    models.AppointmentFilter
	submitCalled  bool
	respondCalled bool
	listCalled    bool
	cancelCalled  bool
}

func (m *appointmentServiceMock) SubmitRequest(ctx context.Context, studentID string, req dto.SubmitRequestPayload) (*models.AppointmentDetail, error) {
	m.submitCalled = true
	m.lastStudentID = studentID
	return m.submitResp, m.submitErr
}

func (m *appointmentServiceMock) Invite(ctx context.Context, lecturerID string, req dto.InvitePayload) (*models.AppointmentDetail, error) {
	return m.submitResp, m.submitErr
}

func (m *appointmentServiceMock) RecordResponse(ctx context.Context, appointmentID, lecturerID string, req dto.RespondPayload) (*dto.ConsensusResult, error) {
	m.respondCalled = true
	return m.respondResp, m.respondErr
}

func (m *appointmentServiceMock) Reschedule(ctx context.Context, appointmentID, requesterID string, req dto.ReschedulePayload) (*models.Appointment, error) {
	return &models.Appointment{ID: appointmentID, Status: models.AppointmentStatusPending}, nil
}

func (m *appointmentServiceMock) MarkComplete(ctx context.Context, appointmentID, requesterID string) (*models.Appointment, error) {
	return &models.Appointment{ID: appointmentID, Status: models.AppointmentStatusCompleted}, nil
}

func (m *appointmentServiceMock) Cancel(ctx context.Context, appointmentID, studentID string) error {
	m.cancelCalled = true
	return m.cancelErr
}

func (m *appointmentServiceMock) Get(ctx context.Context, appointmentID string) (*models.AppointmentDetail, error) {
	return &models.AppointmentDetail{Appointment: models.Appointment{ID: appointmentID}}, nil
}

func (m *appointmentServiceMock) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	m.listCalled = true
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func (m *appointmentServiceMock) Logs(ctx context.Context, appointmentID string) ([]models.AppointmentLog, error) {
	return nil, nil
}

type recurringServiceMock struct {
	count  int
	err    error
	called bool
}

func (m *recurringServiceMock) Generate(ctx context.Context, lecturerID string, template dto.RecurringTemplate) (int, error) {
	m.called = true
	return m.count, m.err
}

func newAppointmentTestContext(t *testing.T, method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestAppointmentHandlerSubmit(t *testing.T) {
	mockSvc := &appointmentServiceMock{
		submitResp: &models.AppointmentDetail{Appointment: models.Appointment{ID: "apt-1", Status: models.AppointmentStatusPending}},
	}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	body := `{"lecturer_ids":["lec-1","lec-2"],"start_time":"2025-03-10T09:00:00Z","end_time":"2025-03-10T10:00:00Z","location":"Room 301","mode":"offline"}`
	c, w := newAppointmentTestContext(t, http.MethodPost, "/appointments", body, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
	assert.Equal(t, "stu-1", mockSvc.lastStudentID)
}

func TestAppointmentHandlerSubmitInvalidBody(t *testing.T) {
	mockSvc := &appointmentServiceMock{}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodPost, "/appointments", `{"lecturer_ids":`, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.submitCalled)
}

func TestAppointmentHandlerSubmitWithoutClaims(t *testing.T) {
	handler := NewAppointmentHandler(&appointmentServiceMock{}, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodPost, "/appointments", `{}`, nil)

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAppointmentHandlerListScopesStudentToSelf(t *testing.T) {
	mockSvc := &appointmentServiceMock{}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodGet, "/appointments?studentId=someone-else", "", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	assert.Equal(t, "stu-1", mockSvc.lastFilter.StudentID)
}

func TestAppointmentHandlerListCoordinatorFilters(t *testing.T) {
	mockSvc := &appointmentServiceMock{}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodGet, "/appointments?studentId=stu-9&lecturerId=lec-9&status=approved", "", &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-9", mockSvc.lastFilter.StudentID)
	assert.Equal(t, "lec-9", mockSvc.lastFilter.LecturerID)
	assert.Equal(t, models.AppointmentStatusApproved, mockSvc.lastFilter.Status)
}

func TestAppointmentHandlerRespond(t *testing.T) {
	mockSvc := &appointmentServiceMock{
		respondResp: &dto.ConsensusResult{AppointmentID: "apt-1", Status: string(models.AppointmentStatusRejected), Final: true},
	}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodPost, "/appointments/apt-1/respond", `{"decision":"reject","reason":"schedule conflict"}`, &models.JWTClaims{UserID: "lec-1", Role: models.RoleLecturer})
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Respond(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.respondCalled)
}

func TestAppointmentHandlerRespondConflict(t *testing.T) {
	mockSvc := &appointmentServiceMock{
		respondErr: appErrors.Clone(appErrors.ErrConflict, "appointment already decided"),
	}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodPost, "/appointments/apt-1/respond", `{"decision":"accept"}`, &models.JWTClaims{UserID: "lec-1", Role: models.RoleLecturer})
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Respond(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAppointmentHandlerGenerateRecurring(t *testing.T) {
	mockRecurring := &recurringServiceMock{count: 4}
	handler := NewAppointmentHandler(&appointmentServiceMock{}, mockRecurring)

	body := `{"student_id":"stu-1","book_mode":"recurring","start_date":"2025-03-10","end_date":"2025-05-04","unit":"week","frequency":2,"start_clock":"14:00","end_clock":"15:00","mode":"offline"}`
	c, w := newAppointmentTestContext(t, http.MethodPost, "/appointments/recurring", body, &models.JWTClaims{UserID: "lec-1", Role: models.RoleLecturer})

	handler.GenerateRecurring(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockRecurring.called)
	assert.Contains(t, w.Body.String(), `"created_count":4`)
}

func TestAppointmentHandlerCancel(t *testing.T) {
	mockSvc := &appointmentServiceMock{}
	handler := NewAppointmentHandler(mockSvc, &recurringServiceMock{})

	c, w := newAppointmentTestContext(t, http.MethodDelete, "/appointments/apt-1", "", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Cancel(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.cancelCalled)
}
