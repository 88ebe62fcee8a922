package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/middleware"
	"github.com/noah-isme/bimbingan-api/internal/models"
)

type availabilityServiceMock struct {
	resp      *models.AvailabilityResult
	hit       bool
	err       error
	lastQuery dto.AvailabilityQuery
	called    bool
}

func (m *availabilityServiceMock) GetAvailableSlots(ctx context.Context, query dto.AvailabilityQuery) (*models.AvailabilityResult, bool, error) {
	m.called = true
	m.lastQuery = query
	return m.resp, m.hit, m.err
}

func TestAvailabilityHandlerGetSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mockSvc := &availabilityServiceMock{
		resp: &models.AvailabilityResult{
			Date:  "2025-03-10",
			Slots: []models.Slot{{Start: start, End: start.Add(time.Hour)}},
		},
	}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/slots?date=2025-03-10&lecturerIds=lec-1,%20lec-2&studentId=stu-9", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.GetSlots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.called)
	assert.Equal(t, "stu-9", mockSvc.lastQuery.StudentID)
	assert.Equal(t, []string{"lec-1", "lec-2"}, mockSvc.lastQuery.LecturerIDs)
	assert.Equal(t, "2025-03-10", mockSvc.lastQuery.Date)
}

func TestAvailabilityHandlerStudentIgnoresForeignStudentID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{resp: &models.AvailabilityResult{Date: "2025-03-10"}}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/slots?date=2025-03-10&lecturerIds=lec-1&studentId=someone-else", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.GetSlots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mockSvc.lastQuery.StudentID)
}

func TestAvailabilityHandlerReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{resp: &models.AvailabilityResult{Date: "2025-03-10"}, hit: true}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/slots?date=2025-03-10&lecturerIds=lec-1&studentId=stu-9", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.GetSlots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)
	assert.Contains(t, w.Body.String(), "processing_time_ms")
}

func TestAvailabilityHandlerRequiresStudentID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/slots?date=2025-03-10&lecturerIds=lec-1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "lec-1", Role: models.RoleLecturer})

	handler.GetSlots(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}
