package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	"github.com/noah-isme/bimbingan-api/pkg/config"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type mockAvailCalendars struct {
	entries map[string][]models.WeeklyEntry
	calls   map[string]int
}

func (m *mockAvailCalendars) EntriesForDay(ctx context.Context, ownerID string, role models.UserRole, semesterID, dayOfWeek string) ([]models.WeeklyEntry, error) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[ownerID]++
	return m.entries[ownerID+"|"+dayOfWeek], nil
}

type mockAvailAppointments struct {
	busy  map[string][]models.BusyInterval
	calls map[string]int
}

func (m *mockAvailAppointments) BusyIntervals(ctx context.Context, personID string, role models.UserRole, date time.Time) ([]models.BusyInterval, error) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[personID]++
	return m.busy[personID], nil
}

type stubCacheRepo struct {
	entries map[string][]byte
}

func (s *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.entries == nil {
		s.entries = make(map[string][]byte)
	}
	s.entries[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

type mockActiveSemester struct{}

func (m *mockActiveSemester) FindActive(ctx context.Context) (*models.Semester, error) {
	return &models.Semester{ID: "sem-1", Name: "Odd 2024/2025", IsActive: true}, nil
}

func availabilityConfig() config.AppointmentsConfig {
	return config.AppointmentsConfig{
		WorkdayStartHour: 7,
		WorkdayEndHour:   17,
		SlotDuration:     time.Hour,
		OffDay:           time.Sunday,
	}
}

func newAvailabilityService(cal *mockAvailCalendars, appt *mockAvailAppointments, now time.Time) *AvailabilityService {
	s := NewAvailabilityService(cal, appt, &mockActiveSemester{}, nil, nil, nil, nil, availabilityConfig())
	s.now = func() time.Time { return now }
	return s
}

// Monday 2025-03-10: student has class 08:00-10:00, lecturer teaches
// 10:00-11:00. Those three windows must be excluded, the rest kept.
func TestGetAvailableSlotsExcludesBusyWindows(t *testing.T) {
	cal := &mockAvailCalendars{entries: map[string][]models.WeeklyEntry{
		"stu-1|Monday": {{ID: "e1", StartTime: "08:00:00", EndTime: "10:00:00"}},
		"lec-1|Monday": {{ID: "e2", StartTime: "10:00:00", EndTime: "11:00:00"}},
	}}
	appt := &mockAvailAppointments{}
	svc := newAvailabilityService(cal, appt, time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))

	result, _, err := svc.GetAvailableSlots(context.Background(), dto.AvailabilityQuery{
		StudentID:   "stu-1",
		LecturerIDs: []string{"lec-1"},
		Date:        "2025-03-10",
	})
	require.NoError(t, err)
	require.Empty(t, result.Reason)

	starts := make(map[int]bool)
	for _, slot := range result.Slots {
		starts[slot.Start.Hour()] = true
	}
	assert.True(t, starts[7])
	assert.True(t, starts[11])
	assert.False(t, starts[8])
	assert.False(t, starts[9])
	assert.False(t, starts[10])
	assert.Len(t, result.Slots, 7)
}

func TestGetAvailableSlotsOffDay(t *testing.T) {
	cal := &mockAvailCalendars{}
	appt := &mockAvailAppointments{}
	svc := newAvailabilityService(cal, appt, time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))

	result, _, err := svc.GetAvailableSlots(context.Background(), dto.AvailabilityQuery{
		StudentID:   "stu-1",
		LecturerIDs: []string{"lec-1"},
		Date:        "2025-03-09", // Sunday
	})
	require.NoError(t, err)
	assert.Empty(t, result.Slots)
	assert.NotEmpty(t, result.Reason)
	assert.Empty(t, cal.calls)
}

// A fully booked student must short-circuit: no lecturer lookups at all.
func TestGetAvailableSlotsStudentFirstShortCircuit(t *testing.T) {
	cal := &mockAvailCalendars{entries: map[string][]models.WeeklyEntry{
		"stu-1|Monday": {{ID: "e1", StartTime: "07:00:00", EndTime: "17:00:00"}},
	}}
	appt := &mockAvailAppointments{}
	svc := newAvailabilityService(cal, appt, time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))

	result, _, err := svc.GetAvailableSlots(context.Background(), dto.AvailabilityQuery{
		StudentID:   "stu-1",
		LecturerIDs: []string{"lec-1", "lec-2"},
		Date:        "2025-03-10",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Slots)
	assert.Zero(t, cal.calls["lec-1"])
	assert.Zero(t, cal.calls["lec-2"])
	assert.Zero(t, appt.calls["lec-1"])
}

func TestGetAvailableSlotsSameDayCutoff(t *testing.T) {
	cal := &mockAvailCalendars{}
	appt := &mockAvailAppointments{}
	svc := newAvailabilityService(cal, appt, time.Date(2025, 3, 10, 9, 30, 0, 0, time.Local))

	result, _, err := svc.GetAvailableSlots(context.Background(), dto.AvailabilityQuery{
		StudentID:   "stu-1",
		LecturerIDs: []string{"lec-1"},
		Date:        "2025-03-10",
	})
	require.NoError(t, err)
	for _, slot := range result.Slots {
		assert.Greater(t, slot.Start.Hour(), 9)
	}
	assert.Len(t, result.Slots, 7) // 10:00 through 16:00
}

func TestGetAvailableSlotsPendingAppointmentBlocks(t *testing.T) {
	cal := &mockAvailCalendars{}
	hold := time.Date(2025, 3, 10, 13, 0, 0, 0, time.Local)
	appt := &mockAvailAppointments{busy: map[string][]models.BusyInterval{
		"lec-1": {{Start: hold, End: hold.Add(time.Hour)}},
	}}
	svc := newAvailabilityService(cal, appt, time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))

	result, _, err := svc.GetAvailableSlots(context.Background(), dto.AvailabilityQuery{
		StudentID:   "stu-1",
		LecturerIDs: []string{"lec-1"},
		Date:        "2025-03-10",
	})
	require.NoError(t, err)
	for _, slot := range result.Slots {
		assert.NotEqual(t, 13, slot.Start.Hour())
	}
	assert.Len(t, result.Slots, 9)
}

// The first call computes and stores the result; the second must come back
// from cache without touching the calendar repositories again.
func TestGetAvailableSlotsSecondCallServedFromCache(t *testing.T) {
	cal := &mockAvailCalendars{}
	appt := &mockAvailAppointments{}
	svc := newAvailabilityService(cal, appt, time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local))
	svc.cache = NewCacheService(&stubCacheRepo{}, nil, time.Minute, nil, true)

	query := dto.AvailabilityQuery{
		StudentID:   "stu-1",
		LecturerIDs: []string{"lec-1"},
		Date:        "2025-03-10",
	}

	first, hit, err := svc.GetAvailableSlots(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.GetAvailableSlots(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, second.Slots, len(first.Slots))
	assert.Equal(t, 1, cal.calls["stu-1"])
	assert.Equal(t, 1, appt.calls["lec-1"])
}

func TestGetAvailableSlotsRequiresLecturers(t *testing.T) {
	svc := newAvailabilityService(&mockAvailCalendars{}, &mockAvailAppointments{}, time.Now())

	_, _, err := svc.GetAvailableSlots(context.Background(), dto.AvailabilityQuery{
		StudentID: "stu-1",
		Date:      "2025-03-10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
