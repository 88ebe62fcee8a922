package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type mockCalendarRepo struct {
	entries  []models.WeeklyEntry
	replaced []models.WeeklyEntry
	owner    string
	semester string
}

func (m *mockCalendarRepo) ListForOwner(ctx context.Context, ownerID string, role models.UserRole, semesterID string) ([]models.WeeklyEntry, error) {
	return m.entries, nil
}

func (m *mockCalendarRepo) ReplaceForOwner(ctx context.Context, ownerID string, role models.UserRole, semesterID string, entries []models.WeeklyEntry) error {
	m.replaced = entries
	m.owner = ownerID
	m.semester = semesterID
	return nil
}

func TestReplaceScheduleScopesToActiveSemester(t *testing.T) {
	repo := &mockCalendarRepo{}
	svc := NewCalendarService(repo, &mockActiveSemester{}, nil, nil, nil)

	entries, err := svc.ReplaceSchedule(context.Background(), "stu-1", models.RoleStudent, dto.ReplaceSchedulePayload{
		Entries: []dto.WeeklyEntryPayload{
			{DayOfWeek: "Monday", StartTime: "08:00:00", EndTime: "10:00:00", Label: "Databases"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "stu-1", repo.owner)
	assert.Equal(t, "sem-1", repo.semester)
	require.Len(t, repo.replaced, 1)
	assert.Equal(t, "Monday", repo.replaced[0].DayOfWeek)
}

func TestReplaceScheduleRejectsInvertedEntry(t *testing.T) {
	svc := NewCalendarService(&mockCalendarRepo{}, &mockActiveSemester{}, nil, nil, nil)

	_, err := svc.ReplaceSchedule(context.Background(), "stu-1", models.RoleStudent, dto.ReplaceSchedulePayload{
		Entries: []dto.WeeklyEntryPayload{
			{DayOfWeek: "Monday", StartTime: "10:00:00", EndTime: "08:00:00"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWeeklyScheduleReadsActiveSemester(t *testing.T) {
	repo := &mockCalendarRepo{entries: []models.WeeklyEntry{{ID: "e1", DayOfWeek: "Friday"}}}
	svc := NewCalendarService(repo, &mockActiveSemester{}, nil, nil, nil)

	entries, err := svc.WeeklySchedule(context.Background(), "lec-1", models.RoleLecturer)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Friday", entries[0].DayOfWeek)
}
