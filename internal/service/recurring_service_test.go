package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type mockRecurringRepo struct {
	created    []models.Appointment
	lecturerID string
}

func (m *mockRecurringRepo) BulkCreateApproved(ctx context.Context, appts []models.Appointment, lecturerID string) error {
	m.created = appts
	m.lecturerID = lecturerID
	return nil
}

func weeklyTemplate() dto.RecurringTemplate {
	return dto.RecurringTemplate{
		StudentID:  "stu-1",
		BookMode:   "recurring",
		StartDate:  "2025-03-10", // Monday
		EndDate:    "2025-05-04",
		Weekday:    "Monday",
		Unit:       "week",
		Frequency:  2,
		StartClock: "14:00",
		EndClock:   "15:00",
		Location:   "Room 202",
		Mode:       "offline",
	}
}

// unit=week, frequency=2, 8 weeks from a Monday: exactly 4 occurrences, all
// Mondays, 14 days apart.
func TestGenerateBiweeklyProducesFourMondays(t *testing.T) {
	repo := &mockRecurringRepo{}
	users := &mockUserRepo{supervises: map[string]bool{"lec-1|stu-1": true}}
	notifier := &mockNotifier{}
	svc := NewRecurringService(repo, users, &mockActiveSemester{}, notifier, nil, nil)

	count, err := svc.Generate(context.Background(), "lec-1", weeklyTemplate())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.Len(t, repo.created, 4)

	expected := []string{"2025-03-10", "2025-03-24", "2025-04-07", "2025-04-21"}
	for i, appt := range repo.created {
		assert.Equal(t, time.Monday, appt.StartTime.Weekday())
		assert.Equal(t, models.AppointmentStatusApproved, appt.Status)
		assert.Equal(t, models.OriginLecturerInvite, appt.Origin)
		assert.Equal(t, 14, appt.StartTime.Hour())
		assert.Equal(t, expected[i], appt.StartTime.Format("2006-01-02"))
	}
	assert.Equal(t, "lec-1", repo.lecturerID)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, []string{"stu-1"}, notifier.events[0].RecipientIDs)
}

func TestGenerateMonthlySteps(t *testing.T) {
	repo := &mockRecurringRepo{}
	users := &mockUserRepo{supervises: map[string]bool{"lec-1|stu-1": true}}
	svc := NewRecurringService(repo, users, &mockActiveSemester{}, &mockNotifier{}, nil, nil)

	template := weeklyTemplate()
	template.Unit = "month"
	template.Frequency = 1
	template.EndDate = "2025-06-15"

	count, err := svc.Generate(context.Background(), "lec-1", template)
	require.NoError(t, err)
	assert.Equal(t, 4, count) // Mar 10, Apr 10, May 10, Jun 10
	for _, appt := range repo.created {
		assert.Equal(t, 10, appt.StartTime.Day())
	}
}

func TestGenerateSingleMode(t *testing.T) {
	repo := &mockRecurringRepo{}
	users := &mockUserRepo{supervises: map[string]bool{"lec-1|stu-1": true}}
	svc := NewRecurringService(repo, users, &mockActiveSemester{}, &mockNotifier{}, nil, nil)

	template := weeklyTemplate()
	template.BookMode = "single"
	template.EndDate = ""
	template.Unit = ""
	template.Frequency = 0

	count, err := svc.Generate(context.Background(), "lec-1", template)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGenerateEmptyExpansionIsError(t *testing.T) {
	repo := &mockRecurringRepo{}
	users := &mockUserRepo{supervises: map[string]bool{"lec-1|stu-1": true}}
	svc := NewRecurringService(repo, users, &mockActiveSemester{}, &mockNotifier{}, nil, nil)

	template := weeklyTemplate()
	template.Weekday = "Tuesday"
	template.EndDate = "2025-03-10" // only a Monday in range

	_, err := svc.Generate(context.Background(), "lec-1", template)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestParseWeekdayName(t *testing.T) {
	day, err := parseWeekdayName("Wednesday")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, day)

	_, err = parseWeekdayName("Midweek")
	assert.Error(t, err)
}

func TestExpandRejectsUnknownWeekday(t *testing.T) {
	svc := NewRecurringService(&mockRecurringRepo{}, &mockUserRepo{}, &mockActiveSemester{}, &mockNotifier{}, nil, nil)

	template := weeklyTemplate()
	template.Weekday = "Mondayy"

	_, err := svc.expand(template, time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateForbiddenForNonSupervisor(t *testing.T) {
	repo := &mockRecurringRepo{}
	svc := NewRecurringService(repo, &mockUserRepo{}, &mockActiveSemester{}, &mockNotifier{}, nil, nil)

	_, err := svc.Generate(context.Background(), "lec-1", weeklyTemplate())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
