package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/models"
)

func TestEntriesForDayUsesRoleTable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "semester_id", "day_of_week", "start_time", "end_time", "label", "is_deleted", "created_at"}).
		AddRow("e1", "lec-1", "sem-1", "Monday", "08:00:00", "10:00:00", "Algorithms", false, time.Now())
	mock.ExpectQuery("SELECT .+ FROM lecturer_schedules WHERE owner_id").
		WithArgs("lec-1", "sem-1", "Monday").
		WillReturnRows(rows)

	entries, err := repo.EntriesForDay(context.Background(), "lec-1", models.RoleLecturer, "sem-1", "Monday")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "08:00:00", entries[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForOwnerCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	entries := []models.WeeklyEntry{
		{DayOfWeek: "Monday", StartTime: "08:00:00", EndTime: "10:00:00", Label: "Databases"},
		{DayOfWeek: "Wednesday", StartTime: "13:00:00", EndTime: "15:00:00", Label: "Networks"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE student_schedules SET is_deleted = TRUE").
		WithArgs("stu-1", "sem-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO student_schedules").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_schedules").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForOwner(context.Background(), "stu-1", models.RoleStudent, "sem-1", entries)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", entries[0].OwnerID)
	assert.NotEmpty(t, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForOwnerInsertFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE student_schedules SET is_deleted = TRUE").
		WithArgs("stu-1", "sem-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO student_schedules").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ReplaceForOwner(context.Background(), "stu-1", models.RoleStudent, "sem-1", []models.WeeklyEntry{
		{DayOfWeek: "Friday", StartTime: "09:00:00", EndTime: "11:00:00"},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
