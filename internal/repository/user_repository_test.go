package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bimbingan-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("1", "student@example.com", "hash", "Student", string(models.RoleStudent), true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("student@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupervisorsByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"lecturer_id", "full_name", "role"}).
		AddRow("lec-1", "Dr. Primary", string(models.SupervisorPrimary)).
		AddRow("lec-2", "Dr. Secondary", string(models.SupervisorSecondary))
	mock.ExpectQuery("SELECT ts.lecturer_id, u.full_name, ts.role").
		WithArgs("stu-1", "sem-1").
		WillReturnRows(rows)

	supervisors, err := repo.SupervisorsByStudent(context.Background(), "stu-1", "sem-1")
	require.NoError(t, err)
	require.Len(t, supervisors, 2)
	assert.Equal(t, models.SupervisorPrimary, supervisors[0].Role)
	assert.Equal(t, "lec-2", supervisors[1].LecturerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupervisesStudentNoRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT 1 FROM thesis_supervisors").
		WithArgs("lec-9", "stu-1", "sem-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	ok, err := repo.SupervisesStudent(context.Background(), "lec-9", "stu-1", "sem-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
