package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bimbingan-api/internal/models"
)

// CalendarRepository persists the fixed weekly schedules that block
// availability slots. Students and lecturers keep their entries in separate
// tables with the same shape.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func scheduleTable(role models.UserRole) string {
	if role == models.RoleLecturer {
		return "lecturer_schedules"
	}
	return "student_schedules"
}

const weeklyEntryColumns = "id, owner_id, semester_id, day_of_week, start_time, end_time, label, is_deleted, created_at"

// ListForOwner returns a person's live weekly entries for one semester,
// ordered by weekday and start time.
func (r *CalendarRepository) ListForOwner(ctx context.Context, ownerID string, role models.UserRole, semesterID string) ([]models.WeeklyEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 AND semester_id = $2 AND is_deleted = FALSE ORDER BY day_of_week ASC, start_time ASC`, weeklyEntryColumns, scheduleTable(role))
	var entries []models.WeeklyEntry
	if err := r.db.SelectContext(ctx, &entries, query, ownerID, semesterID); err != nil {
		return nil, fmt.Errorf("list weekly entries: %w", err)
	}
	return entries, nil
}

// EntriesForDay returns a person's live entries on one weekday. Weekday names
// are stored in English ("Monday").
func (r *CalendarRepository) EntriesForDay(ctx context.Context, ownerID string, role models.UserRole, semesterID, dayOfWeek string) ([]models.WeeklyEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 AND semester_id = $2 AND day_of_week = $3 AND is_deleted = FALSE ORDER BY start_time ASC`, weeklyEntryColumns, scheduleTable(role))
	var entries []models.WeeklyEntry
	if err := r.db.SelectContext(ctx, &entries, query, ownerID, semesterID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list weekday entries: %w", err)
	}
	return entries, nil
}

// ReplaceForOwner swaps a person's full weekly schedule for one semester:
// every live entry is soft-deleted and the new set inserted, atomically.
func (r *CalendarRepository) ReplaceForOwner(ctx context.Context, ownerID string, role models.UserRole, semesterID string, entries []models.WeeklyEntry) error {
	table := scheduleTable(role)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET is_deleted = TRUE WHERE owner_id = $1 AND semester_id = $2 AND is_deleted = FALSE`, table),
		ownerID, semesterID); err != nil {
		err = fmt.Errorf("retire weekly entries: %w", err)
		return err
	}

	now := time.Now().UTC()
	insert := fmt.Sprintf(`INSERT INTO %s (id, owner_id, semester_id, day_of_week, start_time, end_time, label, is_deleted, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`, table)
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.OwnerID = ownerID
		entry.SemesterID = semesterID
		entry.CreatedAt = now
		if _, err = tx.ExecContext(ctx, insert,
			entry.ID, entry.OwnerID, entry.SemesterID, entry.DayOfWeek,
			entry.StartTime, entry.EndTime, entry.Label, entry.CreatedAt); err != nil {
			err = fmt.Errorf("insert weekly entry: %w", err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace schedule: %w", err)
	}
	return nil
}
