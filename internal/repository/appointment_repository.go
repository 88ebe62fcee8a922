package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bimbingan-api/internal/consensus"
	"github.com/noah-isme/bimbingan-api/internal/models"
)

// Sentinel errors surfaced by the transactional appointment flows. Services
// translate them into the API error taxonomy.
var (
	// ErrOverlappingAppointment signals the requested window is no longer
	// free for one of the participants at submission time.
	ErrOverlappingAppointment = errors.New("overlapping appointment exists")
	// ErrAlreadyDecided signals a write against a terminal appointment.
	ErrAlreadyDecided = errors.New("appointment already in a terminal state")
	// ErrNotApproved signals completion of a non-approved appointment.
	ErrNotApproved = errors.New("appointment is not approved")
	// ErrNotParticipant signals a response from a lecturer with no row on
	// the appointment.
	ErrNotParticipant = errors.New("lecturer is not assigned to the appointment")
)

const appointmentColumns = "id, student_id, start_time, end_time, location, mode, origin, status, notes, is_deleted, created_at, updated_at"

// AppointmentRepository provides persistence for appointments, their
// supervisor responses and the append-only audit trail. Every multi-step
// mutation runs as a single transaction.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindByID loads a non-cancelled appointment together with its responses.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1 AND is_deleted = FALSE", appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}

	responses, err := r.ListResponses(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AppointmentDetail{Appointment: appt, Responses: responses}, nil
}

// ListResponses returns all supervisor response rows for an appointment.
func (r *AppointmentRepository) ListResponses(ctx context.Context, appointmentID string) ([]models.SupervisorResponse, error) {
	const query = `SELECT al.appointment_id, al.lecturer_id, u.full_name, al.response_status, al.responded_at
		FROM appointment_lecturers al
		JOIN users u ON u.id = al.lecturer_id
		WHERE al.appointment_id = $1
		ORDER BY al.lecturer_id ASC`
	var responses []models.SupervisorResponse
	if err := r.db.SelectContext(ctx, &responses, query, appointmentID); err != nil {
		return nil, fmt.Errorf("list supervisor responses: %w", err)
	}
	return responses, nil
}

// ListLogs returns the audit trail for an appointment, oldest first.
func (r *AppointmentRepository) ListLogs(ctx context.Context, appointmentID string) ([]models.AppointmentLog, error) {
	const query = `SELECT id, appointment_id, actor_id, action, reason, created_at FROM appointment_logs WHERE appointment_id = $1 ORDER BY created_at ASC`
	var logs []models.AppointmentLog
	if err := r.db.SelectContext(ctx, &logs, query, appointmentID); err != nil {
		return nil, fmt.Errorf("list appointment logs: %w", err)
	}
	return logs, nil
}

// List returns appointments matching the filter with a total count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments a WHERE a.is_deleted = FALSE"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.LecturerID != "" {
		conditions = append(conditions, fmt.Sprintf("a.id IN (SELECT appointment_id FROM appointment_lecturers WHERE lecturer_id = $%d)", len(args)+1))
		args = append(args, filter.LecturerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	cols := strings.ReplaceAll(appointmentColumns, ", ", ", a.")
	names := `COALESCE((SELECT string_agg(u.full_name, ', ' ORDER BY u.full_name)
		FROM appointment_lecturers al JOIN users u ON u.id = al.lecturer_id
		WHERE al.appointment_id = a.id), '') AS lecturer_names`
	query := fmt.Sprintf("SELECT a.%s, %s %s ORDER BY a.start_time ASC LIMIT %d OFFSET %d", cols, names, base, size, offset)
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appointments, total, nil
}

// BusyIntervals returns the appointment-derived busy ranges for a person on
// one date. Pending holds block a slot just like approved meetings; rejected,
// completed and cancelled appointments do not.
func (r *AppointmentRepository) BusyIntervals(ctx context.Context, personID string, role models.UserRole, date time.Time) ([]models.BusyInterval, error) {
	var query string
	switch role {
	case models.RoleLecturer:
		query = `SELECT a.start_time, a.end_time FROM appointments a
			JOIN appointment_lecturers al ON a.id = al.appointment_id
			WHERE al.lecturer_id = $1 AND DATE(a.start_time) = $2
			AND a.is_deleted = FALSE AND a.status IN ('pending', 'approved')
			ORDER BY a.start_time ASC`
	default:
		query = `SELECT start_time, end_time FROM appointments
			WHERE student_id = $1 AND DATE(start_time) = $2
			AND is_deleted = FALSE AND status IN ('pending', 'approved')
			ORDER BY start_time ASC`
	}

	rows, err := r.db.QueryxContext(ctx, query, personID, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query busy appointments: %w", err)
	}
	defer rows.Close()

	var intervals []models.BusyInterval
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("scan busy appointment: %w", err)
		}
		intervals = append(intervals, models.BusyInterval{Start: start, End: end})
	}
	return intervals, rows.Err()
}

// Create inserts an appointment and its full supervisor response set as one
// atomic unit, re-checking the window against every participant first. The
// response set is fixed here and never grows or shrinks afterwards.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment, responses []models.SupervisorResponse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create appointment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.ensureWindowFree(ctx, tx, appt, responses); err != nil {
		return err
	}

	if err = r.insertAppointment(ctx, tx, appt, responses); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create appointment: %w", err)
	}
	return nil
}

// BulkCreateApproved inserts a series of auto-approved lecturer-initiated
// appointments in one transaction. Used by the recurring generator.
func (r *AppointmentRepository) BulkCreateApproved(ctx context.Context, appts []models.Appointment, lecturerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create appointments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range appts {
		responses := []models.SupervisorResponse{{
			LecturerID:  lecturerID,
			Status:      models.ResponseStatusAccepted,
			RespondedAt: &now,
		}}
		if err = r.ensureWindowFree(ctx, tx, &appts[i], responses); err != nil {
			return err
		}
		if err = r.insertAppointment(ctx, tx, &appts[i], responses); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create appointments: %w", err)
	}
	return nil
}

// RecordResponse stores one lecturer's decision and reduces the full response
// set to the appointment's next global status inside the same transaction.
// The row lock serializes concurrent decisions on the same appointment.
func (r *AppointmentRepository) RecordResponse(ctx context.Context, appointmentID, lecturerID string, status models.ResponseStatus, reason string) (*models.Appointment, consensus.Decision, error) {
	var decision consensus.Decision

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, decision, fmt.Errorf("begin record response: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	appt, err := r.lockAppointment(ctx, tx, appointmentID)
	if err != nil {
		return nil, decision, err
	}
	if appt.Status.Terminal() {
		err = ErrAlreadyDecided
		return nil, decision, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE appointment_lecturers SET response_status = $1, responded_at = $2 WHERE appointment_id = $3 AND lecturer_id = $4`,
		status, now, appointmentID, lecturerID)
	if err != nil {
		err = fmt.Errorf("update supervisor response: %w", err)
		return nil, decision, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = ErrNotParticipant
		return nil, decision, err
	}

	var statuses []models.ResponseStatus
	if err = tx.SelectContext(ctx, &statuses,
		`SELECT response_status FROM appointment_lecturers WHERE appointment_id = $1`, appointmentID); err != nil {
		err = fmt.Errorf("read response set: %w", err)
		return nil, decision, err
	}

	decision = consensus.Resolve(statuses)
	if decision.Final {
		if _, err = tx.ExecContext(ctx,
			`UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`,
			decision.Status, now, appointmentID); err != nil {
			err = fmt.Errorf("write consensus status: %w", err)
			return nil, decision, err
		}
		appt.Status = decision.Status
		appt.UpdatedAt = now
	}

	if status == models.ResponseStatusRejected && reason != "" {
		if err = r.appendLog(ctx, tx, appointmentID, lecturerID, models.LogActionRejected, reason, now); err != nil {
			return nil, decision, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit record response: %w", err)
		return nil, decision, err
	}
	return appt, decision, nil
}

// Reschedule moves an appointment and reopens its consensus: the new window
// is written, the global status forced back to pending, the reason appended
// to the audit trail and every supervisor response reset. All or nothing.
func (r *AppointmentRepository) Reschedule(ctx context.Context, appointmentID string, newStart, newEnd time.Time, reason, actorID string) (*models.Appointment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	appt, err := r.lockAppointment(ctx, tx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		err = ErrAlreadyDecided
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`UPDATE appointments SET start_time = $1, end_time = $2, status = $3, updated_at = $4 WHERE id = $5`,
		newStart, newEnd, models.AppointmentStatusPending, now, appointmentID); err != nil {
		err = fmt.Errorf("update appointment window: %w", err)
		return nil, err
	}

	if err = r.appendLog(ctx, tx, appointmentID, actorID, models.LogActionRescheduled, reason, now); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE appointment_lecturers SET response_status = $1, responded_at = NULL WHERE appointment_id = $2`,
		models.ResponseStatusPending, appointmentID); err != nil {
		err = fmt.Errorf("reset supervisor responses: %w", err)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}

	appt.StartTime = newStart
	appt.EndTime = newEnd
	appt.Status = models.AppointmentStatusPending
	appt.UpdatedAt = now
	return appt, nil
}

// MarkComplete finishes an approved appointment. Completing an already
// completed appointment is a benign no-op; the bool reports whether a state
// change happened.
func (r *AppointmentRepository) MarkComplete(ctx context.Context, appointmentID string) (*models.Appointment, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin mark complete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	appt, err := r.lockAppointment(ctx, tx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	if appt.Status == models.AppointmentStatusCompleted {
		_ = tx.Rollback()
		return appt, false, nil
	}
	if appt.Status != models.AppointmentStatusApproved {
		err = ErrNotApproved
		return nil, false, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`,
		models.AppointmentStatusCompleted, now, appointmentID); err != nil {
		err = fmt.Errorf("mark appointment complete: %w", err)
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit mark complete: %w", err)
	}

	appt.Status = models.AppointmentStatusCompleted
	appt.UpdatedAt = now
	return appt, true, nil
}

// SoftDelete cancels an appointment owned by the given student. Cancelled
// rows are excluded from every availability and listing query but never
// physically removed.
func (r *AppointmentRepository) SoftDelete(ctx context.Context, appointmentID, studentID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel appointment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE appointments SET is_deleted = TRUE, updated_at = $1 WHERE id = $2 AND student_id = $3 AND is_deleted = FALSE AND status != $4`,
		now, appointmentID, studentID, models.AppointmentStatusCompleted)
	if err != nil {
		err = fmt.Errorf("cancel appointment: %w", err)
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = r.appendLog(ctx, tx, appointmentID, studentID, models.LogActionCancelled, "", now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) lockAppointment(ctx context.Context, tx *sqlx.Tx, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1 AND is_deleted = FALSE FOR UPDATE", appointmentColumns)
	var appt models.Appointment
	if err := tx.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *AppointmentRepository) ensureWindowFree(ctx context.Context, tx *sqlx.Tx, appt *models.Appointment, responses []models.SupervisorResponse) error {
	const studentQuery = `SELECT COUNT(*) FROM appointments
		WHERE student_id = $1 AND is_deleted = FALSE AND status IN ('pending', 'approved')
		AND start_time < $3 AND end_time > $2`
	var count int
	if err := tx.GetContext(ctx, &count, studentQuery, appt.StudentID, appt.StartTime, appt.EndTime); err != nil {
		return fmt.Errorf("check student conflicts: %w", err)
	}
	if count > 0 {
		return ErrOverlappingAppointment
	}

	const lecturerQuery = `SELECT COUNT(*) FROM appointments a
		JOIN appointment_lecturers al ON a.id = al.appointment_id
		WHERE al.lecturer_id = $1 AND a.is_deleted = FALSE AND a.status IN ('pending', 'approved')
		AND a.start_time < $3 AND a.end_time > $2`
	for _, resp := range responses {
		if err := tx.GetContext(ctx, &count, lecturerQuery, resp.LecturerID, appt.StartTime, appt.EndTime); err != nil {
			return fmt.Errorf("check lecturer conflicts: %w", err)
		}
		if count > 0 {
			return ErrOverlappingAppointment
		}
	}
	return nil
}

func (r *AppointmentRepository) insertAppointment(ctx context.Context, tx *sqlx.Tx, appt *models.Appointment, responses []models.SupervisorResponse) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	const query = `INSERT INTO appointments (id, student_id, start_time, end_time, location, mode, origin, status, notes, is_deleted, created_at, updated_at)
		VALUES (:id, :student_id, :start_time, :end_time, :location, :mode, :origin, :status, :notes, :is_deleted, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, appt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	for _, resp := range responses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO appointment_lecturers (appointment_id, lecturer_id, response_status, responded_at) VALUES ($1, $2, $3, $4)`,
			appt.ID, resp.LecturerID, resp.Status, resp.RespondedAt); err != nil {
			return fmt.Errorf("insert supervisor response: %w", err)
		}
	}
	return nil
}

func (r *AppointmentRepository) appendLog(ctx context.Context, tx *sqlx.Tx, appointmentID, actorID, action, reason string, at time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO appointment_logs (id, appointment_id, actor_id, action, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), appointmentID, actorID, action, reason, at); err != nil {
		return fmt.Errorf("append appointment log: %w", err)
	}
	return nil
}
