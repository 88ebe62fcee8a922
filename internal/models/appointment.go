package models

import "time"

// AppointmentStatus is the global lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusApproved  AppointmentStatus = "approved"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further consensus transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusRejected || s == AppointmentStatusCompleted
}

// ResponseStatus is one supervisor's individual decision state.
type ResponseStatus string

const (
	ResponseStatusPending  ResponseStatus = "pending"
	ResponseStatusAccepted ResponseStatus = "accepted"
	ResponseStatusRejected ResponseStatus = "rejected"
)

// AppointmentMode distinguishes online and on-site meetings.
type AppointmentMode string

const (
	ModeOnline  AppointmentMode = "online"
	ModeOffline AppointmentMode = "offline"
)

// AppointmentOrigin records which party initiated the appointment.
type AppointmentOrigin string

const (
	OriginStudentRequest AppointmentOrigin = "student_request"
	OriginLecturerInvite AppointmentOrigin = "lecturer_invite"
)

// Appointment represents one proposed or confirmed supervision meeting.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	StudentID string            `db:"student_id" json:"student_id"`
	StartTime time.Time         `db:"start_time" json:"start_time"`
	EndTime   time.Time         `db:"end_time" json:"end_time"`
	Location  string            `db:"location" json:"location"`
	Mode      AppointmentMode   `db:"mode" json:"mode"`
	Origin    AppointmentOrigin `db:"origin" json:"origin"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     string            `db:"notes" json:"notes"`
	IsDeleted bool              `db:"is_deleted" json:"-"`

	// Populated by listing queries only.
	LecturerNames string `db:"lecturer_names" json:"lecturer_names,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// SupervisorResponse is one lecturer's row on an appointment. The set of rows
// is fixed at creation; only response_status changes afterwards.
type SupervisorResponse struct {
	AppointmentID string         `db:"appointment_id" json:"appointment_id"`
	LecturerID    string         `db:"lecturer_id" json:"lecturer_id"`
	LecturerName  string         `db:"full_name" json:"lecturer_name,omitempty"`
	Status        ResponseStatus `db:"response_status" json:"response_status"`
	RespondedAt   *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
}

// AppointmentDetail is an appointment joined with its supervisor responses.
type AppointmentDetail struct {
	Appointment
	Responses []SupervisorResponse `json:"responses"`
}

// AppointmentLog is one entry of the append-only audit trail for an
// appointment. Entries are never updated or removed.
type AppointmentLog struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID string    `db:"appointment_id" json:"appointment_id"`
	ActorID       string    `db:"actor_id" json:"actor_id"`
	Action        string    `db:"action" json:"action"`
	Reason        string    `db:"reason" json:"reason"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Audit trail actions.
const (
	LogActionRescheduled = "rescheduled"
	LogActionRejected    = "rejected"
	LogActionCancelled   = "cancelled"
)

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	StudentID  string
	LecturerID string
	Status     AppointmentStatus
	Page       int
	PageSize   int
}
