package dto

import "time"

// SubmitRequestPayload is a student's appointment request covering all of the
// assigned supervisors.
type SubmitRequestPayload struct {
	LecturerIDs []string  `json:"lecturerIds" validate:"required,min=1,dive,required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	Location    string    `json:"location" validate:"required"`
	Mode        string    `json:"mode" validate:"required,oneof=online offline"`
	Notes       string    `json:"notes"`
}

// InvitePayload is a lecturer's unilateral booking of a supervised student.
type InvitePayload struct {
	StudentID string    `json:"studentId" validate:"required"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Location  string    `json:"location" validate:"required"`
	Mode      string    `json:"mode" validate:"required,oneof=online offline"`
	Notes     string    `json:"notes"`
}

// RespondPayload carries one lecturer's decision on a pending appointment.
type RespondPayload struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
	Reason   string `json:"reason" validate:"max=500"`
}

// ReschedulePayload moves an appointment to a new window.
type ReschedulePayload struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

// ConsensusResult reports the appointment's global status after a response.
type ConsensusResult struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
	Final         bool   `json:"final"`
}
