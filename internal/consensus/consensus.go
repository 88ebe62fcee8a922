// Package consensus derives an appointment's global status from the set of
// its supervisor responses. The reducer is pure so it can be evaluated inside
// the same transaction as the response write that triggered it.
package consensus

import "github.com/noah-isme/bimbingan-api/internal/models"

// Decision is the outcome of reducing a response set.
type Decision struct {
	Status models.AppointmentStatus
	// Final is true when the status leaves pending and must be written to
	// the appointment. While false the appointment row stays untouched.
	Final bool
}

// Resolve reduces the supervisor responses to a single decision. One
// rejection is absolute regardless of other responses; approval requires
// unanimity. Arrival order does not matter.
func Resolve(responses []models.ResponseStatus) Decision {
	if len(responses) == 0 {
		return Decision{Status: models.AppointmentStatusPending}
	}

	allAccepted := true
	for _, r := range responses {
		switch r {
		case models.ResponseStatusRejected:
			return Decision{Status: models.AppointmentStatusRejected, Final: true}
		case models.ResponseStatusAccepted:
		default:
			allAccepted = false
		}
	}

	if allAccepted {
		return Decision{Status: models.AppointmentStatusApproved, Final: true}
	}
	return Decision{Status: models.AppointmentStatusPending}
}
