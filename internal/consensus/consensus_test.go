package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/bimbingan-api/internal/models"
)

func TestResolve(t *testing.T) {
	pending := models.ResponseStatusPending
	accepted := models.ResponseStatusAccepted
	rejected := models.ResponseStatusRejected

	cases := []struct {
		name      string
		responses []models.ResponseStatus
		status    models.AppointmentStatus
		final     bool
	}{
		{"single pending", []models.ResponseStatus{pending}, models.AppointmentStatusPending, false},
		{"single accepted", []models.ResponseStatus{accepted}, models.AppointmentStatusApproved, true},
		{"single rejected", []models.ResponseStatus{rejected}, models.AppointmentStatusRejected, true},
		{"one of two accepted", []models.ResponseStatus{accepted, pending}, models.AppointmentStatusPending, false},
		{"both accepted", []models.ResponseStatus{accepted, accepted}, models.AppointmentStatusApproved, true},
		{"rejection vetoes acceptance", []models.ResponseStatus{accepted, rejected}, models.AppointmentStatusRejected, true},
		{"rejection vetoes pending", []models.ResponseStatus{pending, rejected}, models.AppointmentStatusRejected, true},
		{"empty set stays pending", nil, models.AppointmentStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Resolve(tc.responses)
			assert.Equal(t, tc.status, d.Status)
			assert.Equal(t, tc.final, d.Final)
		})
	}
}

// The decision must not depend on the order responses arrived in.
func TestResolveOrderIndependent(t *testing.T) {
	sets := [][]models.ResponseStatus{
		{models.ResponseStatusAccepted, models.ResponseStatusRejected, models.ResponseStatusPending},
		{models.ResponseStatusRejected, models.ResponseStatusPending, models.ResponseStatusAccepted},
		{models.ResponseStatusPending, models.ResponseStatusAccepted, models.ResponseStatusRejected},
	}
	for _, set := range sets {
		d := Resolve(set)
		assert.Equal(t, models.AppointmentStatusRejected, d.Status)
		assert.True(t, d.Final)
	}
}
