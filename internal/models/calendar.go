package models

import "time"

// WeeklyEntry is one fixed weekly calendar row for a student class or a
// lecturer teaching block. Entries are soft-deleted, never removed.
type WeeklyEntry struct {
	ID         string    `db:"id" json:"id"`
	OwnerID    string    `db:"owner_id" json:"owner_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	DayOfWeek  string    `db:"day_of_week" json:"day_of_week"`
	StartTime  string    `db:"start_time" json:"start_time"` // HH:MM:SS
	EndTime    string    `db:"end_time" json:"end_time"`
	Label      string    `db:"label" json:"label"`
	IsDeleted  bool      `db:"is_deleted" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BusyInterval is an ephemeral time range during which a person is
// unavailable. It is computed, never persisted.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the interval intersects [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// Slot is a candidate conflict-free meeting window. Ephemeral.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityResult carries the computed slots for one date. Reason is set
// when the date is rejected without computing (e.g. the weekly off-day).
type AvailabilityResult struct {
	Date   string `json:"date"`
	Slots  []Slot `json:"slots"`
	Reason string `json:"reason,omitempty"`
}
