package dto

// WeeklyEntryPayload is one fixed weekly calendar row in a schedule upload.
type WeeklyEntryPayload struct {
	DayOfWeek string `json:"dayOfWeek" validate:"required,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04:05"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04:05"`
	Label     string `json:"label" validate:"max=120"`
}

// ReplaceSchedulePayload swaps a person's entire weekly schedule for the
// active semester.
type ReplaceSchedulePayload struct {
	Entries []WeeklyEntryPayload `json:"entries" validate:"required,dive"`
}
