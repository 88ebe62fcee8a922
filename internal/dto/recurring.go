package dto

// RecurringTemplate expands into a series of auto-approved supervision
// sessions. Single mode books exactly one occurrence at StartDate.
type RecurringTemplate struct {
	StudentID  string `json:"studentId" validate:"required"`
	BookMode   string `json:"bookMode" validate:"required,oneof=single recurring"`
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Weekday    string `json:"weekday" validate:"omitempty,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	Unit       string `json:"unit" validate:"omitempty,oneof=week month"`
	Frequency  int    `json:"frequency" validate:"omitempty,min=1,max=12"`
	StartClock string `json:"startClock" validate:"required,datetime=15:04"`
	EndClock   string `json:"endClock" validate:"required,datetime=15:04"`
	Location   string `json:"location" validate:"required"`
	Mode       string `json:"mode" validate:"required,oneof=online offline"`
	Notes      string `json:"notes"`
}
