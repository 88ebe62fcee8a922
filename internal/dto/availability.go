package dto

// AvailabilityQuery asks for the open slots shared by a student and a set of
// candidate lecturers on one date.
type AvailabilityQuery struct {
	StudentID   string   `json:"studentId" validate:"required"`
	LecturerIDs []string `json:"lecturerIds" validate:"required,min=1,dive,required"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
}
