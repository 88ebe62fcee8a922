package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	"github.com/noah-isme/bimbingan-api/internal/repository"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type recurringAppointmentRepository interface {
	BulkCreateApproved(ctx context.Context, appts []models.Appointment, lecturerID string) error
}

// RecurringService expands a lecturer's session template into a series of
// concrete auto-approved appointments. Consensus is bypassed entirely on this
// path.
type RecurringService struct {
	repo      recurringAppointmentRepository
	users     appointmentUserRepository
	semesters appointmentSemesterRepository
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger

	now func() time.Time
}

// NewRecurringService constructs a RecurringService.
func NewRecurringService(
	repo recurringAppointmentRepository,
	users appointmentUserRepository,
	semesters appointmentSemesterRepository,
	notifier notificationDispatcher,
	validate *validator.Validate,
	logger *zap.Logger,
) *RecurringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RecurringService{
		repo:      repo,
		users:     users,
		semesters: semesters,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate books every occurrence the template expands to, in one atomic
// unit. An expansion with zero occurrences is a caller error, not an empty
// success.
func (s *RecurringService) Generate(ctx context.Context, lecturerID string, template dto.RecurringTemplate) (int, error) {
	if err := s.validator.Struct(template); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session template")
	}

	startDate, err := time.ParseInLocation("2006-01-02", template.StartDate, time.Local)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	startClock, err := time.Parse("15:04", template.StartClock)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid start clock")
	}
	endClock, err := time.Parse("15:04", template.EndClock)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid end clock")
	}
	if !startClock.Before(endClock) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "start clock must be before end clock")
	}

	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active semester")
	}
	ok, err := s.users.SupervisesStudent(ctx, lecturerID, template.StudentID, semester.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify supervisor assignment")
	}
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "you do not supervise this student")
	}

	dates, err := s.expand(template, startDate)
	if err != nil {
		return 0, err
	}

	appointments := make([]models.Appointment, 0, len(dates))
	for _, d := range dates {
		appointments = append(appointments, models.Appointment{
			StudentID: template.StudentID,
			StartTime: onDate(d, startClock),
			EndTime:   onDate(d, endClock),
			Location:  template.Location,
			Mode:      models.AppointmentMode(template.Mode),
			Origin:    models.OriginLecturerInvite,
			Status:    models.AppointmentStatusApproved,
			Notes:     template.Notes,
		})
	}

	if err := s.repo.BulkCreateApproved(ctx, appointments, lecturerID); err != nil {
		if errors.Is(err, repository.ErrOverlappingAppointment) {
			return 0, appErrors.Clone(appErrors.ErrConflict, "one of the generated sessions conflicts with an existing appointment")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recurring sessions")
	}

	s.notifier.Dispatch(models.NotificationEvent{
		RecipientIDs: []string{template.StudentID},
		Title:        "Supervision sessions scheduled",
		Body:         fmt.Sprintf("Your supervisor booked %d session(s) starting %s", len(appointments), template.StartDate),
		SourceLabel:  "appointment_recurring",
	})

	return len(appointments), nil
}

// expand steps from the template's start to its end date. Week units qualify
// only dates on the requested weekday and jump 7×frequency days after each
// hit; month units jump frequency months from the start date directly.
func (s *RecurringService) expand(template dto.RecurringTemplate, startDate time.Time) ([]time.Time, error) {
	if template.BookMode == "single" {
		return []time.Time{startDate}, nil
	}

	if template.EndDate == "" || template.Unit == "" || template.Frequency < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurring mode requires end date, unit and frequency")
	}
	endDate, err := time.ParseInLocation("2006-01-02", template.EndDate, time.Local)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	var dates []time.Time
	switch template.Unit {
	case "week":
		weekday := startDate.Weekday()
		if template.Weekday != "" {
			parsed, err := parseWeekdayName(template.Weekday)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown weekday %q", template.Weekday))
			}
			weekday = parsed
		}
		for cursor := startDate; !cursor.After(endDate); {
			if cursor.Weekday() == weekday {
				dates = append(dates, cursor)
				cursor = cursor.AddDate(0, 0, 7*template.Frequency)
			} else {
				cursor = cursor.AddDate(0, 0, 1)
			}
		}
	case "month":
		for cursor := startDate; !cursor.After(endDate); cursor = cursor.AddDate(0, template.Frequency, 0) {
			dates = append(dates, cursor)
		}
	}

	if len(dates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the template produces no occurrences in the given range")
	}
	return dates, nil
}

func parseWeekdayName(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}

func onDate(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, date.Location())
}
