package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type calendarRepository interface {
	ListForOwner(ctx context.Context, ownerID string, role models.UserRole, semesterID string) ([]models.WeeklyEntry, error)
	ReplaceForOwner(ctx context.Context, ownerID string, role models.UserRole, semesterID string, entries []models.WeeklyEntry) error
}

// CalendarService manages the fixed weekly schedules that feed the slot
// calculator. Writes are scoped to the active semester.
type CalendarService struct {
	repo      calendarRepository
	semesters appointmentSemesterRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(repo calendarRepository, semesters appointmentSemesterRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CalendarService{repo: repo, semesters: semesters, cache: cache, validator: validate, logger: logger}
}

// WeeklySchedule returns a person's live schedule for the active semester.
func (s *CalendarService) WeeklySchedule(ctx context.Context, ownerID string, role models.UserRole) ([]models.WeeklyEntry, error) {
	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active semester")
	}
	entries, err := s.repo.ListForOwner(ctx, ownerID, role, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly schedule")
	}
	return entries, nil
}

// ReplaceSchedule swaps a person's entire weekly schedule for the active
// semester and invalidates any cached availability involving them.
func (s *CalendarService) ReplaceSchedule(ctx context.Context, ownerID string, role models.UserRole, payload dto.ReplaceSchedulePayload) ([]models.WeeklyEntry, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	entries := make([]models.WeeklyEntry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		if e.StartTime >= e.EndTime {
			return nil, appErrors.Clone(appErrors.ErrValidation, "entry start time must precede end time")
		}
		entries = append(entries, models.WeeklyEntry{
			DayOfWeek: e.DayOfWeek,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Label:     e.Label,
		})
	}

	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active semester")
	}

	if err := s.repo.ReplaceForOwner(ctx, ownerID, role, semester.ID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace weekly schedule")
	}

	_ = s.cache.Invalidate(ctx, "availability:*")
	return entries, nil
}
