package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/bimbingan-api/internal/dto"
	"github.com/noah-isme/bimbingan-api/internal/models"
	"github.com/noah-isme/bimbingan-api/pkg/config"
	appErrors "github.com/noah-isme/bimbingan-api/pkg/errors"
)

type availabilityCalendarRepo interface {
	EntriesForDay(ctx context.Context, ownerID string, role models.UserRole, semesterID, dayOfWeek string) ([]models.WeeklyEntry, error)
}

type availabilityAppointmentRepo interface {
	BusyIntervals(ctx context.Context, personID string, role models.UserRole, date time.Time) ([]models.BusyInterval, error)
}

type availabilitySemesterRepo interface {
	FindActive(ctx context.Context) (*models.Semester, error)
}

// AvailabilityService computes the open hourly windows shared by a student
// and a set of candidate lecturers on one date. Results are advisory: a slot
// is not reserved until a request is submitted and conflict-checked.
type AvailabilityService struct {
	calendars    availabilityCalendarRepo
	appointments availabilityAppointmentRepo
	semesters    availabilitySemesterRepo
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          config.AppointmentsConfig

	now func() time.Time
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(
	calendars availabilityCalendarRepo,
	appointments availabilityAppointmentRepo,
	semesters availabilitySemesterRepo,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.AppointmentsConfig,
) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{
		calendars:    calendars,
		appointments: appointments,
		semesters:    semesters,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// GetAvailableSlots returns the conflict-free windows for the query date and
// whether the result was served from cache. The weekly off-day yields an empty
// result with a reason, not an error.
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, query dto.AvailabilityQuery) (*models.AvailabilityResult, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}

	date, err := time.ParseInLocation("2006-01-02", query.Date, time.Local)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	result := &models.AvailabilityResult{Date: query.Date, Slots: []models.Slot{}}
	if date.Weekday() == s.cfg.OffDay {
		result.Reason = fmt.Sprintf("%s is outside the working week", date.Weekday())
		return result, false, nil
	}

	cacheKey := fmt.Sprintf("availability:%s:%s:%s", query.StudentID, query.Date, strings.Join(query.LecturerIDs, ","))
	var cached models.AvailabilityResult
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	started := s.now()

	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active semester")
	}

	windows := s.partitionWorkday(date)
	if len(windows) == 0 {
		return result, false, nil
	}

	studentBusy, err := s.busyFor(ctx, query.StudentID, models.RoleStudent, semester.ID, date)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student calendar")
	}

	// Student availability is a hard precondition. Windows the student cannot
	// attend are discarded before any lecturer lookup happens.
	candidates := windows[:0]
	for _, w := range windows {
		if !overlapsAny(studentBusy, w) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		s.finish(cacheKey, result, started)
		return result, false, nil
	}

	lecturerBusy := make([][]models.BusyInterval, len(query.LecturerIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, lecturerID := range query.LecturerIDs {
		i, lecturerID := i, lecturerID
		g.Go(func() error {
			busy, err := s.busyFor(gctx, lecturerID, models.RoleLecturer, semester.ID, date)
			if err != nil {
				return err
			}
			lecturerBusy[i] = busy
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer calendars")
	}

	for _, w := range candidates {
		free := true
		for _, busy := range lecturerBusy {
			if overlapsAny(busy, w) {
				free = false
				break
			}
		}
		if free {
			result.Slots = append(result.Slots, w)
		}
	}

	result.Slots = s.dropElapsed(date, result.Slots)

	s.finish(cacheKey, result, started)
	return result, false, nil
}

// busyFor merges a person's fixed weekly entries projected onto the date with
// their non-cancelled appointments on that date.
func (s *AvailabilityService) busyFor(ctx context.Context, personID string, role models.UserRole, semesterID string, date time.Time) ([]models.BusyInterval, error) {
	var entries []models.WeeklyEntry
	var appts []models.BusyInterval

	queryStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveDBQuery("availability_busy_scan", time.Since(queryStart))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.calendars.EntriesForDay(gctx, personID, role, semesterID, date.Weekday().String())
		return err
	})
	g.Go(func() error {
		var err error
		appts, err = s.appointments.BusyIntervals(gctx, personID, role, date)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	busy := make([]models.BusyInterval, 0, len(entries)+len(appts))
	for _, e := range entries {
		interval, err := projectEntry(e, date)
		if err != nil {
			s.logger.Warn("skipping malformed weekly entry",
				zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		busy = append(busy, interval)
	}
	busy = append(busy, appts...)
	return busy, nil
}

func (s *AvailabilityService) partitionWorkday(date time.Time) []models.Slot {
	slots := []models.Slot{}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), s.cfg.WorkdayStartHour, 0, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), s.cfg.WorkdayEndHour, 0, 0, 0, date.Location())
	for start := dayStart; start.Add(s.cfg.SlotDuration).Before(dayEnd) || start.Add(s.cfg.SlotDuration).Equal(dayEnd); start = start.Add(s.cfg.SlotDuration) {
		slots = append(slots, models.Slot{Start: start, End: start.Add(s.cfg.SlotDuration)})
	}
	return slots
}

// dropElapsed removes windows already reachable on the query day: same-hour
// and retroactive booking is not allowed.
func (s *AvailabilityService) dropElapsed(date time.Time, slots []models.Slot) []models.Slot {
	now := s.now()
	if date.Year() != now.Year() || date.YearDay() != now.YearDay() {
		return slots
	}
	remaining := []models.Slot{}
	for _, slot := range slots {
		if slot.Start.Hour() > now.Hour() {
			remaining = append(remaining, slot)
		}
	}
	return remaining
}

func (s *AvailabilityService) finish(cacheKey string, result *models.AvailabilityResult, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAvailabilityComputation(s.now().Sub(started))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.cache.Set(ctx, cacheKey, result, s.cfg.AvailabilityCacheTTL)
}

func overlapsAny(busy []models.BusyInterval, slot models.Slot) bool {
	for _, b := range busy {
		if b.Overlaps(slot.Start, slot.End) {
			return true
		}
	}
	return false
}

func projectEntry(entry models.WeeklyEntry, date time.Time) (models.BusyInterval, error) {
	start, err := clockOnDate(entry.StartTime, date)
	if err != nil {
		return models.BusyInterval{}, fmt.Errorf("parse entry start: %w", err)
	}
	end, err := clockOnDate(entry.EndTime, date)
	if err != nil {
		return models.BusyInterval{}, fmt.Errorf("parse entry end: %w", err)
	}
	return models.BusyInterval{Start: start, End: end}, nil
}

func clockOnDate(clock string, date time.Time) (time.Time, error) {
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, date.Location()), nil
}
