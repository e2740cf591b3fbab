package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
)

type capacityScheduleRepository interface {
	ListBySide(ctx context.Context, sideID string) ([]models.CapacitySchedule, error)
	FetchDefaultRacksForPeriodType(ctx context.Context, sideID string, periodType models.PeriodType) ([]int64, error)
	Upsert(ctx context.Context, schedule *models.CapacitySchedule) error
	Delete(ctx context.Context, id string) (string, error)
}

// CapacityScheduleService manages capacity rules and serves them to the
// capacity evaluator through a per-side cache.
type CapacityScheduleService struct {
	repo      capacityScheduleRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewCapacityScheduleService constructs the service. cache may be nil.
func NewCapacityScheduleService(repo capacityScheduleRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *CapacityScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityScheduleService{repo: repo, cache: cache, validator: validate, logger: logger, ttl: ttl}
}

func schedulesCacheKey(sideID string) string {
	return fmt.Sprintf("capacity:schedules:%s", sideID)
}

func defaultRacksCacheKey(sideID string, periodType models.PeriodType) string {
	return fmt.Sprintf("capacity:defaults:%s:%s", sideID, periodType)
}

// List returns every schedule of the side.
func (s *CapacityScheduleService) List(ctx context.Context, sideID string) ([]models.CapacitySchedule, error) {
	key := schedulesCacheKey(sideID)
	var cached []models.CapacitySchedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	schedules, err := s.repo.ListBySide(ctx, sideID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load capacity schedules")
	}
	if schedules == nil {
		schedules = []models.CapacitySchedule{}
	}
	_ = s.cache.Set(ctx, key, schedules, s.ttl)
	return schedules, nil
}

// FetchCapacitySchedules returns the schedules whose date range touches [from,to].
// Dates are compared in the location from and to carry.
func (s *CapacityScheduleService) FetchCapacitySchedules(ctx context.Context, sideID string, from, to time.Time) ([]models.CapacitySchedule, error) {
	schedules, err := s.List(ctx, sideID)
	if err != nil {
		return nil, err
	}
	fromDate, toDate := from.Format(dateLayout), to.Format(dateLayout)
	out := make([]models.CapacitySchedule, 0, len(schedules))
	for _, sc := range schedules {
		if sc.StartDate != nil && sc.StartDate.Format(dateLayout) > toDate {
			continue
		}
		if sc.EndDate != nil && sc.EndDate.Format(dateLayout) < fromDate {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// FetchDefaultRacksForPeriodType returns the period's fallback allow-list; nil means unrestricted.
func (s *CapacityScheduleService) FetchDefaultRacksForPeriodType(ctx context.Context, sideID string, periodType models.PeriodType) ([]int64, error) {
	key := defaultRacksCacheKey(sideID, periodType)
	var cached []int64
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	racks, err := s.repo.FetchDefaultRacksForPeriodType(ctx, sideID, periodType)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load default racks")
	}
	_ = s.cache.Set(ctx, key, racks, s.ttl)
	return racks, nil
}

// Upsert validates and stores schedules for the side, then drops its cache entries.
func (s *CapacityScheduleService) Upsert(ctx context.Context, sideID string, req dto.UpsertSchedulesRequest) ([]models.CapacitySchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedules := make([]models.CapacitySchedule, 0, len(req.Schedules))
	for _, item := range req.Schedules {
		sc, err := scheduleFromRequest(sideID, item)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}

	for i := range schedules {
		if err := s.repo.Upsert(ctx, &schedules[i]); err != nil {
			return nil, appErrors.Store(err, "failed to save capacity schedule")
		}
	}
	s.invalidate(ctx, sideID)
	s.logger.Info("capacity schedules updated", zap.String("side_id", sideID), zap.Int("count", len(schedules)))
	return schedules, nil
}

// Delete removes a schedule.
func (s *CapacityScheduleService) Delete(ctx context.Context, id string) error {
	sideID, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "capacity schedule not found")
		}
		return appErrors.Store(err, "failed to delete capacity schedule")
	}
	s.invalidate(ctx, sideID)
	return nil
}

func (s *CapacityScheduleService) invalidate(ctx context.Context, sideID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("capacity:*:%s*", sideID)); err != nil {
		s.logger.Warn("capacity cache not invalidated", zap.String("side_id", sideID), zap.Error(err))
	}
}

func scheduleFromRequest(sideID string, req dto.CapacityScheduleRequest) (models.CapacitySchedule, error) {
	sc := models.CapacitySchedule{
		ID:            req.ID,
		SideID:        sideID,
		DayOfWeek:     req.DayOfWeek,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		PeriodType:    models.PeriodType(req.PeriodType),
		Capacity:      req.Capacity,
		ExcludedDates: pq.StringArray(req.ExcludedDates),
	}
	if req.Platforms != nil {
		sc.Platforms = pq.Int64Array(append([]int64{}, req.Platforms...))
	}
	if _, _, err := scheduleWindow(sc); err != nil {
		return sc, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule time window")
	}

	var err error
	if sc.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		return sc, err
	}
	if sc.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		return sc, err
	}
	if sc.StartDate != nil && sc.EndDate != nil && sc.EndDate.Before(*sc.StartDate) {
		return sc, appErrors.Clone(appErrors.ErrValidation, "schedule end date is before its start date")
	}
	return sc, nil
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	return &t, nil
}
