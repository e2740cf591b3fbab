package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// CapacityCheckOptions tunes a capacity evaluation.
type CapacityCheckOptions struct {
	// ExcludeInstanceIDs are persisted rows replaced by the mutation.
	ExcludeInstanceIDs []string
	// Pending are candidates accepted earlier in the same batch.
	Pending []models.InstanceDescriptor
}

// CapacityService evaluates candidates against the applicable capacity schedule.
type CapacityService struct {
	schedules CapacityScheduleStore
	instances InstanceStore
	loc       *time.Location
	logger    *zap.Logger
}

// NewCapacityService constructs a CapacityService.
func NewCapacityService(schedules CapacityScheduleStore, instances InstanceStore, loc *time.Location, logger *zap.Logger) *CapacityService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{schedules: schedules, instances: instances, loc: loc, logger: logger}
}

// Applies reports whether schedule covers the instant at.
func Applies(schedule models.CapacitySchedule, at time.Time, loc *time.Location) bool {
	local := at.In(loc)
	date := local.Format(dateLayout)

	if schedule.StartDate != nil && date < schedule.StartDate.Format(dateLayout) {
		return false
	}
	if schedule.EndDate != nil && date > schedule.EndDate.Format(dateLayout) {
		return false
	}
	if schedule.DayOfWeek != nil && int(local.Weekday()) != *schedule.DayOfWeek {
		return false
	}
	for _, excluded := range schedule.ExcludedDates {
		if strings.HasPrefix(excluded, date) {
			return false
		}
	}

	start, end, err := scheduleWindow(schedule)
	if err != nil {
		return false
	}
	tod := secondsOfDay(local)
	return tod >= start && tod < end
}

// SelectSchedule picks the schedule in force at the instant. A non-Closed
// schedule always beats a Closed one; otherwise the later start time wins.
func SelectSchedule(schedules []models.CapacitySchedule, at time.Time, loc *time.Location) *models.CapacitySchedule {
	var candidates []models.CapacitySchedule
	for _, sc := range schedules {
		if Applies(sc, at, loc) {
			candidates = append(candidates, sc)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.PeriodType.IsClosed() != b.PeriodType.IsClosed() {
			return !a.PeriodType.IsClosed()
		}
		as, _, _ := scheduleWindow(a)
		bs, _, _ := scheduleWindow(b)
		if as != bs {
			return as > bs
		}
		ad, bd := dateOrEmpty(a.StartDate), dateOrEmpty(b.StartDate)
		if ad != bd {
			return ad > bd
		}
		return a.ID < b.ID
	})
	selected := candidates[0]
	return &selected
}

// ScheduleAt loads the schedules for the side and returns the one in force at the instant.
func (s *CapacityService) ScheduleAt(ctx context.Context, sideID string, at time.Time) (*models.CapacitySchedule, error) {
	local := at.In(s.loc)
	schedules, err := s.schedules.FetchCapacitySchedules(ctx, sideID, local, local.Add(time.Second))
	if err != nil {
		return nil, appErrors.Store(err, "failed to load capacity schedules")
	}
	return SelectSchedule(schedules, at, s.loc), nil
}

// AvailableRacks resolves the rack allow-list for a schedule. A nil result
// with restricted=false means every rack is available.
func (s *CapacityService) AvailableRacks(ctx context.Context, schedule models.CapacitySchedule) (racks []int64, restricted bool, err error) {
	if schedule.PeriodType.IsClosed() {
		return []int64{}, true, nil
	}
	if schedule.HasExplicitPlatforms() {
		return append([]int64{}, schedule.Platforms...), true, nil
	}
	defaults, err := s.schedules.FetchDefaultRacksForPeriodType(ctx, schedule.SideID, schedule.PeriodType)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to load default racks")
	}
	if defaults == nil {
		return nil, false, nil
	}
	return defaults, true, nil
}

// Check evaluates the candidate at every point of its interval where usage or
// the schedule in force can change. It returns nil when the candidate fits.
func (s *CapacityService) Check(ctx context.Context, candidate models.InstanceDescriptor, opts CapacityCheckOptions) (*models.CapacityViolation, error) {
	// Schedule date ranges are civil dates in the booking timezone.
	schedules, err := s.schedules.FetchCapacitySchedules(ctx, candidate.SideID, candidate.Start.In(s.loc), candidate.End.In(s.loc))
	if err != nil {
		return nil, appErrors.Store(err, "failed to load capacity schedules")
	}
	if len(schedules) == 0 {
		return nil, nil
	}

	existing, err := s.instances.FetchOverlapping(ctx, candidate.SideID, candidate.Start, candidate.End, "")
	if err != nil {
		return nil, appErrors.Store(err, "failed to load overlapping instances")
	}
	others := s.occupants(candidate, existing, opts)

	defaults := make(map[models.PeriodType]rackAllowance)
	var worst *models.CapacityViolation
	for _, at := range s.checkpoints(candidate, others, schedules) {
		sc := SelectSchedule(schedules, at, s.loc)
		if sc == nil {
			continue
		}
		violation, err := s.evaluate(ctx, candidate, others, *sc, at, defaults)
		if err != nil {
			return nil, err
		}
		worst = worseViolation(worst, violation)
	}
	if worst != nil {
		s.logger.Debug("capacity violation",
			zap.String("side_id", candidate.SideID),
			zap.String("kind", string(worst.Kind)),
			zap.Int("used", worst.Used),
			zap.Int("limit", worst.Limit),
		)
	}
	return worst, nil
}

type occupant struct {
	start    time.Time
	end      time.Time
	capacity int
}

type rackAllowance struct {
	racks      map[int64]struct{}
	restricted bool
}

func (s *CapacityService) occupants(candidate models.InstanceDescriptor, existing []models.BookedInstance, opts CapacityCheckOptions) []occupant {
	excluded := make(map[string]struct{}, len(opts.ExcludeInstanceIDs)+1)
	for _, id := range opts.ExcludeInstanceIDs {
		excluded[id] = struct{}{}
	}
	if candidate.ID != "" {
		excluded[candidate.ID] = struct{}{}
	}

	var out []occupant
	for _, inst := range existing {
		if inst.SideID != candidate.SideID {
			continue
		}
		if _, skip := excluded[inst.ID]; skip {
			continue
		}
		if !Overlaps(candidate.Start, candidate.End, inst.Start, inst.End) {
			continue
		}
		out = append(out, occupant{start: inst.Start, end: inst.End, capacity: inst.Capacity})
	}
	for _, p := range opts.Pending {
		if p.SideID != candidate.SideID || !Overlaps(candidate.Start, candidate.End, p.Start, p.End) {
			continue
		}
		out = append(out, occupant{start: p.Start, end: p.End, capacity: p.Capacity})
	}
	return out
}

// checkpoints lists the candidate start plus every occupant start and schedule
// window boundary strictly inside the candidate interval, in time order.
func (s *CapacityService) checkpoints(candidate models.InstanceDescriptor, others []occupant, schedules []models.CapacitySchedule) []time.Time {
	seen := map[int64]struct{}{}
	var points []time.Time
	add := func(t time.Time) {
		if t.Before(candidate.Start) || !t.Before(candidate.End) {
			return
		}
		key := t.UnixNano()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		points = append(points, t)
	}

	add(candidate.Start)
	for _, o := range others {
		add(o.start)
		add(o.end)
	}

	startLocal := candidate.Start.In(s.loc)
	day := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, s.loc)
	for ; day.Before(candidate.End); day = day.AddDate(0, 0, 1) {
		for _, sc := range schedules {
			start, end, err := scheduleWindow(sc)
			if err != nil {
				continue
			}
			add(day.Add(time.Duration(start) * time.Second))
			add(day.Add(time.Duration(end) * time.Second))
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })
	return points
}

func (s *CapacityService) evaluate(ctx context.Context, candidate models.InstanceDescriptor, others []occupant, sc models.CapacitySchedule, at time.Time, defaults map[models.PeriodType]rackAllowance) (*models.CapacityViolation, error) {
	used := candidate.Capacity
	for _, o := range others {
		if !o.start.After(at) && at.Before(o.end) {
			used += o.capacity
		}
	}

	base := models.CapacityViolation{
		ScheduleID: sc.ID,
		PeriodType: sc.PeriodType,
		PeakTime:   at,
		Used:       used,
		Limit:      sc.Capacity,
	}

	if sc.PeriodType.IsClosed() {
		base.Kind = models.ViolationClosedPeriod
		base.Limit = 0
		return &base, nil
	}

	allowance, ok := defaults[sc.PeriodType]
	if !ok || sc.HasExplicitPlatforms() {
		racks, restricted, err := s.AvailableRacks(ctx, sc)
		if err != nil {
			return nil, err
		}
		allowance = rackAllowance{racks: rackSet(racks), restricted: restricted}
		if !sc.HasExplicitPlatforms() {
			defaults[sc.PeriodType] = allowance
		}
	}
	if allowance.restricted {
		var unavailable []int64
		for _, rack := range candidate.Racks {
			if _, ok := allowance.racks[rack]; !ok {
				unavailable = append(unavailable, rack)
			}
		}
		if len(unavailable) > 0 {
			base.Kind = models.ViolationRackUnavailable
			base.Unavailable = unavailable
			return &base, nil
		}
	}

	if used > sc.Capacity {
		base.Kind = models.ViolationCapacityExceeded
		return &base, nil
	}
	return nil, nil
}

func violationRank(kind models.ViolationKind) int {
	switch kind {
	case models.ViolationClosedPeriod:
		return 3
	case models.ViolationRackUnavailable:
		return 2
	case models.ViolationCapacityExceeded:
		return 1
	default:
		return 0
	}
}

func worseViolation(current, next *models.CapacityViolation) *models.CapacityViolation {
	if next == nil {
		return current
	}
	if current == nil {
		return next
	}
	cr, nr := violationRank(current.Kind), violationRank(next.Kind)
	if nr != cr {
		if nr > cr {
			return next
		}
		return current
	}
	if next.Used > current.Used {
		return next
	}
	return current
}

func scheduleWindow(sc models.CapacitySchedule) (start, end int, err error) {
	start, err = parseTimeOfDay(sc.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = parseTimeOfDay(sc.EndTime)
	if err != nil {
		return 0, 0, err
	}
	if end == 0 {
		end = 24 * 3600
	}
	if end <= start {
		return 0, 0, fmt.Errorf("schedule %s window %s-%s is empty", sc.ID, sc.StartTime, sc.EndTime)
	}
	return start, end, nil
}

// parseTimeOfDay accepts "HH:MM" or "HH:MM:SS" and returns seconds after midnight.
func parseTimeOfDay(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	limits := []int{24, 59, 59}
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", raw)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	if total > 24*3600 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return total, nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func dateOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
