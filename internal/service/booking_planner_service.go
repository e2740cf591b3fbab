package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
)

const (
	OperationCreate  = "create"
	OperationExtend  = "extend"
	OperationEdit    = "edit"
	OperationCancel  = "cancel"
	OperationProcess = "process"
)

const (
	OutcomeAccepted = "accepted"
	OutcomeBlocked  = "blocked"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type bookingEventNotifier interface {
	Notify(ctx context.Context, event models.BookingEvent) error
}

type bookingMutationRecorder interface {
	RecordBookingMutation(operation, outcome string)
}

// PlannerConfig bounds planner behaviour.
type PlannerConfig struct {
	MaxExtendWeeks    int
	DefaultWeekOffset int
}

// BookingPlannerOption configures the planner.
type BookingPlannerOption func(*BookingPlannerService)

// WithPlannerNotifier publishes events for committed mutations.
func WithPlannerNotifier(n bookingEventNotifier) BookingPlannerOption {
	return func(s *BookingPlannerService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithPlannerMetrics records mutation outcomes.
func WithPlannerMetrics(m bookingMutationRecorder) BookingPlannerOption {
	return func(s *BookingPlannerService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPlannerClock overrides the time source.
func WithPlannerClock(now func() time.Time) BookingPlannerOption {
	return func(s *BookingPlannerService) {
		if now != nil {
			s.now = now
		}
	}
}

// BookingPlannerService is the single entry point for booking mutations.
// Each mutation is checked in full and then written as one change set; a
// blocked mutation writes nothing. Checks and writes are not atomic with
// respect to concurrent writers.
type BookingPlannerService struct {
	bookings  BookingStore
	instances InstanceStore
	persister ChangePersister
	conflicts *ConflictService
	capacity  *CapacityService
	cutoff    *CutoffCalculator
	notifier  bookingEventNotifier
	metrics   bookingMutationRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    PlannerConfig
	now       func() time.Time
}

// NewBookingPlannerService wires the planner to its stores and evaluators.
func NewBookingPlannerService(
	bookings BookingStore,
	instances InstanceStore,
	persister ChangePersister,
	conflicts *ConflictService,
	capacity *CapacityService,
	cutoff *CutoffCalculator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PlannerConfig,
	opts ...BookingPlannerOption,
) *BookingPlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cutoff == nil {
		cutoff = NewCutoffCalculator(time.UTC)
	}
	if cfg.MaxExtendWeeks <= 0 {
		cfg.MaxExtendWeeks = 26
	}
	if cfg.DefaultWeekOffset <= 0 {
		cfg.DefaultWeekOffset = 1
	}
	svc := &BookingPlannerService{
		bookings:  bookings,
		instances: instances,
		persister: persister,
		conflicts: conflicts,
		capacity:  capacity,
		cutoff:    cutoff,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CheckConflicts reports rack overlaps for a single candidate.
func (s *BookingPlannerService) CheckConflicts(ctx context.Context, req dto.CandidateRequest) (*models.ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid candidate payload")
	}
	exclude := req.ExcludeBookingID
	if exclude == "" {
		exclude = req.BookingID
	}
	return s.conflicts.Check(ctx, req.Descriptor(), exclude)
}

// CheckCapacity evaluates a single candidate against the capacity schedule.
func (s *BookingPlannerService) CheckCapacity(ctx context.Context, req dto.CandidateRequest) (*models.CapacityViolation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid candidate payload")
	}
	return s.capacity.Check(ctx, req.Descriptor(), CapacityCheckOptions{})
}

// ComputeCutoff returns the submission deadline for a session date.
func (s *BookingPlannerService) ComputeCutoff(date time.Time) time.Time {
	return s.cutoff.Cutoff(date)
}

// IsAfterCutoff reports whether the deadline for date has passed.
func (s *BookingPlannerService) IsAfterCutoff(date time.Time) bool {
	return s.cutoff.IsAfterCutoff(date, s.now())
}

// CreateBooking plans a new booking and its weekly series, committing it unless DryRun.
func (s *BookingPlannerService) CreateBooking(ctx context.Context, req dto.CreateBookingRequest, actor models.Actor) (plan *dto.MutationPlan, err error) {
	defer func() { s.record(OperationCreate, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	now := s.now()
	booking := &models.Booking{
		ID:        uuid.NewString(),
		Title:     req.Title,
		SideID:    req.SideID,
		CreatedBy: actor.UserID,
		Color:     req.Color,
		Status:    models.BookingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	first := models.InstanceDescriptor{
		BookingID: booking.ID,
		SideID:    req.SideID,
		Start:     req.Start,
		End:       req.End,
		Racks:     append([]int64(nil), req.Racks...),
		Areas:     append([]string(nil), req.Areas...),
		Capacity:  req.Capacity,
	}
	weeks := req.Weeks
	if weeks < 1 {
		weeks = 1
	}
	if weeks > s.config.MaxExtendWeeks {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a booking may span at most %d weeks", s.config.MaxExtendWeeks))
	}
	offset := req.WeekOffset
	if offset < 1 {
		offset = s.config.DefaultWeekOffset
	}
	candidates := append([]models.InstanceDescriptor{first}, GenerateWeekly(first.Instance(), offset, weeks-1, s.cutoff.Location())...)

	lastMinute, err := s.authorize(actor, booking, candidateStarts(candidates), now)
	if err != nil {
		return nil, err
	}
	booking.LastMinute = lastMinute

	if err = s.ensureAccepted(ctx, OperationCreate, candidates, booking.ID, nil); err != nil {
		return nil, err
	}

	assignIDs(candidates)
	plan = &dto.MutationPlan{
		Operation:   OperationCreate,
		BookingID:   booking.ID,
		WeekOffset:  offset,
		Create:      candidates,
		StatusAfter: booking.Status,
		LastMinute:  lastMinute,
	}
	if req.DryRun {
		return plan, nil
	}

	changes := models.InstanceChangeSet{Booking: booking, Create: toInstances(candidates, now)}
	if err = s.commit(ctx, changes); err != nil {
		return nil, err
	}
	plan.Committed = true
	s.notify(ctx, models.EventBookingCreated, booking, actor, descriptorIDs(candidates), lastMinute)
	return plan, nil
}

// PlanExtend generates weeks more instances after the last one and checks
// them as a batch. Any violation blocks the whole extension.
func (s *BookingPlannerService) PlanExtend(ctx context.Context, bookingID string, weeks int, actor models.Actor) (*dto.MutationPlan, error) {
	if weeks < 1 || weeks > s.config.MaxExtendWeeks {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weeks must be between 1 and %d", s.config.MaxExtendWeeks))
	}

	booking, instances, err := s.loadSeries(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking has no instances to extend")
	}

	offset := InferWeekOffset(instances)
	candidates := GenerateWeekly(instances[len(instances)-1], offset, weeks, s.cutoff.Location())

	now := s.now()
	lastMinute, err := s.authorize(actor, booking, candidateStarts(candidates), now)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccepted(ctx, OperationExtend, candidates, booking.ID, nil); err != nil {
		return nil, err
	}

	update := s.statusUpdate(booking, actor, now, lastMinute)
	return &dto.MutationPlan{
		Operation:   OperationExtend,
		BookingID:   booking.ID,
		WeekOffset:  offset,
		Create:      candidates,
		StatusAfter: statusAfter(booking, update),
		LastMinute:  lastMinute,
	}, nil
}

// ExtendBooking plans and commits an extension.
func (s *BookingPlannerService) ExtendBooking(ctx context.Context, bookingID string, req dto.ExtendBookingRequest, actor models.Actor) (plan *dto.MutationPlan, err error) {
	defer func() { s.record(OperationExtend, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extend payload")
	}
	plan, err = s.PlanExtend(ctx, bookingID, req.Weeks, actor)
	if err != nil || req.DryRun {
		return plan, err
	}

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	assignIDs(plan.Create)
	changes := models.InstanceChangeSet{
		Create:        toInstances(plan.Create, now),
		BookingStatus: s.statusUpdate(booking, actor, now, plan.LastMinute),
	}
	if err = s.commit(ctx, changes); err != nil {
		return nil, err
	}
	plan.Committed = true
	s.notify(ctx, models.EventBookingExtended, booking, actor, descriptorIDs(plan.Create), plan.LastMinute)
	return plan, nil
}

// PlanEdit applies the requested changes to the selected instances and checks
// the result. Instances outside the selection are never touched.
func (s *BookingPlannerService) PlanEdit(ctx context.Context, bookingID string, req dto.EditInstancesRequest, actor models.Actor) (*dto.MutationPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
	}
	if !req.HasChanges() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no changes requested")
	}

	booking, instances, err := s.loadSeries(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	selected, err := selectInstances(instances, req.InstanceIDs, req.ApplyToAll)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.InstanceDescriptor, 0, len(selected))
	starts := make([]time.Time, 0, len(selected)*2)
	for _, inst := range selected {
		candidate, err := s.applyEdit(inst, req)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
		starts = append(starts, inst.Start, candidate.Start)
	}

	now := s.now()
	if err := s.authorizeInstances(actor, selected); err != nil {
		return nil, err
	}
	lastMinute, err := s.authorize(actor, booking, starts, now)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccepted(ctx, OperationEdit, candidates, booking.ID, instanceIDs(selected)); err != nil {
		return nil, err
	}

	update := s.statusUpdate(booking, actor, now, lastMinute)
	return &dto.MutationPlan{
		Operation:   OperationEdit,
		BookingID:   booking.ID,
		Update:      candidates,
		StatusAfter: statusAfter(booking, update),
		LastMinute:  lastMinute,
	}, nil
}

// EditInstances plans and commits an edit.
func (s *BookingPlannerService) EditInstances(ctx context.Context, bookingID string, req dto.EditInstancesRequest, actor models.Actor) (plan *dto.MutationPlan, err error) {
	defer func() { s.record(OperationEdit, err) }()

	plan, err = s.PlanEdit(ctx, bookingID, req, actor)
	if err != nil || req.DryRun {
		return plan, err
	}

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	changes := models.InstanceChangeSet{
		Update:        toInstances(plan.Update, now),
		BookingStatus: s.statusUpdate(booking, actor, now, plan.LastMinute),
	}
	if err = s.commit(ctx, changes); err != nil {
		return nil, err
	}
	plan.Committed = true
	s.notify(ctx, models.EventBookingEdited, booking, actor, descriptorIDs(plan.Update), plan.LastMinute)
	return plan, nil
}

// PlanCancel returns the instance ids covered by a cancellation: the target
// only, the target and every later instance, or the whole series.
func (s *BookingPlannerService) PlanCancel(ctx context.Context, bookingID, instanceID string, mode dto.CancelMode) ([]string, error) {
	_, instances, err := s.loadSeries(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return CancelScope(instances, instanceID, mode)
}

// CancelScope computes the cancellation subset over an already loaded series.
func CancelScope(instances []models.Instance, instanceID string, mode dto.CancelMode) ([]string, error) {
	sorted := append([]models.Instance(nil), instances...)
	models.SortInstances(sorted)

	if mode == dto.CancelAll {
		return instanceIDs(sorted), nil
	}

	target := -1
	for i, inst := range sorted {
		if inst.ID == instanceID {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "instance not found in booking")
	}

	switch mode {
	case dto.CancelSingle:
		return []string{sorted[target].ID}, nil
	case dto.CancelFuture:
		return instanceIDs(sorted[target:]), nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown cancel mode %q", mode))
	}
}

// CancelInstances removes the planned subset. Cancelling every instance marks
// the booking cancelled.
func (s *BookingPlannerService) CancelInstances(ctx context.Context, bookingID string, req dto.CancelRequest, actor models.Actor) (plan *dto.MutationPlan, err error) {
	defer func() { s.record(OperationCancel, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	booking, instances, err := s.loadSeries(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	ids, err := CancelScope(instances, req.InstanceID, req.Mode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	affected := pickInstances(instances, ids)
	if err = s.authorizeInstances(actor, affected); err != nil {
		return nil, err
	}
	var upcoming []time.Time
	for _, inst := range affected {
		if inst.Start.After(now) {
			upcoming = append(upcoming, inst.Start)
		}
	}
	lastMinute, err := s.authorize(actor, booking, upcoming, now)
	if err != nil {
		return nil, err
	}

	update := s.statusUpdate(booking, actor, now, lastMinute)
	if len(ids) == len(instances) {
		update = &models.BookingStatusUpdate{
			BookingID:    booking.ID,
			Status:       models.BookingStatusCancelled,
			LastEditedBy: stringPtr(actor.UserID),
			LastEditedAt: timePtr(now),
			LastMinute:   booking.LastMinute || lastMinute,
		}
	}

	plan = &dto.MutationPlan{
		Operation:   OperationCancel,
		BookingID:   booking.ID,
		Delete:      ids,
		StatusAfter: statusAfter(booking, update),
		LastMinute:  lastMinute,
	}
	if req.DryRun {
		return plan, nil
	}

	if err = s.commit(ctx, models.InstanceChangeSet{Delete: ids, BookingStatus: update}); err != nil {
		return nil, err
	}
	plan.Committed = true
	s.notify(ctx, models.EventBookingCancelled, booking, actor, ids, lastMinute)
	return plan, nil
}

// ProcessBookings moves pending bookings to processed. Each booking is
// written on its own; one failure does not stop the rest.
func (s *BookingPlannerService) ProcessBookings(ctx context.Context, req dto.ProcessBookingsRequest, actor models.Actor) ([]dto.ProcessResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid process payload")
	}
	if !actor.IsAdmin() {
		s.record(OperationProcess, appErrors.ErrForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can process bookings")
	}

	results := make([]dto.ProcessResult, 0, len(req.BookingIDs))
	for _, id := range req.BookingIDs {
		result := dto.ProcessResult{BookingID: id}
		booking, err := s.loadBooking(ctx, id)
		if err != nil {
			result.Error = appErrors.FromError(err).Message
			results = append(results, result)
			s.record(OperationProcess, err)
			continue
		}
		result.Status = booking.Status
		if booking.Status != models.BookingStatusPending {
			result.Error = fmt.Sprintf("booking is %s, not pending", booking.Status)
			results = append(results, result)
			continue
		}

		update := &models.BookingStatusUpdate{
			BookingID:    booking.ID,
			Status:       models.BookingStatusProcessed,
			LastEditedBy: booking.LastEditedBy,
			LastEditedAt: booking.LastEditedAt,
			LastMinute:   booking.LastMinute,
		}
		err = s.commit(ctx, models.InstanceChangeSet{BookingStatus: update})
		s.record(OperationProcess, err)
		if err != nil {
			result.Error = appErrors.FromError(err).Message
			results = append(results, result)
			continue
		}
		result.Processed = true
		result.Status = models.BookingStatusProcessed
		results = append(results, result)
		s.notify(ctx, models.EventBookingProcessed, booking, actor, nil, booking.LastMinute)
	}
	return results, nil
}

func (s *BookingPlannerService) ensureAccepted(ctx context.Context, operation string, candidates []models.InstanceDescriptor, bookingID string, replaced []string) error {
	violations, err := s.evaluate(ctx, candidates, bookingID, replaced)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	return blockedError(operation, violations)
}

// evaluate runs conflict and capacity checks for every candidate, counting
// earlier candidates of the batch as occupied.
func (s *BookingPlannerService) evaluate(ctx context.Context, candidates []models.InstanceDescriptor, bookingID string, replaced []string) ([]models.Violation, error) {
	reports, err := s.conflicts.CheckBatch(ctx, candidates, bookingID)
	if err != nil {
		return nil, err
	}

	var violations []models.Violation
	for i, candidate := range candidates {
		report := reports[i]
		if report.HasConflicts() {
			groups := report.GroupByBooking()
			violations = append(violations, models.Violation{
				Kind:      models.ViolationConflict,
				Candidate: candidate,
				Conflicts: groups,
				Message:   conflictMessage(candidate, groups, s.cutoff.Location()),
			})
		}

		capViolation, err := s.capacity.Check(ctx, candidate, CapacityCheckOptions{
			ExcludeInstanceIDs: replaced,
			Pending:            candidates[:i],
		})
		if err != nil {
			return nil, err
		}
		if capViolation != nil {
			violations = append(violations, models.Violation{
				Kind:      capViolation.Kind,
				Candidate: candidate,
				Capacity:  capViolation,
				Message:   capViolation.Message(),
			})
		}
	}
	return violations, nil
}

// authorize enforces the lock flag and the cutoff. Admins pass the cutoff but
// the mutation is flagged last-minute.
func (s *BookingPlannerService) authorize(actor models.Actor, booking *models.Booking, starts []time.Time, now time.Time) (bool, error) {
	if booking.IsLocked && !actor.IsAdmin() {
		return false, appErrors.Clone(appErrors.ErrLocked, "booking is locked; only admins can change it")
	}
	lastMinute := false
	for _, start := range starts {
		if !s.cutoff.IsAfterCutoff(start, now) {
			continue
		}
		if !actor.IsAdmin() {
			deadline := s.cutoff.Cutoff(start).Format("Mon 02 Jan 15:04:05")
			return false, appErrors.Clone(appErrors.ErrCutoffPassed, fmt.Sprintf("changes for %s closed at %s", start.In(s.cutoff.Location()).Format("Mon 02 Jan"), deadline))
		}
		lastMinute = true
	}
	return lastMinute, nil
}

func (s *BookingPlannerService) authorizeInstances(actor models.Actor, instances []models.Instance) error {
	if actor.IsAdmin() {
		return nil
	}
	for _, inst := range instances {
		if inst.IsLocked {
			return appErrors.Clone(appErrors.ErrLocked, "instance is locked; only admins can change it")
		}
	}
	return nil
}

// statusUpdate resets a processed booking to pending and stamps the editor.
// It returns nil when the booking row does not change.
func (s *BookingPlannerService) statusUpdate(booking *models.Booking, actor models.Actor, now time.Time, lastMinute bool) *models.BookingStatusUpdate {
	reset := booking.Status == models.BookingStatusProcessed
	if !reset && !lastMinute {
		return nil
	}
	update := &models.BookingStatusUpdate{
		BookingID:    booking.ID,
		Status:       booking.Status,
		LastEditedBy: booking.LastEditedBy,
		LastEditedAt: booking.LastEditedAt,
		LastMinute:   booking.LastMinute || lastMinute,
	}
	if reset {
		update.Status = models.BookingStatusPending
	}
	update.LastEditedBy = stringPtr(actor.UserID)
	update.LastEditedAt = timePtr(now)
	return update
}

func (s *BookingPlannerService) applyEdit(inst models.Instance, req dto.EditInstancesRequest) (models.InstanceDescriptor, error) {
	candidate := inst.Descriptor()
	loc := s.cutoff.Location()
	if req.StartTime != nil {
		start, err := atTimeOfDay(inst.Start, *req.StartTime, loc)
		if err != nil {
			return candidate, err
		}
		candidate.Start = start
	}
	if req.EndTime != nil {
		end, err := atTimeOfDay(inst.Start, *req.EndTime, loc)
		if err != nil {
			return candidate, err
		}
		candidate.End = end
	}
	if !candidate.End.After(candidate.Start) {
		return candidate, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if req.Racks != nil {
		candidate.Racks = append([]int64(nil), req.Racks...)
	}
	if req.Areas != nil {
		candidate.Areas = append([]string(nil), req.Areas...)
	}
	if req.Capacity != nil {
		candidate.Capacity = *req.Capacity
	}
	return candidate, nil
}

func (s *BookingPlannerService) loadBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Store(err, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingPlannerService) loadSeries(ctx context.Context, bookingID string) (*models.Booking, []models.Instance, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	instances, err := s.instances.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to load booking instances")
	}
	models.SortInstances(instances)
	return booking, instances, nil
}

func (s *BookingPlannerService) commit(ctx context.Context, changes models.InstanceChangeSet) error {
	if changes.Empty() {
		return nil
	}
	if err := s.persister.PersistInstanceChanges(ctx, changes); err != nil {
		s.logger.Warn("persist booking changes failed", zap.Error(err))
		return appErrors.Store(err, "failed to save booking changes")
	}
	return nil
}

func (s *BookingPlannerService) notify(ctx context.Context, eventType models.BookingEventType, booking *models.Booking, actor models.Actor, instanceIDs []string, lastMinute bool) {
	if s.notifier == nil {
		return
	}
	event := models.BookingEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		BookingID:   booking.ID,
		Title:       booking.Title,
		SideID:      booking.SideID,
		ActorID:     actor.UserID,
		InstanceIDs: instanceIDs,
		LastMinute:  lastMinute,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("booking event not queued", zap.String("booking_id", booking.ID), zap.String("type", string(eventType)), zap.Error(err))
	}
}

func (s *BookingPlannerService) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordBookingMutation(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeAccepted
	}
	var blocked *models.MutationBlockedError
	if errors.As(err, &blocked) {
		return OutcomeBlocked
	}
	if appErrors.FromError(err).Code == appErrors.ErrStoreUnavailable.Code {
		return OutcomeFailed
	}
	return OutcomeRejected
}

func blockedError(operation string, violations []models.Violation) error {
	domainErr := &models.MutationBlockedError{Operation: operation, Violations: violations}
	base := appErrors.ErrConflict
	switch domainErr.PrimaryKind() {
	case models.ViolationCapacityExceeded:
		base = appErrors.ErrCapacityExceeded
	case models.ViolationClosedPeriod:
		base = appErrors.ErrClosedPeriod
	case models.ViolationRackUnavailable:
		base = appErrors.ErrRackUnavailable
	}
	return appErrors.Wrap(domainErr, base.Code, base.Status, fmt.Sprintf("%s blocked: %s", operation, violations[0].Message))
}

func conflictMessage(candidate models.InstanceDescriptor, groups []models.BookingConflictGroup, loc *time.Location) string {
	if len(groups) == 0 {
		return ""
	}
	g := groups[0]
	msg := fmt.Sprintf("session on %s clashes with %q on rack(s) %s", candidate.Start.In(loc).Format("Mon 02 Jan 15:04"), g.BookingTitle, formatRacks(g.Racks))
	if len(groups) > 1 {
		msg += fmt.Sprintf(" and %d other booking(s)", len(groups)-1)
	}
	return msg
}

func formatRacks(racks []int64) string {
	out := ""
	for i, r := range racks {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", r)
	}
	return out
}

func selectInstances(instances []models.Instance, ids []string, all bool) ([]models.Instance, error) {
	if all {
		if len(instances) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "booking has no instances")
		}
		return instances, nil
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "select at least one instance or set applyToAll")
	}
	byID := make(map[string]models.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}
	seen := make(map[string]struct{}, len(ids))
	selected := make([]models.Instance, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		inst, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("instance %s does not belong to this booking", id))
		}
		seen[id] = struct{}{}
		selected = append(selected, inst)
	}
	models.SortInstances(selected)
	return selected, nil
}

func pickInstances(instances []models.Instance, ids []string) []models.Instance {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []models.Instance
	for _, inst := range instances {
		if _, ok := wanted[inst.ID]; ok {
			out = append(out, inst)
		}
	}
	return out
}

func atTimeOfDay(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	secs, err := parseTimeOfDay(clock)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time of day")
	}
	local := day.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(secs) * time.Second), nil
}

func candidateStarts(candidates []models.InstanceDescriptor) []time.Time {
	out := make([]time.Time, len(candidates))
	for i, c := range candidates {
		out[i] = c.Start
	}
	return out
}

func assignIDs(candidates []models.InstanceDescriptor) {
	for i := range candidates {
		if candidates[i].ID == "" {
			candidates[i].ID = uuid.NewString()
		}
	}
}

func toInstances(candidates []models.InstanceDescriptor, now time.Time) []models.Instance {
	out := make([]models.Instance, len(candidates))
	for i, c := range candidates {
		inst := c.Instance()
		inst.CreatedAt = now
		inst.UpdatedAt = now
		out[i] = inst
	}
	return out
}

func descriptorIDs(candidates []models.InstanceDescriptor) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.ID
	}
	return out
}

func instanceIDs(instances []models.Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.ID
	}
	return out
}

func statusAfter(booking *models.Booking, update *models.BookingStatusUpdate) models.BookingStatus {
	if update != nil {
		return update.Status
	}
	return booking.Status
}

func stringPtr(v string) *string {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
