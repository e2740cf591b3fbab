package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rackbook-api/internal/dto"
	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
)

var (
	coach = models.Actor{UserID: "coach-1", Role: models.RoleCoach}
	admin = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

func newTestPlanner(store *memoryStore, now time.Time) (*BookingPlannerService, *metricsStub, *notifierStub) {
	metrics := &metricsStub{}
	notifier := &notifierStub{}
	svc := NewBookingPlannerService(
		store,
		store,
		store,
		NewConflictService(store, time.UTC, nil),
		NewCapacityService(store, store, time.UTC, nil),
		NewCutoffCalculator(time.UTC),
		nil,
		nil,
		PlannerConfig{MaxExtendWeeks: 12},
		WithPlannerMetrics(metrics),
		WithPlannerNotifier(notifier),
		WithPlannerClock(func() time.Time { return now }),
	)
	return svc, metrics, notifier
}

func TestPlannerExtendBlocksWholeBatchOnSingleConflict(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
		weekly("i", at(2024, 6, 5, 9, 0), time.Hour, 2, 1)...)
	store.addBooking(models.Booking{ID: "other", Title: "Masters", SideID: "side-a"},
		instance("x1", at(2024, 6, 26, 9, 30), time.Hour, 1))

	svc, metrics, notifier := newTestPlanner(store, at(2024, 6, 1, 12, 0))
	plan, err := svc.ExtendBooking(context.Background(), "b1", dto.ExtendBookingRequest{Weeks: 3}, coach)
	require.Error(t, err)
	assert.Nil(t, plan)

	var blocked *models.MutationBlockedError
	require.True(t, errors.As(err, &blocked))
	require.Len(t, blocked.Violations, 1)
	assert.Equal(t, models.ViolationConflict, blocked.Violations[0].Kind)
	assert.Equal(t, at(2024, 6, 26, 9, 0), blocked.Violations[0].Candidate.Start)
	assert.Equal(t, "Masters", blocked.Violations[0].Conflicts[0].BookingTitle)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	assert.Equal(t, 2, store.instanceCount("b1"), "no instance of the batch is written")
	assert.Empty(t, store.persisted)
	assert.Empty(t, notifier.events)
	assert.Equal(t, []recordedMutation{{operation: OperationExtend, outcome: OutcomeBlocked}}, metrics.calls)
}

func TestPlannerExtendContinuesPatternAndResetsProcessed(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a", Status: models.BookingStatusProcessed},
		instance("i1", at(2024, 6, 5, 9, 0), time.Hour, 1, 2),
		instance("i2", at(2024, 6, 19, 9, 0), time.Hour, 1, 2))

	svc, metrics, notifier := newTestPlanner(store, at(2024, 6, 1, 12, 0))
	plan, err := svc.ExtendBooking(context.Background(), "b1", dto.ExtendBookingRequest{Weeks: 2}, coach)
	require.NoError(t, err)
	require.True(t, plan.Committed)
	assert.Equal(t, 2, plan.WeekOffset)
	require.Len(t, plan.Create, 2)
	assert.Equal(t, at(2024, 7, 3, 9, 0), plan.Create[0].Start)
	assert.Equal(t, at(2024, 7, 17, 10, 0), plan.Create[1].End)
	assert.Equal(t, []int64{1, 2}, plan.Create[1].Racks)
	assert.Equal(t, models.BookingStatusPending, plan.StatusAfter)

	booking, err := store.FindByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	require.NotNil(t, booking.LastEditedBy)
	assert.Equal(t, "coach-1", *booking.LastEditedBy)
	assert.False(t, booking.LastMinute)
	assert.Equal(t, 4, store.instanceCount("b1"))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.EventBookingExtended, notifier.events[0].Type)
	assert.Len(t, notifier.events[0].InstanceIDs, 2)
	assert.Equal(t, OutcomeAccepted, metrics.calls[0].outcome)
}

func TestPlannerPlanExtendIsReadOnly(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
		instance("i1", at(2024, 6, 5, 9, 0), time.Hour, 1))

	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 12, 0))
	plan, err := svc.PlanExtend(context.Background(), "b1", 3, coach)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.WeekOffset)
	assert.Len(t, plan.Create, 3)
	assert.False(t, plan.Committed)
	assert.Empty(t, store.persisted)

	_, err = svc.PlanExtend(context.Background(), "b1", 13, coach)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPlannerCutoffRejectsCoachAndFlagsAdmin(t *testing.T) {
	newStore := func() *memoryStore {
		store := newMemoryStore()
		store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
			instance("i1", at(2024, 6, 12, 9, 0), time.Hour, 1))
		return store
	}
	// The 19 June session closed on Thursday 13 June 23:59:59.
	now := at(2024, 6, 14, 8, 0)

	store := newStore()
	svc, metrics, _ := newTestPlanner(store, now)
	_, err := svc.ExtendBooking(context.Background(), "b1", dto.ExtendBookingRequest{Weeks: 1}, coach)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCutoffPassed))
	assert.Equal(t, OutcomeRejected, metrics.calls[0].outcome)
	assert.Equal(t, 1, store.instanceCount("b1"))

	store = newStore()
	svc, _, notifier := newTestPlanner(store, now)
	plan, err := svc.ExtendBooking(context.Background(), "b1", dto.ExtendBookingRequest{Weeks: 1}, admin)
	require.NoError(t, err)
	assert.True(t, plan.LastMinute)
	booking, _ := store.FindByID(context.Background(), "b1")
	assert.True(t, booking.LastMinute)
	assert.True(t, notifier.events[0].LastMinute)
}

func TestPlannerLockedBookingRequiresAdmin(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a", IsLocked: true},
		instance("i1", at(2024, 6, 12, 9, 0), time.Hour, 1))

	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 12, 0))
	_, err := svc.ExtendBooking(context.Background(), "b1", dto.ExtendBookingRequest{Weeks: 1}, coach)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	_, err = svc.ExtendBooking(context.Background(), "b1", dto.ExtendBookingRequest{Weeks: 1}, admin)
	require.NoError(t, err)
}

func TestPlannerEditTouchesOnlySelection(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
		weekly("i", at(2024, 6, 5, 9, 0), time.Hour, 3, 1)...)
	store.addBooking(models.Booking{ID: "other", Title: "Masters", SideID: "side-a"},
		instance("x1", at(2024, 6, 12, 9, 30), time.Hour, 2))

	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 12, 0))

	_, err := svc.EditInstances(context.Background(), "b1", dto.EditInstancesRequest{
		InstanceIDs: []string{"i2"},
		Racks:       []int64{2},
	}, coach)
	require.Error(t, err)
	var blocked *models.MutationBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "i2", blocked.Violations[0].Candidate.ID)

	plan, err := svc.EditInstances(context.Background(), "b1", dto.EditInstancesRequest{
		InstanceIDs: []string{"i2"},
		StartTime:   strPtr("08:00"),
	}, coach)
	require.NoError(t, err)
	require.Len(t, plan.Update, 1)

	instances, err := store.ListByBooking(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Equal(t, at(2024, 6, 5, 9, 0), instances[0].Start)
	assert.Equal(t, at(2024, 6, 12, 8, 0), instances[1].Start)
	assert.Equal(t, at(2024, 6, 12, 10, 0), instances[1].End)
	assert.Equal(t, at(2024, 6, 19, 9, 0), instances[2].Start)
}

func TestPlannerEditRejectsUnknownInstanceAndEmptyChange(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
		weekly("i", at(2024, 6, 5, 9, 0), time.Hour, 2, 1)...)
	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 12, 0))

	_, err := svc.PlanEdit(context.Background(), "b1", dto.EditInstancesRequest{InstanceIDs: []string{"nope"}, Capacity: intPtr(2)}, coach)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.PlanEdit(context.Background(), "b1", dto.EditInstancesRequest{ApplyToAll: true}, coach)
	require.Error(t, err)

	_, err = svc.PlanEdit(context.Background(), "b1", dto.EditInstancesRequest{ApplyToAll: true, EndTime: strPtr("08:00")}, coach)
	require.Error(t, err, "end before start")
}

func TestCancelScopeModes(t *testing.T) {
	series := weekly("s", at(2024, 6, 5, 9, 0), time.Hour, 5, 1)

	ids, err := CancelScope(series, "s3", dto.CancelFuture)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s4", "s5"}, ids)

	ids, err = CancelScope(series, "s3", dto.CancelSingle)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids)

	ids, err = CancelScope(series, "s3", dto.CancelAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4", "s5"}, ids)

	_, err = CancelScope(series, "missing", dto.CancelFuture)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPlannerCancelAllMarksBookingCancelled(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a"},
		weekly("s", at(2024, 6, 5, 9, 0), time.Hour, 5, 1)...)

	// Past instances do not trip the cutoff; the upcoming ones are still open.
	svc, _, notifier := newTestPlanner(store, at(2024, 6, 20, 10, 0))
	plan, err := svc.CancelInstances(context.Background(), "b1", dto.CancelRequest{InstanceID: "s3", Mode: dto.CancelAll}, coach)
	require.NoError(t, err)
	assert.Len(t, plan.Delete, 5)
	assert.Equal(t, models.BookingStatusCancelled, plan.StatusAfter)
	assert.Equal(t, 0, store.instanceCount("b1"))

	booking, _ := store.FindByID(context.Background(), "b1")
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Equal(t, models.EventBookingCancelled, notifier.events[0].Type)
}

func TestPlannerCancelFutureKeepsEarlierInstances(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Squad", SideID: "side-a", Status: models.BookingStatusProcessed},
		weekly("s", at(2024, 6, 5, 9, 0), time.Hour, 5, 1)...)

	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 10, 0))
	plan, err := svc.CancelInstances(context.Background(), "b1", dto.CancelRequest{InstanceID: "s4", Mode: dto.CancelFuture}, coach)
	require.NoError(t, err)
	assert.Equal(t, []string{"s4", "s5"}, plan.Delete)
	assert.Equal(t, models.BookingStatusPending, plan.StatusAfter)
	assert.Equal(t, 3, store.instanceCount("b1"))
}

func TestPlannerCreateBookingDryRunDoesNotWrite(t *testing.T) {
	store := newMemoryStore()
	svc, _, notifier := newTestPlanner(store, at(2024, 6, 1, 10, 0))

	plan, err := svc.CreateBooking(context.Background(), dto.CreateBookingRequest{
		Title:    "Squad",
		SideID:   "side-a",
		Start:    at(2024, 6, 19, 9, 0),
		End:      at(2024, 6, 19, 10, 0),
		Racks:    []int64{1, 2},
		Capacity: 4,
		Weeks:    3,
		DryRun:   true,
	}, coach)
	require.NoError(t, err)
	assert.False(t, plan.Committed)
	require.Len(t, plan.Create, 3)
	assert.Equal(t, at(2024, 7, 3, 9, 0), plan.Create[2].Start)
	for _, c := range plan.Create {
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, plan.BookingID, c.BookingID)
	}
	assert.Empty(t, store.persisted)
	assert.Empty(t, notifier.events)
}

func TestPlannerCreateBookingDefaultsToOneWeek(t *testing.T) {
	store := newMemoryStore()
	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 10, 0))

	plan, err := svc.CreateBooking(context.Background(), dto.CreateBookingRequest{
		Title:  "Squad",
		SideID: "side-a",
		Start:  at(2024, 6, 19, 9, 0),
		End:    at(2024, 6, 19, 10, 0),
		Racks:  []int64{1},
		DryRun: true,
	}, coach)
	require.NoError(t, err)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, at(2024, 6, 19, 9, 0), plan.Create[0].Start)
}

func TestPlannerCreateBookingPersistFailureIsRetryable(t *testing.T) {
	store := newMemoryStore()
	store.persistErr = errors.New("connection refused")
	svc, metrics, _ := newTestPlanner(store, at(2024, 6, 1, 10, 0))

	_, err := svc.CreateBooking(context.Background(), dto.CreateBookingRequest{
		Title:  "Squad",
		SideID: "side-a",
		Start:  at(2024, 6, 19, 9, 0),
		End:    at(2024, 6, 19, 10, 0),
		Racks:  []int64{1},
		Weeks:  1,
	}, coach)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErr.Code)
	assert.True(t, appErr.Retryable)
	assert.Equal(t, OutcomeFailed, metrics.calls[0].outcome)
}

func TestPlannerCreateBookingRejectsClosedPeriod(t *testing.T) {
	store := newMemoryStore()
	store.schedules = []models.CapacitySchedule{schedule("closed", models.PeriodClosed, "06:00", "12:00", 0)}
	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 10, 0))

	_, err := svc.CreateBooking(context.Background(), dto.CreateBookingRequest{
		Title:  "Squad",
		SideID: "side-a",
		Start:  at(2024, 6, 19, 9, 0),
		End:    at(2024, 6, 19, 10, 0),
		Racks:  []int64{1},
		Weeks:  1,
	}, coach)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrClosedPeriod))
}

func TestPlannerProcessBookings(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "p1", Title: "Pending", SideID: "side-a", Status: models.BookingStatusPending})
	store.addBooking(models.Booking{ID: "p2", Title: "Done", SideID: "side-a", Status: models.BookingStatusProcessed})
	svc, _, notifier := newTestPlanner(store, at(2024, 6, 1, 10, 0))

	_, err := svc.ProcessBookings(context.Background(), dto.ProcessBookingsRequest{BookingIDs: []string{"p1"}}, coach)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	results, err := svc.ProcessBookings(context.Background(), dto.ProcessBookingsRequest{BookingIDs: []string{"p1", "p2", "missing"}}, admin)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Processed)
	assert.Equal(t, models.BookingStatusProcessed, results[0].Status)
	assert.False(t, results[1].Processed)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "booking not found", results[2].Error)

	booking, _ := store.FindByID(context.Background(), "p1")
	assert.Equal(t, models.BookingStatusProcessed, booking.Status)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.EventBookingProcessed, notifier.events[0].Type)
}

func TestPlannerCheckEndpointsValidateInput(t *testing.T) {
	store := newMemoryStore()
	svc, _, _ := newTestPlanner(store, at(2024, 6, 1, 10, 0))

	_, err := svc.CheckConflicts(context.Background(), dto.CandidateRequest{SideID: "side-a"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	violation, err := svc.CheckCapacity(context.Background(), dto.CandidateRequest{
		SideID: "side-a",
		Start:  at(2024, 6, 19, 9, 0),
		End:    at(2024, 6, 19, 10, 0),
		Racks:  []int64{1},
	})
	require.NoError(t, err)
	assert.Nil(t, violation)

	assert.Equal(t, time.Date(2024, 6, 13, 23, 59, 59, 0, time.UTC), svc.ComputeCutoff(at(2024, 6, 19, 9, 0)))
	assert.False(t, svc.IsAfterCutoff(at(2024, 6, 19, 9, 0)))
}
