package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
)

func TestOverlapsHalfOpen(t *testing.T) {
	nine, ten, eleven := at(2024, 6, 19, 9, 0), at(2024, 6, 19, 10, 0), at(2024, 6, 19, 11, 0)

	assert.False(t, Overlaps(nine, ten, ten, eleven), "touching intervals do not overlap")
	assert.False(t, Overlaps(ten, eleven, nine, ten))
	assert.True(t, Overlaps(nine, eleven, ten, eleven))
	assert.True(t, Overlaps(nine, ten, nine, ten))
}

func TestConflictServiceCheckFindsSharedRacks(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b-squad", Title: "Squad", SideID: "side-a"},
		instance("i-squad", at(2024, 6, 19, 9, 0), 2*time.Hour, 3, 4, 5))
	store.addBooking(models.Booking{ID: "b-other", Title: "Other", SideID: "side-b"},
		models.Instance{ID: "i-other", SideID: "side-b", Start: at(2024, 6, 19, 9, 0), End: at(2024, 6, 19, 11, 0), Racks: []int64{4}})

	svc := NewConflictService(store, time.UTC, nil)
	candidate := models.InstanceDescriptor{SideID: "side-a", Start: at(2024, 6, 19, 10, 0), End: at(2024, 6, 19, 12, 0), Racks: []int64{5, 4, 9}}

	report, err := svc.Check(context.Background(), candidate, "")
	require.NoError(t, err)
	require.True(t, report.HasConflicts())
	require.Len(t, report.Conflicts, 2)
	assert.Equal(t, int64(4), report.Conflicts[0].Rack)
	assert.Equal(t, int64(5), report.Conflicts[1].Rack)
	assert.Equal(t, "Squad", report.Conflicts[0].BookingTitle)
	assert.Equal(t, "Wed 19 Jun 09:00-11:00", report.Conflicts[0].TimeRange)

	groups := report.GroupByBooking()
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{4, 5}, groups[0].Racks)
}

func TestConflictServiceTouchingIntervalsDoNotConflict(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Early", SideID: "side-a"},
		instance("i1", at(2024, 6, 19, 9, 0), time.Hour, 1))

	svc := NewConflictService(store, time.UTC, nil)
	report, err := svc.Check(context.Background(), models.InstanceDescriptor{
		SideID: "side-a", Start: at(2024, 6, 19, 10, 0), End: at(2024, 6, 19, 11, 0), Racks: []int64{1},
	}, "")
	require.NoError(t, err)
	assert.False(t, report.HasConflicts())
}

func TestConflictServiceExcludesOwnBooking(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "Mine", SideID: "side-a"},
		instance("i1", at(2024, 6, 19, 9, 0), time.Hour, 1))

	svc := NewConflictService(store, time.UTC, nil)
	candidate := models.InstanceDescriptor{SideID: "side-a", Start: at(2024, 6, 19, 9, 30), End: at(2024, 6, 19, 10, 30), Racks: []int64{1}}

	report, err := svc.Check(context.Background(), candidate, "b1")
	require.NoError(t, err)
	assert.False(t, report.HasConflicts())

	report, err = svc.Check(context.Background(), candidate, "")
	require.NoError(t, err)
	assert.True(t, report.HasConflicts())
}

func TestConflictServiceIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	store.addBooking(models.Booking{ID: "b1", Title: "A", SideID: "side-a"},
		instance("i1", at(2024, 6, 19, 9, 0), time.Hour, 1, 2),
		instance("i2", at(2024, 6, 19, 9, 30), time.Hour, 2, 3))

	svc := NewConflictService(store, time.UTC, nil)
	candidate := models.InstanceDescriptor{SideID: "side-a", Start: at(2024, 6, 19, 9, 0), End: at(2024, 6, 19, 11, 0), Racks: []int64{1, 2, 3}}

	first, err := svc.Check(context.Background(), candidate, "")
	require.NoError(t, err)
	second, err := svc.Check(context.Background(), candidate, "")
	require.NoError(t, err)
	assert.Equal(t, first.Conflicts, second.Conflicts)
	assert.Len(t, first.Conflicts, 4)
}

// Every triple reported must overlap in time and share the rack, and every
// overlapping shared rack must be reported.
func TestConflictServiceDetectMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	svc := NewConflictService(nil, time.UTC, nil)
	base := at(2024, 6, 17, 6, 0)

	for round := 0; round < 200; round++ {
		var existing []models.BookedInstance
		for i := 0; i < 8; i++ {
			start := base.Add(time.Duration(rng.Intn(48)) * 15 * time.Minute)
			existing = append(existing, models.BookedInstance{
				Instance: models.Instance{
					ID:        string(rune('a' + i)),
					BookingID: "other",
					SideID:    "side-a",
					Start:     start,
					End:       start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute),
					Racks:     randomRacks(rng),
				},
				BookingTitle: "Other",
			})
		}
		start := base.Add(time.Duration(rng.Intn(48)) * 15 * time.Minute)
		candidate := models.InstanceDescriptor{
			SideID: "side-a",
			Start:  start,
			End:    start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute),
			Racks:  randomRacks(rng),
		}

		got := svc.Detect(candidate, existing, "")

		want := 0
		for _, e := range existing {
			if !Overlaps(candidate.Start, candidate.End, e.Start, e.End) {
				continue
			}
			for _, r := range e.Racks {
				for _, c := range candidate.Racks {
					if r == c {
						want++
					}
				}
			}
		}
		require.Len(t, got, want, "round %d", round)
		for _, triple := range got {
			assert.True(t, triple.Start.Before(candidate.End) && candidate.Start.Before(triple.End))
			assert.Contains(t, candidate.Racks, triple.Rack)
		}
	}
}

func TestConflictServiceCheckBatchCountsEarlierCandidates(t *testing.T) {
	store := newMemoryStore()
	svc := NewConflictService(store, time.UTC, nil)

	candidates := []models.InstanceDescriptor{
		{ID: "n1", SideID: "side-a", Start: at(2024, 6, 19, 9, 0), End: at(2024, 6, 19, 10, 0), Racks: []int64{1}},
		{ID: "n2", SideID: "side-a", Start: at(2024, 6, 19, 9, 30), End: at(2024, 6, 19, 10, 30), Racks: []int64{1}},
		{ID: "n3", SideID: "side-a", Start: at(2024, 6, 26, 9, 0), End: at(2024, 6, 26, 10, 0), Racks: []int64{1}},
	}

	reports, err := svc.CheckBatch(context.Background(), candidates, "")
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.False(t, reports[0].HasConflicts())
	require.True(t, reports[1].HasConflicts())
	assert.Equal(t, "n1", reports[1].Conflicts[0].InstanceID)
	assert.Equal(t, "this booking", reports[1].Conflicts[0].BookingTitle)
	assert.False(t, reports[2].HasConflicts())
}

func TestConflictServiceStoreFailureIsRetryable(t *testing.T) {
	store := newMemoryStore()
	store.fetchErr = errors.New("connection reset")
	svc := NewConflictService(store, time.UTC, nil)

	_, err := svc.Check(context.Background(), models.InstanceDescriptor{SideID: "side-a", Start: at(2024, 6, 19, 9, 0), End: at(2024, 6, 19, 10, 0), Racks: []int64{1}}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErr.Code)
	assert.True(t, appErr.Retryable)
}

func randomRacks(rng *rand.Rand) []int64 {
	n := 1 + rng.Intn(3)
	seen := map[int64]bool{}
	var racks []int64
	for len(racks) < n {
		r := int64(1 + rng.Intn(6))
		if seen[r] {
			continue
		}
		seen[r] = true
		racks = append(racks, r)
	}
	return racks
}
