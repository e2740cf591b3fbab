package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/rackbook-api/internal/models"
)

// memoryStore is an in-memory row store implementing every engine store interface.
type memoryStore struct {
	mu        sync.Mutex
	bookings  map[string]*models.Booking
	instances map[string]models.Instance
	schedules []models.CapacitySchedule
	defaults  map[models.PeriodType][]int64

	persistErr error
	fetchErr   error
	persisted  []models.InstanceChangeSet
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings:  make(map[string]*models.Booking),
		instances: make(map[string]models.Instance),
		defaults:  make(map[models.PeriodType][]int64),
	}
}

func (m *memoryStore) addBooking(b models.Booking, instances ...models.Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	m.bookings[b.ID] = &b
	for _, inst := range instances {
		inst.BookingID = b.ID
		if inst.SideID == "" {
			inst.SideID = b.SideID
		}
		m.instances[inst.ID] = inst
	}
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *b
	return &copy, nil
}

func (m *memoryStore) FetchOverlapping(ctx context.Context, sideID string, start, end time.Time, excludeBookingID string) ([]models.BookedInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []models.BookedInstance
	for _, inst := range m.instances {
		if inst.SideID != sideID || inst.BookingID == excludeBookingID && excludeBookingID != "" {
			continue
		}
		if !Overlaps(start, end, inst.Start, inst.End) {
			continue
		}
		out = append(out, m.booked(inst))
	}
	sortBooked(out)
	return out, nil
}

func (m *memoryStore) ListByBooking(ctx context.Context, bookingID string) ([]models.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Instance
	for _, inst := range m.instances {
		if inst.BookingID == bookingID {
			out = append(out, inst)
		}
	}
	models.SortInstances(out)
	return out, nil
}

func (m *memoryStore) ListBySide(ctx context.Context, sideID string, from, to time.Time) ([]models.BookedInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BookedInstance
	for _, inst := range m.instances {
		if inst.SideID == sideID && Overlaps(from, to, inst.Start, inst.End) {
			out = append(out, m.booked(inst))
		}
	}
	sortBooked(out)
	return out, nil
}

func (m *memoryStore) FetchCapacitySchedules(ctx context.Context, sideID string, from, to time.Time) ([]models.CapacitySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CapacitySchedule
	for _, sc := range m.schedules {
		if sc.SideID == sideID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (m *memoryStore) FetchDefaultRacksForPeriodType(ctx context.Context, sideID string, periodType models.PeriodType) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults[periodType], nil
}

func (m *memoryStore) PersistInstanceChanges(ctx context.Context, changes models.InstanceChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistErr != nil {
		return m.persistErr
	}
	m.persisted = append(m.persisted, changes)
	if changes.Booking != nil {
		b := *changes.Booking
		m.bookings[b.ID] = &b
	}
	for _, inst := range changes.Create {
		m.instances[inst.ID] = inst
	}
	for _, inst := range changes.Update {
		existing := m.instances[inst.ID]
		inst.IsLocked = existing.IsLocked
		inst.CreatedAt = existing.CreatedAt
		m.instances[inst.ID] = inst
	}
	for _, id := range changes.Delete {
		delete(m.instances, id)
	}
	if u := changes.BookingStatus; u != nil {
		if b, ok := m.bookings[u.BookingID]; ok {
			b.Status = u.Status
			b.LastEditedBy = u.LastEditedBy
			b.LastEditedAt = u.LastEditedAt
			b.LastMinute = u.LastMinute
		}
	}
	return nil
}

func (m *memoryStore) instanceCount(bookingID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inst := range m.instances {
		if inst.BookingID == bookingID {
			n++
		}
	}
	return n
}

func (m *memoryStore) booked(inst models.Instance) models.BookedInstance {
	title := ""
	if b, ok := m.bookings[inst.BookingID]; ok {
		title = b.Title
	}
	return models.BookedInstance{Instance: inst, BookingTitle: title}
}

func sortBooked(items []models.BookedInstance) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].ID < items[j].ID
	})
}

type recordedMutation struct {
	operation string
	outcome   string
}

type metricsStub struct {
	calls []recordedMutation
}

func (m *metricsStub) RecordBookingMutation(operation, outcome string) {
	m.calls = append(m.calls, recordedMutation{operation: operation, outcome: outcome})
}

type notifierStub struct {
	events []models.BookingEvent
}

func (n *notifierStub) Notify(ctx context.Context, event models.BookingEvent) error {
	n.events = append(n.events, event)
	return nil
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func instance(id string, start time.Time, duration time.Duration, racks ...int64) models.Instance {
	return models.Instance{
		ID:       id,
		SideID:   "side-a",
		Start:    start,
		End:      start.Add(duration),
		Racks:    racks,
		Capacity: 1,
	}
}

func weekly(prefix string, first time.Time, duration time.Duration, count int, racks ...int64) []models.Instance {
	out := make([]models.Instance, count)
	for i := 0; i < count; i++ {
		out[i] = instance(prefix+string(rune('1'+i)), first.AddDate(0, 0, 7*i), duration, racks...)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}
