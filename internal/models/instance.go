package models

import (
	"sort"
	"time"

	"github.com/lib/pq"
)

// Instance is one concrete occurrence of a booking.
type Instance struct {
	ID        string         `db:"id" json:"id"`
	BookingID string         `db:"booking_id" json:"booking_id"`
	SideID    string         `db:"side_id" json:"side_id"`
	Start     time.Time      `db:"start_time" json:"start"`
	End       time.Time      `db:"end_time" json:"end"`
	Racks     pq.Int64Array  `db:"racks" json:"racks"`
	Areas     pq.StringArray `db:"areas" json:"areas"`
	Capacity  int            `db:"capacity" json:"capacity"`
	IsLocked  bool           `db:"is_locked" json:"is_locked"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// BookedInstance is an instance joined with its parent booking title.
type BookedInstance struct {
	Instance
	BookingTitle string `db:"booking_title" json:"booking_title"`
}

// InstanceDescriptor is a proposed instance that has not been persisted.
type InstanceDescriptor struct {
	ID        string    `json:"id,omitempty"`
	BookingID string    `json:"booking_id"`
	SideID    string    `json:"side_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Racks     []int64   `json:"racks"`
	Areas     []string  `json:"areas"`
	Capacity  int       `json:"capacity"`
}

// Descriptor converts a persisted instance into a candidate descriptor.
func (i Instance) Descriptor() InstanceDescriptor {
	return InstanceDescriptor{
		ID:        i.ID,
		BookingID: i.BookingID,
		SideID:    i.SideID,
		Start:     i.Start,
		End:       i.End,
		Racks:     append([]int64(nil), i.Racks...),
		Areas:     append([]string(nil), i.Areas...),
		Capacity:  i.Capacity,
	}
}

// Instance converts the descriptor into a row ready to be written.
func (d InstanceDescriptor) Instance() Instance {
	return Instance{
		ID:        d.ID,
		BookingID: d.BookingID,
		SideID:    d.SideID,
		Start:     d.Start,
		End:       d.End,
		Racks:     pq.Int64Array(append([]int64(nil), d.Racks...)),
		Areas:     pq.StringArray(append([]string(nil), d.Areas...)),
		Capacity:  d.Capacity,
	}
}

// SortInstances orders instances by start time then id.
func SortInstances(items []Instance) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].ID < items[j].ID
	})
}

// InstanceChangeSet groups the writes of one accepted mutation. It is
// persisted all-or-nothing.
type InstanceChangeSet struct {
	Booking       *Booking             `json:"booking,omitempty"`
	Create        []Instance           `json:"create,omitempty"`
	Update        []Instance           `json:"update,omitempty"`
	Delete        []string             `json:"delete,omitempty"`
	BookingStatus *BookingStatusUpdate `json:"-"`
}

// Empty reports whether the change set carries no writes.
func (c InstanceChangeSet) Empty() bool {
	return c.Booking == nil && len(c.Create) == 0 && len(c.Update) == 0 && len(c.Delete) == 0 && c.BookingStatus == nil
}
