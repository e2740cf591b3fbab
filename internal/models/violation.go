package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConflictTriple is one rack overlap between a candidate and another booking.
type ConflictTriple struct {
	Rack         int64     `json:"rack"`
	BookingID    string    `json:"booking_id"`
	BookingTitle string    `json:"booking_title"`
	InstanceID   string    `json:"instance_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TimeRange    string    `json:"time_range"`
}

// ConflictReport lists the overlaps found for one candidate instance.
type ConflictReport struct {
	Candidate InstanceDescriptor `json:"candidate"`
	Conflicts []ConflictTriple   `json:"conflicts"`
}

// HasConflicts reports whether any overlap was found.
func (r *ConflictReport) HasConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}

// BookingConflictGroup collects the racks and sessions clashing with one booking.
type BookingConflictGroup struct {
	BookingID    string           `json:"booking_id"`
	BookingTitle string           `json:"booking_title"`
	Racks        []int64          `json:"racks"`
	Sessions     []ConflictTriple `json:"sessions"`
}

// GroupByBooking groups the report's triples by conflicting booking, ordered by title.
func (r *ConflictReport) GroupByBooking() []BookingConflictGroup {
	if r == nil {
		return nil
	}
	index := make(map[string]int)
	var groups []BookingConflictGroup
	for _, c := range r.Conflicts {
		pos, ok := index[c.BookingID]
		if !ok {
			pos = len(groups)
			index[c.BookingID] = pos
			groups = append(groups, BookingConflictGroup{BookingID: c.BookingID, BookingTitle: c.BookingTitle})
		}
		g := &groups[pos]
		if !containsRack(g.Racks, c.Rack) {
			g.Racks = append(g.Racks, c.Rack)
		}
		g.Sessions = append(g.Sessions, c)
	}
	for i := range groups {
		sort.Slice(groups[i].Racks, func(a, b int) bool { return groups[i].Racks[a] < groups[i].Racks[b] })
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].BookingTitle != groups[b].BookingTitle {
			return groups[a].BookingTitle < groups[b].BookingTitle
		}
		return groups[a].BookingID < groups[b].BookingID
	})
	return groups
}

func containsRack(racks []int64, rack int64) bool {
	for _, r := range racks {
		if r == rack {
			return true
		}
	}
	return false
}

// ViolationKind classifies why a candidate was blocked.
type ViolationKind string

const (
	ViolationConflict         ViolationKind = "conflict"
	ViolationCapacityExceeded ViolationKind = "capacity_exceeded"
	ViolationClosedPeriod     ViolationKind = "closed_period"
	ViolationRackUnavailable  ViolationKind = "rack_unavailable"
)

// CapacityViolation describes the capacity rule a candidate breaks.
type CapacityViolation struct {
	Kind        ViolationKind `json:"kind"`
	ScheduleID  string        `json:"schedule_id,omitempty"`
	PeriodType  PeriodType    `json:"period_type"`
	PeakTime    time.Time     `json:"peak_time"`
	Used        int           `json:"used"`
	Limit       int           `json:"limit"`
	Unavailable []int64       `json:"unavailable_racks,omitempty"`
}

// Message renders the violation for display.
func (v *CapacityViolation) Message() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case ViolationClosedPeriod:
		return fmt.Sprintf("facility is closed at %s", v.PeakTime.Format("Mon 02 Jan 15:04"))
	case ViolationRackUnavailable:
		return fmt.Sprintf("racks %s are not available during %s at %s", joinRacks(v.Unavailable), v.PeriodType, v.PeakTime.Format("Mon 02 Jan 15:04"))
	default:
		return fmt.Sprintf("%s capacity exceeded at %s: %d of %d athletes", v.PeriodType, v.PeakTime.Format("Mon 02 Jan 15:04"), v.Used, v.Limit)
	}
}

func joinRacks(racks []int64) string {
	parts := make([]string, len(racks))
	for i, r := range racks {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(parts, ", ")
}

// Violation is one blocking finding for one candidate instance.
type Violation struct {
	Kind      ViolationKind          `json:"kind"`
	Candidate InstanceDescriptor     `json:"candidate"`
	Conflicts []BookingConflictGroup `json:"conflicts,omitempty"`
	Capacity  *CapacityViolation     `json:"capacity,omitempty"`
	Message   string                 `json:"message"`
}

// MutationBlockedError is returned when any candidate of a mutation is blocked.
// Nothing is written when it is returned.
type MutationBlockedError struct {
	Operation  string      `json:"operation"`
	Violations []Violation `json:"violations"`
}

// Error implements the error interface.
func (e *MutationBlockedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s blocked by %d violation(s)", e.Operation, len(e.Violations))
}

// PrimaryKind returns the kind of the first violation.
func (e *MutationBlockedError) PrimaryKind() ViolationKind {
	if e == nil || len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0].Kind
}
