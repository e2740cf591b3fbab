package dto

import (
	"time"

	"github.com/noah-isme/rackbook-api/internal/models"
)

// CandidateRequest describes a proposed instance for the check endpoints.
type CandidateRequest struct {
	InstanceID       string    `json:"instanceId"`
	BookingID        string    `json:"bookingId"`
	ExcludeBookingID string    `json:"excludeBookingId"`
	SideID           string    `json:"sideId" validate:"required"`
	Start            time.Time `json:"start" validate:"required"`
	End              time.Time `json:"end" validate:"required,gtfield=Start"`
	Racks            []int64   `json:"racks" validate:"required,min=1,dive,gt=0"`
	Capacity         int       `json:"capacity" validate:"gte=0"`
}

// Descriptor converts the request into an engine descriptor.
func (r CandidateRequest) Descriptor() models.InstanceDescriptor {
	return models.InstanceDescriptor{
		ID:        r.InstanceID,
		BookingID: r.BookingID,
		SideID:    r.SideID,
		Start:     r.Start,
		End:       r.End,
		Racks:     append([]int64(nil), r.Racks...),
		Capacity:  r.Capacity,
	}
}

// ConflictCheckResponse is the conflict report of one candidate.
type ConflictCheckResponse struct {
	HasConflicts bool                          `json:"hasConflicts"`
	Conflicts    []models.ConflictTriple       `json:"conflicts"`
	Groups       []models.BookingConflictGroup `json:"groups"`
}

// CapacityCheckResponse is the capacity verdict of one candidate.
type CapacityCheckResponse struct {
	Valid     bool                      `json:"valid"`
	Violation *models.CapacityViolation `json:"violation,omitempty"`
	Message   string                    `json:"message,omitempty"`
}

// CreateBookingRequest creates a booking and its weekly series.
type CreateBookingRequest struct {
	Title      string    `json:"title" validate:"required,max=120"`
	SideID     string    `json:"sideId" validate:"required"`
	Color      string    `json:"color" validate:"omitempty,max=32"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
	Racks      []int64   `json:"racks" validate:"required,min=1,dive,gt=0"`
	Areas      []string  `json:"areas"`
	Capacity   int       `json:"capacity" validate:"gte=0"`
	Weeks      int       `json:"weeks" validate:"omitempty,gte=1"`
	WeekOffset int       `json:"weekOffset" validate:"gte=0"`
	DryRun     bool      `json:"dryRun"`
}

// ExtendBookingRequest appends weeks to a series.
type ExtendBookingRequest struct {
	Weeks  int  `json:"weeks" validate:"required,gte=1"`
	DryRun bool `json:"dryRun"`
}

// EditInstancesRequest changes time, racks, areas or capacity of a selection of instances.
// StartTime/EndTime are "HH:MM" applied to each selected instance's own date.
type EditInstancesRequest struct {
	InstanceIDs []string `json:"instanceIds" validate:"omitempty,dive,required"`
	ApplyToAll  bool     `json:"applyToAll"`
	StartTime   *string  `json:"startTime" validate:"omitempty"`
	EndTime     *string  `json:"endTime" validate:"omitempty"`
	Racks       []int64  `json:"racks" validate:"omitempty,min=1,dive,gt=0"`
	Areas       []string `json:"areas"`
	Capacity    *int     `json:"capacity" validate:"omitempty,gte=0"`
	DryRun      bool     `json:"dryRun"`
}

// HasChanges reports whether the request modifies anything.
func (r EditInstancesRequest) HasChanges() bool {
	return r.StartTime != nil || r.EndTime != nil || r.Racks != nil || r.Areas != nil || r.Capacity != nil
}

// CancelMode selects which instances of a series a cancellation covers.
type CancelMode string

const (
	CancelSingle CancelMode = "single"
	CancelFuture CancelMode = "future"
	CancelAll    CancelMode = "all"
)

// CancelRequest cancels part or all of a series.
type CancelRequest struct {
	InstanceID string     `json:"instanceId"`
	Mode       CancelMode `json:"mode" validate:"required,oneof=single future all"`
	DryRun     bool       `json:"dryRun"`
}

// ProcessBookingsRequest marks pending bookings as processed.
type ProcessBookingsRequest struct {
	BookingIDs []string `json:"bookingIds" validate:"required,min=1,dive,required"`
}

// ProcessResult is the outcome for one booking of a bulk process.
type ProcessResult struct {
	BookingID string               `json:"bookingId"`
	Processed bool                 `json:"processed"`
	Status    models.BookingStatus `json:"status,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// MutationPlan is an accepted mutation, committed or not.
type MutationPlan struct {
	Operation   string                      `json:"operation"`
	BookingID   string                      `json:"bookingId"`
	WeekOffset  int                         `json:"weekOffset,omitempty"`
	Create      []models.InstanceDescriptor `json:"create,omitempty"`
	Update      []models.InstanceDescriptor `json:"update,omitempty"`
	Delete      []string                    `json:"delete,omitempty"`
	StatusAfter models.BookingStatus        `json:"statusAfter"`
	LastMinute  bool                        `json:"lastMinute"`
	Committed   bool                        `json:"committed"`
}

// CutoffResponse reports the deadline for a session date.
type CutoffResponse struct {
	Date        string    `json:"date"`
	Cutoff      time.Time `json:"cutoff"`
	AfterCutoff bool      `json:"afterCutoff"`
}
