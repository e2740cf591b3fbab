package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/models"
	appErrors "github.com/noah-isme/rackbook-api/pkg/errors"
)

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Intervals that only
// touch at a boundary do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// ConflictService detects rack/time overlaps between a candidate instance and
// other bookings on the same side.
type ConflictService struct {
	instances InstanceStore
	loc       *time.Location
	logger    *zap.Logger
}

// NewConflictService constructs a ConflictService.
func NewConflictService(instances InstanceStore, loc *time.Location, logger *zap.Logger) *ConflictService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{instances: instances, loc: loc, logger: logger}
}

// Check queries overlapping instances and reports rack conflicts for candidate,
// ignoring every instance of excludeBookingID.
func (s *ConflictService) Check(ctx context.Context, candidate models.InstanceDescriptor, excludeBookingID string) (*models.ConflictReport, error) {
	existing, err := s.instances.FetchOverlapping(ctx, candidate.SideID, candidate.Start, candidate.End, excludeBookingID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load overlapping instances")
	}
	return &models.ConflictReport{Candidate: candidate, Conflicts: s.Detect(candidate, existing, excludeBookingID)}, nil
}

// CheckBatch checks each candidate against persisted instances and against
// the candidates earlier in the batch. Reports are returned in input order.
func (s *ConflictService) CheckBatch(ctx context.Context, candidates []models.InstanceDescriptor, excludeBookingID string) ([]models.ConflictReport, error) {
	reports := make([]models.ConflictReport, 0, len(candidates))
	accepted := make([]models.BookedInstance, 0, len(candidates))
	for _, candidate := range candidates {
		report, err := s.Check(ctx, candidate, excludeBookingID)
		if err != nil {
			return nil, err
		}
		report.Conflicts = mergeTriples(report.Conflicts, s.detectPending(candidate, accepted))
		reports = append(reports, *report)
		accepted = append(accepted, pendingInstance(candidate))
	}
	return reports, nil
}

// Detect is the pure overlap predicate over a supplied set of instances.
func (s *ConflictService) Detect(candidate models.InstanceDescriptor, existing []models.BookedInstance, excludeBookingID string) []models.ConflictTriple {
	racks := rackSet(candidate.Racks)
	var triples []models.ConflictTriple
	for _, other := range existing {
		if other.SideID != candidate.SideID {
			continue
		}
		if excludeBookingID != "" && other.BookingID == excludeBookingID {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if !Overlaps(candidate.Start, candidate.End, other.Start, other.End) {
			continue
		}
		for _, rack := range other.Racks {
			if _, ok := racks[rack]; !ok {
				continue
			}
			triples = append(triples, models.ConflictTriple{
				Rack:         rack,
				BookingID:    other.BookingID,
				BookingTitle: other.BookingTitle,
				InstanceID:   other.ID,
				Start:        other.Start,
				End:          other.End,
				TimeRange:    s.formatRange(other.Start, other.End),
			})
		}
	}
	sortTriples(triples)
	return dedupeTriples(triples)
}

// detectPending checks the candidate against earlier candidates of the same
// batch, which share the candidate's booking and are not excluded.
func (s *ConflictService) detectPending(candidate models.InstanceDescriptor, pending []models.BookedInstance) []models.ConflictTriple {
	return s.Detect(candidate, pending, "")
}

func (s *ConflictService) formatRange(start, end time.Time) string {
	start = start.In(s.loc)
	end = end.In(s.loc)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return fmt.Sprintf("%s %s-%s", start.Format("Mon 02 Jan"), start.Format("15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Mon 02 Jan 15:04"), end.Format("Mon 02 Jan 15:04"))
}

func pendingInstance(d models.InstanceDescriptor) models.BookedInstance {
	inst := d.Instance()
	if inst.ID == "" {
		inst.ID = fmt.Sprintf("pending-%d", d.Start.Unix())
	}
	return models.BookedInstance{Instance: inst, BookingTitle: "this booking"}
}

func rackSet(racks []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(racks))
	for _, r := range racks {
		set[r] = struct{}{}
	}
	return set
}

func sortTriples(triples []models.ConflictTriple) {
	sort.SliceStable(triples, func(i, j int) bool {
		a, b := triples[i], triples[j]
		if a.Rack != b.Rack {
			return a.Rack < b.Rack
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.BookingTitle != b.BookingTitle {
			return a.BookingTitle < b.BookingTitle
		}
		return a.InstanceID < b.InstanceID
	})
}

func dedupeTriples(triples []models.ConflictTriple) []models.ConflictTriple {
	if len(triples) < 2 {
		return triples
	}
	out := triples[:1]
	for _, t := range triples[1:] {
		last := out[len(out)-1]
		if last.Rack == t.Rack && last.InstanceID == t.InstanceID {
			continue
		}
		out = append(out, t)
	}
	return out
}

func mergeTriples(a, b []models.ConflictTriple) []models.ConflictTriple {
	if len(b) == 0 {
		return a
	}
	merged := append(append([]models.ConflictTriple(nil), a...), b...)
	sortTriples(merged)
	return dedupeTriples(merged)
}
