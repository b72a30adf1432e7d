package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching ranges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first non-cancelled booking in bookings that
// intersects [start, end), skipping exclude. Completed bookings still count.
func FindConflict(bookings []Booking, start, end time.Time, exclude uuid.UUID) (Booking, bool) {
	for _, b := range bookings {
		if b.Cancelled {
			continue
		}
		if exclude != uuid.Nil && b.ID == exclude {
			continue
		}
		if Overlaps(b.Start, b.End, start, end) {
			return b, true
		}
	}
	return Booking{}, false
}

// HasConflict checks the practitioner's active bookings against a candidate
// range. Pass uuid.Nil as exclude when there is no booking to skip.
func (s *Service) HasConflict(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	bookings, err := s.repo.ListActiveBookingsForPractitioner(ctx, practitionerID)
	if err != nil {
		return false, fmt.Errorf("list active bookings: %w", err)
	}
	_, found := FindConflict(bookings, Normalize(start), Normalize(end), exclude)
	return found, nil
}
