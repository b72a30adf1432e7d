package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const daysPerWeek = 7

// untitledBooking labels a busy slot whose client name could not be resolved.
const untitledBooking = "Booked"

// StartOfWeek returns midnight of the Monday on or before t, in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	diff := int(time.Monday - day.Weekday())
	if day.Weekday() == time.Sunday {
		diff = -6
	}
	return day.AddDate(0, 0, diff)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// countsTowardAvailability reports whether a booking may mark a slot busy.
func countsTowardAvailability(v BookingView, practitionerID uuid.UUID) bool {
	return v.PractitionerID == practitionerID &&
		!v.Cancelled &&
		v.PractitionerActive &&
		v.ClientActive
}

// BuildWeek maps bookings onto a Monday..Sunday grid of layout's slots.
// Days are calendar days in loc; a booking is matched against the day its
// start falls on. Bookings of other practitioners, cancelled bookings and
// bookings of inactive parties never mark a slot busy.
func BuildWeek(practitionerID uuid.UUID, weekStart time.Time, layout SlotLayout, loc *time.Location, bookings []BookingView) []DayAvailability {
	if loc == nil {
		loc = time.UTC
	}
	monday := StartOfWeek(weekStart, loc)

	days := make([]DayAvailability, 0, daysPerWeek)
	for i := 0; i < daysPerWeek; i++ {
		date := monday.AddDate(0, 0, i)
		slots := layout.emptyDay()

		for _, b := range bookings {
			if !countsTowardAvailability(b, practitionerID) {
				continue
			}
			if !sameDate(b.Start.In(loc), date) {
				continue
			}
			for j := range slots {
				slotStart, slotEnd := layout.rangeOn(date, j)
				if !Overlaps(b.Start, b.End, slotStart, slotEnd) {
					continue
				}
				id := b.ID
				slots[j].Busy = true
				slots[j].BookingID = &id
				slots[j].ClientName = b.ClientName
				slots[j].Note = b.Note
				slots[j].Title = b.ClientName
				if slots[j].Title == "" {
					slots[j].Title = untitledBooking
				}
			}
		}

		days = append(days, DayAvailability{Date: date, Slots: slots})
	}
	return days
}

// BuildWeek loads the practitioner's bookings for the week that
// contains weekStart and builds the grid. An inactive practitioner yields an
// all-free grid.
func (s *Service) BuildWeek(ctx context.Context, practitionerID uuid.UUID, weekStart time.Time) ([]DayAvailability, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.build_week")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.practitioner_id", practitionerID.String()))

	started := time.Now()
	days, err := s.buildWeek(ctx, practitionerID, weekStart)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveAvailabilityBuild(time.Since(started).Seconds())
	return days, nil
}

func (s *Service) buildWeek(ctx context.Context, practitionerID uuid.UUID, weekStart time.Time) ([]DayAvailability, error) {
	if practitionerID == uuid.Nil {
		return nil, validationError("practitioner id is required")
	}
	if weekStart.IsZero() {
		return nil, validationError("week start is required")
	}

	if _, err := s.repo.FindPractitioner(ctx, practitionerID); err != nil {
		return nil, wrapLookup("load practitioner", err)
	}

	monday := StartOfWeek(weekStart, s.loc)
	rangeStart := Normalize(monday)
	rangeEnd := Normalize(monday.AddDate(0, 0, daysPerWeek))

	views, err := s.repo.ListBookingsInRange(ctx, practitionerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list bookings in range: %w", err)
	}

	if err := s.resolveClientNames(ctx, views); err != nil {
		return nil, err
	}

	return BuildWeek(practitionerID, monday, s.layout, s.loc, views), nil
}

// resolveClientNames fills ClientName for rows the store returned without
// the join, loading each client at most once.
func (s *Service) resolveClientNames(ctx context.Context, views []BookingView) error {
	cache := make(map[uuid.UUID]string)
	for i := range views {
		if views[i].ClientName != "" {
			continue
		}
		name, ok := cache[views[i].ClientID]
		if !ok {
			c, err := s.repo.FindClient(ctx, views[i].ClientID)
			switch {
			case err == nil:
				name = c.Name
			case errors.Is(err, ErrClientNotFound):
				name = ""
			default:
				return fmt.Errorf("load client: %w", err)
			}
			cache[views[i].ClientID] = name
		}
		views[i].ClientName = name
	}
	return nil
}
