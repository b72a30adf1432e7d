package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the service.
//
// Every query that feeds overlap or availability decisions filters on
// cancelled = false and on active parties explicitly; there is no implicit
// global filter. The store must reject two active bookings of one
// practitioner with intersecting ranges (ErrBookingOverlap) even under
// concurrent writers.
type Repository interface {
	// Parties
	FindPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	FindPractitionerByAccount(ctx context.Context, accountID uuid.UUID) (*Practitioner, error)
	FindClient(ctx context.Context, id uuid.UUID) (*Client, error)
	FindClientByAccount(ctx context.Context, accountID uuid.UUID) (*Client, error)
	CreatePractitioner(ctx context.Context, p Practitioner) (*Practitioner, error)
	CreateClient(ctx context.Context, c Client) (*Client, error)
	// DeactivateParty sets active = false and clears the account link.
	DeactivateParty(ctx context.Context, party Party, id uuid.UUID) error
	DeleteParty(ctx context.Context, party Party, id uuid.UUID) error

	// Reads
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// For conflict checks: cancelled = false, both parties active.
	ListActiveBookingsForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Booking, error)
	// For the availability grid: cancelled = false, both parties active,
	// range intersecting [start, end).
	ListBookingsInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]BookingView, error)
	// For the cascade: cancelled = false regardless of party state.
	ListOpenBookingsForParty(ctx context.Context, party Party, id uuid.UUID) ([]Booking, error)
	CountFutureActiveBookings(ctx context.Context, party Party, id uuid.UUID, now time.Time) (int, error)
	CountBookingsForParty(ctx context.Context, party Party, id uuid.UUID) (int, error)

	// Writes
	//
	// SaveBooking and UpdateBooking only write while both parties exist and
	// are active, returning the NotFound or Inactive sentinel otherwise, and
	// a party deactivated concurrently never ends up with a new open booking.
	// UpdateBooking also refuses a cancelled row (ErrBookingCancelled) and
	// resetting completed on a completed row (ErrBookingCompleted).
	SaveBooking(ctx context.Context, b Booking) (*Booking, error)
	UpdateBooking(ctx context.Context, b Booking) (*Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error

	// Sweep
	ListSweepCandidates(ctx context.Context, now time.Time) ([]Booking, error)
	// MarkCompleted flips completed only while the booking is still pending;
	// it reports whether a row changed.
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
