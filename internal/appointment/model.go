package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingState string

const (
	StatePending   BookingState = "pending"
	StateCompleted BookingState = "completed"
	StateCancelled BookingState = "cancelled"
)

// Party identifies which side of a booking a record belongs to.
type Party string

const (
	PartyPractitioner Party = "practitioner"
	PartyClient       Party = "client"
)

// Role is an account role that links the account to a party record.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole matches role names case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleDoctor:
		return RoleDoctor, true
	case RolePatient:
		return RolePatient, true
	}
	return "", false
}

// Party returns the party record a role is backed by.
func (r Role) Party() Party {
	if r == RoleDoctor {
		return PartyPractitioner
	}
	return PartyClient
}

type Practitioner struct {
	ID         uuid.UUID
	AccountID  *uuid.UUID
	Name       string
	Department Department
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Client struct {
	ID             uuid.UUID
	AccountID      *uuid.UUID
	Name           string
	IdentityNumber string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Booking holds canonical (UTC) start/end instants. Completed and Cancelled
// are independent flags; a cancelled booking is kept for history only.
type Booking struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	ClientID       uuid.UUID
	Start          time.Time
	End            time.Time
	Note           string
	Completed      bool
	Cancelled      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b Booking) State() BookingState {
	switch {
	case b.Cancelled:
		return StateCancelled
	case b.Completed:
		return StateCompleted
	default:
		return StatePending
	}
}

// BookingView is a booking joined with the party fields the availability
// grid needs.
type BookingView struct {
	Booking
	ClientName         string
	PractitionerActive bool
	ClientActive       bool
}

// AvailabilitySlot is one cell of the weekly grid. It is derived on every
// request and never stored.
type AvailabilitySlot struct {
	Time       string
	Busy       bool
	Title      string
	BookingID  *uuid.UUID
	ClientName string
	Note       string
}

type DayAvailability struct {
	Date  time.Time // midnight in the display zone
	Slots []AvailabilitySlot
}

// BookingFilter narrows ListBookings. Zero values mean "any".
type BookingFilter struct {
	PractitionerID   uuid.UUID
	ClientID         uuid.UUID
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	PartyID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// CascadeResult reports what a party deactivation touched.
type CascadeResult struct {
	Party     Party
	PartyID   uuid.UUID
	Cancelled int
}
