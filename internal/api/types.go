package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-appointment-scheduling/internal/appointment"
)

// BookingRequest is the body of POST /bookings and PUT /bookings/{id}.
// Start and end accept RFC 3339 or a zone-less timestamp read as UTC.
type BookingRequest struct {
	PractitionerID string `json:"practitioner_id"`
	ClientID       string `json:"client_id"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Note           string `json:"note"`
	Completed      bool   `json:"completed"`
}

type BookingResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	ClientID       uuid.UUID `json:"client_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Note           string    `json:"note"`
	Completed      bool      `json:"completed"`
	Cancelled      bool      `json:"cancelled"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toBookingResponse(b *appointment.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		PractitionerID: b.PractitionerID,
		ClientID:       b.ClientID,
		Start:          b.Start,
		End:            b.End,
		Note:           b.Note,
		Completed:      b.Completed,
		Cancelled:      b.Cancelled,
		State:          string(b.State()),
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
}

type SlotResponse struct {
	Time       string     `json:"time"`
	Busy       bool       `json:"busy"`
	Title      string     `json:"title,omitempty"`
	BookingID  *uuid.UUID `json:"booking_id,omitempty"`
	ClientName string     `json:"client_name,omitempty"`
	Note       string     `json:"note,omitempty"`
}

type DayResponse struct {
	Date    string         `json:"date"`
	Weekday string         `json:"weekday"`
	Slots   []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	PractitionerID uuid.UUID     `json:"practitioner_id"`
	WeekStart      string        `json:"week_start"`
	Timezone       string        `json:"timezone"`
	Days           []DayResponse `json:"days"`
}

func toAvailabilityResponse(practitionerID uuid.UUID, loc *time.Location, days []appointment.DayAvailability) AvailabilityResponse {
	resp := AvailabilityResponse{
		PractitionerID: practitionerID,
		Timezone:       loc.String(),
		Days:           make([]DayResponse, 0, len(days)),
	}
	if len(days) > 0 {
		resp.WeekStart = days[0].Date.Format(time.DateOnly)
	}
	for _, d := range days {
		day := DayResponse{
			Date:    d.Date.Format(time.DateOnly),
			Weekday: d.Date.Weekday().String(),
			Slots:   make([]SlotResponse, 0, len(d.Slots)),
		}
		for _, s := range d.Slots {
			day.Slots = append(day.Slots, SlotResponse{
				Time:       s.Time,
				Busy:       s.Busy,
				Title:      s.Title,
				BookingID:  s.BookingID,
				ClientName: s.ClientName,
				Note:       s.Note,
			})
		}
		resp.Days = append(resp.Days, day)
	}
	return resp
}

// PractitionerRequest takes the department as its number or name.
type PractitionerRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	AccountID  string `json:"account_id,omitempty"`
}

type PractitionerResponse struct {
	ID                uuid.UUID  `json:"id"`
	AccountID         *uuid.UUID `json:"account_id,omitempty"`
	Name              string     `json:"name"`
	Department        string     `json:"department"`
	DepartmentDisplay string     `json:"department_display"`
	Active            bool       `json:"active"`
}

func toPractitionerResponse(p *appointment.Practitioner) PractitionerResponse {
	return PractitionerResponse{
		ID:                p.ID,
		AccountID:         p.AccountID,
		Name:              p.Name,
		Department:        p.Department.String(),
		DepartmentDisplay: p.Department.DisplayName(),
		Active:            p.Active,
	}
}

type ClientRequest struct {
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	AccountID      string `json:"account_id,omitempty"`
}

type ClientResponse struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      *uuid.UUID `json:"account_id,omitempty"`
	Name           string     `json:"name"`
	IdentityNumber string     `json:"identity_number"`
	Active         bool       `json:"active"`
}

func toClientResponse(c *appointment.Client) ClientResponse {
	return ClientResponse{
		ID:             c.ID,
		AccountID:      c.AccountID,
		Name:           c.Name,
		IdentityNumber: c.IdentityNumber,
		Active:         c.Active,
	}
}

type CascadeResponse struct {
	Party     string    `json:"party"`
	PartyID   uuid.UUID `json:"party_id"`
	Cancelled int       `json:"cancelled_bookings"`
}

type FutureBookingsResponse struct {
	Party             string    `json:"party"`
	PartyID           uuid.UUID `json:"party_id"`
	FutureBookings    int       `json:"future_bookings"`
	HasFutureBookings bool      `json:"has_future_bookings"`
}

// RevokeResponse reports Linked=false when the account had no party for
// the role.
type RevokeResponse struct {
	Linked  bool             `json:"linked"`
	Cascade *CascadeResponse `json:"cascade,omitempty"`
}

type SweepResponse struct {
	Completed int `json:"completed"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
