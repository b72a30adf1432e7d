package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-appointment-scheduling/internal/appointment"
)

// Scheduler is the part of appointment.Service the HTTP layer uses.
type Scheduler interface {
	Create(ctx context.Context, in appointment.BookingInput) (*appointment.Booking, error)
	Update(ctx context.Context, id uuid.UUID, in appointment.BookingInput) (*appointment.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	GetBooking(ctx context.Context, id uuid.UUID) (*appointment.Booking, error)
	ListBookings(ctx context.Context, filter appointment.BookingFilter) ([]appointment.Booking, error)
	Sweep(ctx context.Context, now time.Time) (int, error)

	BuildWeek(ctx context.Context, practitionerID uuid.UUID, weekStart time.Time) ([]appointment.DayAvailability, error)
	Location() *time.Location

	RegisterPractitioner(ctx context.Context, in appointment.PractitionerInput) (*appointment.Practitioner, error)
	RegisterClient(ctx context.Context, in appointment.ClientInput) (*appointment.Client, error)
	GetPractitioner(ctx context.Context, id uuid.UUID) (*appointment.Practitioner, error)
	GetClient(ctx context.Context, id uuid.UUID) (*appointment.Client, error)
	DeactivatePractitioner(ctx context.Context, id uuid.UUID) (*appointment.CascadeResult, error)
	DeactivateClient(ctx context.Context, id uuid.UUID) (*appointment.CascadeResult, error)
	PurgePractitioner(ctx context.Context, id uuid.UUID) error
	PurgeClient(ctx context.Context, id uuid.UUID) error
	CountFutureActiveBookings(ctx context.Context, party appointment.Party, id uuid.UUID, now time.Time) (int, error)
	RevokeRole(ctx context.Context, accountID uuid.UUID, role appointment.Role, now time.Time, force bool) (*appointment.CascadeResult, error)
}

type handlers struct {
	svc    Scheduler
	logger zerolog.Logger
	now    func() time.Time
}

func parseIDParam(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (h *handlers) bookingInput(w http.ResponseWriter, r *http.Request) (appointment.BookingInput, bool) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return appointment.BookingInput{}, false
	}

	practitionerID, err := uuid.Parse(req.PractitionerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
		return appointment.BookingInput{}, false
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
		return appointment.BookingInput{}, false
	}

	start, err := appointment.ParseInstant(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
		return appointment.BookingInput{}, false
	}
	end, err := appointment.ParseInstant(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
		return appointment.BookingInput{}, false
	}

	return appointment.BookingInput{
		PractitionerID: practitionerID,
		ClientID:       clientID,
		Start:          start,
		End:            end,
		Note:           req.Note,
		Completed:      req.Completed,
	}, true
}

// Bookings

func (h *handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	in, ok := h.bookingInput(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *handlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_booking_id")
	if !ok {
		return
	}
	in, ok := h.bookingInput(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_booking_id")
	if !ok {
		return
	}

	b, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) deleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_booking_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteBooking(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_booking_id")
	if !ok {
		return
	}

	b, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter appointment.BookingFilter

	if raw := q.Get("practitioner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		filter.PractitionerID = id
	}
	if raw := q.Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}
		filter.ClientID = id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := appointment.ParseInstant(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := appointment.ParseInstant(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
			return
		}
		filter.To = t
	}
	filter.IncludeCancelled, _ = strconv.ParseBool(q.Get("include_cancelled"))

	bookings, err := h.svc.ListBookings(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := BookingListResponse{Bookings: make([]BookingResponse, 0, len(bookings))}
	for i := range bookings {
		resp.Bookings = append(resp.Bookings, toBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Sweep(r.Context(), h.now())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Completed: n})
}

// Practitioners

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_practitioner_id")
	if !ok {
		return
	}

	loc := h.svc.Location()
	weekStart := h.now().In(loc)
	if raw := r.URL.Query().Get("week_start"); raw != "" {
		ws, err := appointment.ParseWeekStart(raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_week_start", err.Error())
			return
		}
		weekStart = ws
	}

	days, err := h.svc.BuildWeek(r.Context(), id, weekStart)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityResponse(id, loc, days))
}

func (h *handlers) createPractitioner(w http.ResponseWriter, r *http.Request) {
	var req PractitionerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	department, ok := appointment.ParseDepartment(req.Department)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_department", "unknown department "+strconv.Quote(req.Department))
		return
	}
	accountID, err := parseOptionalUUID(req.AccountID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_account_id", "account_id must be a valid UUID")
		return
	}

	p, err := h.svc.RegisterPractitioner(r.Context(), appointment.PractitionerInput{
		Name:       req.Name,
		Department: department,
		AccountID:  accountID,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPractitionerResponse(p))
}

func (h *handlers) getPractitioner(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_practitioner_id")
	if !ok {
		return
	}

	p, err := h.svc.GetPractitioner(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPractitionerResponse(p))
}

func (h *handlers) deletePractitioner(w http.ResponseWriter, r *http.Request) {
	h.deleteParty(w, r, appointment.PartyPractitioner)
}

func (h *handlers) deleteClient(w http.ResponseWriter, r *http.Request) {
	h.deleteParty(w, r, appointment.PartyClient)
}

// deleteParty deactivates by default; ?hard=true purges a party without
// booking history.
func (h *handlers) deleteParty(w http.ResponseWriter, r *http.Request, party appointment.Party) {
	id, ok := parseIDParam(w, r, "invalid_"+string(party)+"_id")
	if !ok {
		return
	}

	if hard, _ := strconv.ParseBool(r.URL.Query().Get("hard")); hard {
		purge := h.svc.PurgeClient
		if party == appointment.PartyPractitioner {
			purge = h.svc.PurgePractitioner
		}
		if err := purge(r.Context(), id); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	deactivate := h.svc.DeactivateClient
	if party == appointment.PartyPractitioner {
		deactivate = h.svc.DeactivatePractitioner
	}
	result, err := deactivate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCascadeResponse(result))
}

func toCascadeResponse(result *appointment.CascadeResult) CascadeResponse {
	return CascadeResponse{
		Party:     string(result.Party),
		PartyID:   result.PartyID,
		Cancelled: result.Cancelled,
	}
}

func (h *handlers) practitionerFutureBookings(w http.ResponseWriter, r *http.Request) {
	h.futureBookings(w, r, appointment.PartyPractitioner)
}

func (h *handlers) clientFutureBookings(w http.ResponseWriter, r *http.Request) {
	h.futureBookings(w, r, appointment.PartyClient)
}

func (h *handlers) futureBookings(w http.ResponseWriter, r *http.Request, party appointment.Party) {
	id, ok := parseIDParam(w, r, "invalid_"+string(party)+"_id")
	if !ok {
		return
	}

	n, err := h.svc.CountFutureActiveBookings(r.Context(), party, id, h.now())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, FutureBookingsResponse{
		Party:             string(party),
		PartyID:           id,
		FutureBookings:    n,
		HasFutureBookings: n > 0,
	})
}

// Clients

func (h *handlers) createClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	accountID, err := parseOptionalUUID(req.AccountID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_account_id", "account_id must be a valid UUID")
		return
	}

	c, err := h.svc.RegisterClient(r.Context(), appointment.ClientInput{
		Name:           req.Name,
		IdentityNumber: req.IdentityNumber,
		AccountID:      accountID,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

func (h *handlers) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "invalid_client_id")
	if !ok {
		return
	}

	c, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// Accounts

func (h *handlers) revokeRole(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "invalid_account_id")
	if !ok {
		return
	}
	role, ok := appointment.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be doctor or patient")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result, err := h.svc.RevokeRole(r.Context(), accountID, role, h.now(), force)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := RevokeResponse{Linked: result != nil}
	if result != nil {
		cascade := toCascadeResponse(result)
		resp.Cascade = &cascade
	}
	writeJSON(w, http.StatusOK, resp)
}
