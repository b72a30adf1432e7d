package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
)

// memoryRepository is an in-memory Repository. SaveBooking and
// UpdateBooking enforce the same no-overlap rule as the Postgres exclusion
// constraint.
type memoryRepository struct {
	mu            sync.Mutex
	practitioners map[uuid.UUID]Practitioner
	clients       map[uuid.UUID]Client
	bookings      map[uuid.UUID]Booking
	events        []EventLog

	markErrs   map[uuid.UUID]error
	insertErr  error
	onMark     func(id uuid.UUID)
	rangeCalls int

	// onListActive runs before the conflict-check read, inside the
	// caller's schedule lock.
	onListActive func()
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		practitioners: make(map[uuid.UUID]Practitioner),
		clients:       make(map[uuid.UUID]Client),
		bookings:      make(map[uuid.UUID]Booking),
		markErrs:      make(map[uuid.UUID]error),
	}
}

func (r *memoryRepository) addPractitioner(name string) Practitioner {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Practitioner{ID: uuid.New(), Name: name, Department: DepartmentCardiology, Active: true}
	r.practitioners[p.ID] = p
	return p
}

func (r *memoryRepository) addClient(name string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := Client{ID: uuid.New(), Name: name, IdentityNumber: fmt.Sprintf("%011d", len(r.clients)+1), Active: true}
	r.clients[c.ID] = c
	return c
}

func (r *memoryRepository) booking(id uuid.UUID) Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[id]
}

func (r *memoryRepository) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *memoryRepository) partyActive(b Booking) bool {
	return r.practitioners[b.PractitionerID].Active && r.clients[b.ClientID].Active
}

func (r *memoryRepository) FindPractitioner(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (r *memoryRepository) FindPractitionerByAccount(_ context.Context, accountID uuid.UUID) (*Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.practitioners {
		if p.AccountID != nil && *p.AccountID == accountID {
			return &p, nil
		}
	}
	return nil, ErrPractitionerNotFound
}

func (r *memoryRepository) FindClient(_ context.Context, id uuid.UUID) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (r *memoryRepository) FindClientByAccount(_ context.Context, accountID uuid.UUID) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.AccountID != nil && *c.AccountID == accountID {
			return &c, nil
		}
	}
	return nil, ErrClientNotFound
}

func (r *memoryRepository) CreatePractitioner(_ context.Context, p Practitioner) (*Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.Active = true
	r.practitioners[p.ID] = p
	return &p, nil
}

func (r *memoryRepository) CreateClient(_ context.Context, c Client) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clients {
		if existing.IdentityNumber == c.IdentityNumber {
			return nil, ErrDuplicateIdentityNumber
		}
	}
	c.ID = uuid.New()
	c.Active = true
	r.clients[c.ID] = c
	return &c, nil
}

func (r *memoryRepository) DeactivateParty(_ context.Context, party Party, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch party {
	case PartyPractitioner:
		p, ok := r.practitioners[id]
		if !ok {
			return ErrPractitionerNotFound
		}
		p.Active = false
		p.AccountID = nil
		r.practitioners[id] = p
	case PartyClient:
		c, ok := r.clients[id]
		if !ok {
			return ErrClientNotFound
		}
		c.Active = false
		c.AccountID = nil
		r.clients[id] = c
	}
	return nil
}

func (r *memoryRepository) DeleteParty(_ context.Context, party Party, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if party == PartyPractitioner {
		delete(r.practitioners, id)
	} else {
		delete(r.clients, id)
	}
	return nil
}

func (r *memoryRepository) GetBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *memoryRepository) sorted(keep func(Booking) bool) []Booking {
	var out []Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (r *memoryRepository) ListBookings(_ context.Context, f BookingFilter) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b Booking) bool {
		switch {
		case f.PractitionerID != uuid.Nil && b.PractitionerID != f.PractitionerID:
			return false
		case f.ClientID != uuid.Nil && b.ClientID != f.ClientID:
			return false
		case !f.From.IsZero() && !b.End.After(f.From):
			return false
		case !f.To.IsZero() && !b.Start.Before(f.To):
			return false
		case !f.IncludeCancelled && b.Cancelled:
			return false
		}
		return true
	}), nil
}

func (r *memoryRepository) ListActiveBookingsForPractitioner(_ context.Context, practitionerID uuid.UUID) ([]Booking, error) {
	if r.onListActive != nil {
		r.onListActive()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b Booking) bool {
		return b.PractitionerID == practitionerID && !b.Cancelled && r.partyActive(b)
	}), nil
}

func (r *memoryRepository) ListBookingsInRange(_ context.Context, practitionerID uuid.UUID, start, end time.Time) ([]BookingView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rangeCalls++
	bookings := r.sorted(func(b Booking) bool {
		return b.PractitionerID == practitionerID && !b.Cancelled && r.partyActive(b) &&
			Overlaps(b.Start, b.End, start, end)
	})
	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		// names are left for the service to resolve
		views = append(views, BookingView{Booking: b, PractitionerActive: true, ClientActive: true})
	}
	return views, nil
}

func (r *memoryRepository) ListOpenBookingsForParty(_ context.Context, party Party, id uuid.UUID) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b Booking) bool {
		return !b.Cancelled && belongsTo(b, party, id)
	}), nil
}

func belongsTo(b Booking, party Party, id uuid.UUID) bool {
	if party == PartyPractitioner {
		return b.PractitionerID == id
	}
	return b.ClientID == id
}

func (r *memoryRepository) CountFutureActiveBookings(_ context.Context, party Party, id uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sorted(func(b Booking) bool {
		return !b.Cancelled && belongsTo(b, party, id) && b.Start.After(now)
	})), nil
}

func (r *memoryRepository) CountBookingsForParty(_ context.Context, party Party, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sorted(func(b Booking) bool { return belongsTo(b, party, id) })), nil
}

func (r *memoryRepository) overlapsStored(b Booking) bool {
	for _, other := range r.bookings {
		if other.ID == b.ID || other.Cancelled || other.PractitionerID != b.PractitionerID {
			continue
		}
		if Overlaps(other.Start, other.End, b.Start, b.End) {
			return true
		}
	}
	return false
}

// writableParties mirrors the active-party guard on booking writes.
func (r *memoryRepository) writableParties(b Booking) error {
	p, ok := r.practitioners[b.PractitionerID]
	if !ok {
		return ErrPractitionerNotFound
	}
	if !p.Active {
		return ErrPractitionerInactive
	}
	c, ok := r.clients[b.ClientID]
	if !ok {
		return ErrClientNotFound
	}
	if !c.Active {
		return ErrClientInactive
	}
	return nil
}

func (r *memoryRepository) SaveBooking(_ context.Context, b Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableParties(b); err != nil {
		return nil, err
	}
	b.ID = uuid.New()
	if r.overlapsStored(b) {
		return nil, ErrBookingOverlap
	}
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	r.bookings[b.ID] = b
	return &b, nil
}

func (r *memoryRepository) UpdateBooking(_ context.Context, b Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.bookings[b.ID]
	switch {
	case !ok:
		return nil, ErrBookingNotFound
	case existing.Cancelled:
		return nil, ErrBookingCancelled
	case existing.Completed && !b.Completed:
		return nil, ErrBookingCompleted
	}
	if err := r.writableParties(b); err != nil {
		return nil, err
	}
	if r.overlapsStored(b) {
		return nil, ErrBookingOverlap
	}
	b.Cancelled = existing.Cancelled
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	r.bookings[b.ID] = b
	return &b, nil
}

func (r *memoryRepository) CancelBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.Cancelled = true
	r.bookings[id] = b
	return &b, nil
}

func (r *memoryRepository) DeleteBooking(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *memoryRepository) ListSweepCandidates(_ context.Context, now time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b Booking) bool {
		return !b.Completed && !b.Cancelled && !b.End.After(now)
	}), nil
}

func (r *memoryRepository) MarkCompleted(_ context.Context, id uuid.UUID) (bool, error) {
	if r.onMark != nil {
		r.onMark(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.markErrs[id]; err != nil {
		return false, err
	}
	b, ok := r.bookings[id]
	if !ok || b.Completed || b.Cancelled {
		return false, nil
	}
	b.Completed = true
	r.bookings[id] = b
	return true, nil
}

func (r *memoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.events = append(r.events, ev)
	return nil
}

func newTestService(t *testing.T, repo Repository, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(repo, nil, config.Config{BlockRoleRemoval: true}, opts...)
	require.NoError(t, err)
	return svc
}

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	return ts
}
