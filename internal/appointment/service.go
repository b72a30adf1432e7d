package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
	"github.com/hackgods/hospital-appointment-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/hospital-appointment-scheduling/internal/redis"
)

const (
	EventBookingCreated          = "BOOKING_CREATED"
	EventBookingUpdated          = "BOOKING_UPDATED"
	EventBookingCancelled        = "BOOKING_CANCELLED"
	EventBookingCompleted        = "BOOKING_COMPLETED"
	EventBookingDeleted          = "BOOKING_DELETED"
	EventPractitionerDeactivated = "PRACTITIONER_DEACTIVATED"
	EventClientDeactivated       = "CLIENT_DEACTIVATED"
)

var schedulingTracer = otel.Tracer("hospital.internal.appointment")

type Service struct {
	repo             Repository
	locker           redisclient.Locker
	layout           SlotLayout
	loc              *time.Location
	blockRoleRemoval bool
	logger           zerolog.Logger
	metrics          *metrics.SchedulingMetrics
	now              func() time.Time
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for event timestamps and the role
// revocation pre-check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("appointment service: repository is required")
	}

	labels := cfg.SlotLabels
	if len(labels) == 0 {
		labels = config.DefaultSlotLabels
	}
	width := cfg.SlotWidth
	if width == 0 {
		width = 30 * time.Minute
	}
	layout, err := NewSlotLayout(labels, width)
	if err != nil {
		return nil, err
	}

	loc := cfg.DisplayTimezone
	if loc == nil {
		loc = time.UTC
	}
	if locker == nil {
		locker = redisclient.LocalLocker{}
	}

	s := &Service{
		repo:             repo,
		locker:           locker,
		layout:           layout,
		loc:              loc,
		blockRoleRemoval: cfg.BlockRoleRemoval,
		logger:           zerolog.Nop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Layout() SlotLayout {
	return s.layout
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// BookingInput carries the caller-supplied fields of Create and Update.
// Completed is only read by Update.
type BookingInput struct {
	PractitionerID uuid.UUID
	ClientID       uuid.UUID
	Start          time.Time
	End            time.Time
	Note           string
	Completed      bool
}

func (in BookingInput) validate() error {
	if in.PractitionerID == uuid.Nil {
		return validationError("practitioner id is required")
	}
	if in.ClientID == uuid.Nil {
		return validationError("client id is required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return validationError("start and end are required")
	}
	if !in.End.After(in.Start) {
		return ErrInvalidRange
	}
	return nil
}

// wrapLookup keeps business errors intact and wraps everything else.
func wrapLookup(action string, err error) error {
	if KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", action, err)
}

func translateLockError(err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

// outcome labels a finished mutation for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// requireActiveParties loads both parties of a booking and rejects missing or
// deactivated ones.
func (s *Service) requireActiveParties(ctx context.Context, practitionerID, clientID uuid.UUID) error {
	p, err := s.repo.FindPractitioner(ctx, practitionerID)
	if err != nil {
		return wrapLookup("load practitioner", err)
	}
	if !p.Active {
		return ErrPractitionerInactive
	}

	c, err := s.repo.FindClient(ctx, clientID)
	if err != nil {
		return wrapLookup("load client", err)
	}
	if !c.Active {
		return ErrClientInactive
	}
	return nil
}

// Create books a new pending appointment. The conflict check and the insert
// run under the practitioner's schedule lock; the store's exclusion
// constraint backs them up across lock expiry.
func (s *Service) Create(ctx context.Context, in BookingInput) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospital.practitioner_id", in.PractitionerID.String()),
		attribute.String("hospital.client_id", in.ClientID.String()),
	)

	created, err := s.create(ctx, in)
	s.metrics.ObserveMutation("create", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("hospital.booking_id", created.ID.String()))
	return created, nil
}

func (s *Service) create(ctx context.Context, in BookingInput) (*Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	start, end := Normalize(in.Start), Normalize(in.End)

	var created *Booking
	err := s.locker.WithPractitionerLock(ctx, in.PractitionerID, func(lockCtx context.Context) error {
		// Party state is read under the lock so a practitioner cascade cannot
		// slip in between; SaveBooking re-checks it for client cascades.
		if err := s.requireActiveParties(lockCtx, in.PractitionerID, in.ClientID); err != nil {
			return err
		}
		conflict, err := s.HasConflict(lockCtx, in.PractitionerID, start, end, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrBookingOverlap
		}

		saved, err := s.repo.SaveBooking(lockCtx, Booking{
			PractitionerID: in.PractitionerID,
			ClientID:       in.ClientID,
			Start:          start,
			End:            end,
			Note:           in.Note,
		})
		if err != nil {
			return wrapLookup("save booking", err)
		}
		created = saved

		s.logEvent(lockCtx, EventBookingCreated, &saved.ID, nil, map[string]any{
			"practitioner_id": saved.PractitionerID.String(),
			"client_id":       saved.ClientID.String(),
			"start":           saved.Start,
			"end":             saved.End,
		})
		return nil
	})
	if err != nil {
		return nil, translateLockError(err)
	}

	s.logger.Info().
		Str("booking_id", created.ID.String()).
		Str("practitioner_id", created.PractitionerID.String()).
		Time("start", created.Start).
		Msg("booking created")
	return created, nil
}

// Update overwrites the mutable fields of a booking, completed included.
// The cancelled flag is never touched here, and a completed booking cannot
// be reopened.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in BookingInput) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospital.booking_id", id.String()),
		attribute.String("hospital.practitioner_id", in.PractitionerID.String()),
	)

	updated, err := s.update(ctx, id, in)
	s.metrics.ObserveMutation("update", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return updated, nil
}

func (s *Service) update(ctx context.Context, id uuid.UUID, in BookingInput) (*Booking, error) {
	if id == uuid.Nil {
		return nil, validationError("booking id is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, wrapLookup("load booking", err)
	}
	if existing.Cancelled {
		return nil, ErrBookingCancelled
	}
	if existing.Completed && !in.Completed {
		return nil, ErrBookingCompleted
	}

	start, end := Normalize(in.Start), Normalize(in.End)

	var updated *Booking
	err = s.locker.WithPractitionerLock(ctx, in.PractitionerID, func(lockCtx context.Context) error {
		if err := s.requireActiveParties(lockCtx, in.PractitionerID, in.ClientID); err != nil {
			return err
		}
		conflict, err := s.HasConflict(lockCtx, in.PractitionerID, start, end, id)
		if err != nil {
			return err
		}
		if conflict {
			return ErrBookingOverlap
		}

		saved, err := s.repo.UpdateBooking(lockCtx, Booking{
			ID:             id,
			PractitionerID: in.PractitionerID,
			ClientID:       in.ClientID,
			Start:          start,
			End:            end,
			Note:           in.Note,
			Completed:      in.Completed,
		})
		if err != nil {
			// the store re-checks cancelled, completed and party state, so a
			// sweep or cascade racing this write surfaces here
			return wrapLookup("update booking", err)
		}
		updated = saved

		s.logEvent(lockCtx, EventBookingUpdated, &saved.ID, nil, map[string]any{
			"practitioner_id": saved.PractitionerID.String(),
			"client_id":       saved.ClientID.String(),
			"start":           saved.Start,
			"end":             saved.End,
			"completed":       saved.Completed,
		})
		return nil
	})
	if err != nil {
		return nil, translateLockError(err)
	}
	return updated, nil
}

// Cancel marks a booking cancelled whatever its completed flag. Cancelling
// a cancelled booking returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.booking_id", id.String()))

	cancelled, err := s.cancel(ctx, id, "request")
	s.metrics.ObserveMutation("cancel", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cancelled, nil
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID, reason string) (*Booking, error) {
	if id == uuid.Nil {
		return nil, validationError("booking id is required")
	}

	existing, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, wrapLookup("load booking", err)
	}
	if existing.Cancelled {
		return existing, nil
	}

	cancelled, err := s.repo.CancelBooking(ctx, id)
	if err != nil {
		return nil, wrapLookup("cancel booking", err)
	}

	s.logEvent(ctx, EventBookingCancelled, &cancelled.ID, nil, map[string]any{
		"reason":    reason,
		"completed": cancelled.Completed,
	})
	return cancelled, nil
}

// DeleteBooking removes the booking row. Parties are never touched.
func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	ctx, span := schedulingTracer.Start(ctx, "appointment.delete")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.booking_id", id.String()))

	err := s.deleteBooking(ctx, id)
	s.metrics.ObserveMutation("delete", outcome(err))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Service) deleteBooking(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("booking id is required")
	}

	existing, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return wrapLookup("load booking", err)
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return wrapLookup("delete booking", err)
	}

	s.logEvent(ctx, EventBookingDeleted, &existing.ID, nil, map[string]any{
		"practitioner_id": existing.PractitionerID.String(),
		"client_id":       existing.ClientID.String(),
		"state":           existing.State(),
	})
	return nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	if id == uuid.Nil {
		return nil, validationError("booking id is required")
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, wrapLookup("get booking", err)
	}
	return b, nil
}

// ListBookings returns bookings matching filter, ordered by start.
func (s *Service) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, ErrInvalidRange
	}
	bookings, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// Sweep completes every pending booking whose end is at or before now and
// returns how many it changed. A failure on one booking is logged and
// skipped.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.sweep")
	defer span.End()

	candidates, err := s.repo.ListSweepCandidates(ctx, Normalize(now))
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("list sweep candidates: %w", err)
	}

	completed := 0
	for _, b := range candidates {
		if err := ctx.Err(); err != nil {
			s.metrics.ObserveSweep(completed)
			return completed, err
		}

		changed, err := s.repo.MarkCompleted(ctx, b.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("sweep: failed to complete booking")
			continue
		}
		if !changed {
			continue
		}
		completed++

		id := b.ID
		s.logEvent(ctx, EventBookingCompleted, &id, nil, map[string]any{
			"reason": "sweep",
			"end":    b.End,
		})
	}

	span.SetAttributes(attribute.Int("hospital.sweep.completed", completed))
	s.metrics.ObserveSweep(completed)
	if completed > 0 {
		s.logger.Info().Int("completed", completed).Msg("sweep finished")
	}
	return completed, nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, bookingID, partyID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		BookingID: bookingID,
		PartyID:   partyID,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to insert event log")
	}
}
