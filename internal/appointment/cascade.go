package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// DeactivatePractitioner marks the practitioner inactive, unlinks its account
// and cancels every open booking it still has. The row itself is kept.
func (s *Service) DeactivatePractitioner(ctx context.Context, id uuid.UUID) (*CascadeResult, error) {
	return s.deactivate(ctx, PartyPractitioner, id)
}

// DeactivateClient is the client-side counterpart of DeactivatePractitioner.
func (s *Service) DeactivateClient(ctx context.Context, id uuid.UUID) (*CascadeResult, error) {
	return s.deactivate(ctx, PartyClient, id)
}

func (s *Service) deactivate(ctx context.Context, party Party, id uuid.UUID) (*CascadeResult, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.deactivate_"+string(party))
	defer span.End()
	span.SetAttributes(attribute.String("hospital.party_id", id.String()))

	result, err := s.cascade(ctx, party, id)
	s.metrics.ObserveMutation("deactivate_"+string(party), outcome(err))
	if result != nil {
		s.metrics.ObserveCascade(string(party), result.Cancelled)
	}
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	span.SetAttributes(attribute.Int("hospital.cascade.cancelled", result.Cancelled))
	return result, nil
}

// cascade deactivates the party first, so no new booking can be written for
// it, then cancels whatever is still open. A practitioner cascade also holds
// the schedule lock. Re-running after a partial failure finishes the job:
// cancelled bookings are no longer open and deactivating twice changes
// nothing.
func (s *Service) cascade(ctx context.Context, party Party, id uuid.UUID) (*CascadeResult, error) {
	if id == uuid.Nil {
		return nil, validationError(string(party) + " id is required")
	}
	if err := s.ensureParty(ctx, party, id); err != nil {
		return nil, err
	}

	result := &CascadeResult{Party: party, PartyID: id}
	run := func(ctx context.Context) error {
		return s.cancelOpenBookings(ctx, party, id, result)
	}

	var err error
	if party == PartyPractitioner {
		err = translateLockError(s.locker.WithPractitionerLock(ctx, id, run))
	} else {
		err = run(ctx)
	}
	if err != nil {
		return result, err
	}

	eventType := EventClientDeactivated
	if party == PartyPractitioner {
		eventType = EventPractitionerDeactivated
	}
	s.logEvent(ctx, eventType, nil, &id, map[string]any{
		"cancelled_bookings": result.Cancelled,
	})

	s.logger.Info().
		Str("party", string(party)).
		Str("party_id", id.String()).
		Int("cancelled", result.Cancelled).
		Msg("party deactivated")
	return result, nil
}

func (s *Service) cancelOpenBookings(ctx context.Context, party Party, id uuid.UUID, result *CascadeResult) error {
	if err := s.repo.DeactivateParty(ctx, party, id); err != nil {
		return wrapLookup("deactivate "+string(party), err)
	}

	open, err := s.repo.ListOpenBookingsForParty(ctx, party, id)
	if err != nil {
		return fmt.Errorf("list open bookings: %w", err)
	}

	for _, b := range open {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.repo.CancelBooking(ctx, b.ID); err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				continue
			}
			return fmt.Errorf("cancel booking %s: %w", b.ID, err)
		}
		result.Cancelled++

		bookingID := b.ID
		s.logEvent(ctx, EventBookingCancelled, &bookingID, &id, map[string]any{
			"reason":    "cascade",
			"party":     party,
			"completed": b.Completed,
		})
	}
	return nil
}

func (s *Service) ensureParty(ctx context.Context, party Party, id uuid.UUID) error {
	var err error
	switch party {
	case PartyPractitioner:
		_, err = s.repo.FindPractitioner(ctx, id)
	case PartyClient:
		_, err = s.repo.FindClient(ctx, id)
	default:
		return validationError(fmt.Sprintf("unknown party %q", party))
	}
	if err != nil {
		return wrapLookup("load "+string(party), err)
	}
	return nil
}

// HasFutureActiveBookings reports whether the party still has a
// non-cancelled booking starting after now. It lets callers warn before
// running the irreversible cascade.
func (s *Service) HasFutureActiveBookings(ctx context.Context, party Party, id uuid.UUID, now time.Time) (bool, error) {
	n, err := s.CountFutureActiveBookings(ctx, party, id, now)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) CountFutureActiveBookings(ctx context.Context, party Party, id uuid.UUID, now time.Time) (int, error) {
	if id == uuid.Nil {
		return 0, validationError(string(party) + " id is required")
	}
	if err := s.ensureParty(ctx, party, id); err != nil {
		return 0, err
	}
	n, err := s.repo.CountFutureActiveBookings(ctx, party, id, Normalize(now))
	if err != nil {
		return 0, fmt.Errorf("count future bookings: %w", err)
	}
	return n, nil
}

// RevokeRole runs the cascade for the party linked to accountID through
// role. With role-removal blocking on, future bookings reject the revocation
// unless force is set. An account without a linked party is a no-op and
// returns a nil result.
func (s *Service) RevokeRole(ctx context.Context, accountID uuid.UUID, role Role, now time.Time, force bool) (*CascadeResult, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.revoke_role")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospital.account_id", accountID.String()),
		attribute.String("hospital.role", string(role)),
		attribute.Bool("hospital.force", force),
	)

	if accountID == uuid.Nil {
		return nil, validationError("account id is required")
	}

	party := role.Party()
	partyID, err := s.linkedParty(ctx, party, accountID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if partyID == uuid.Nil {
		return nil, nil
	}

	if s.blockRoleRemoval && !force {
		pending, err := s.HasFutureActiveBookings(ctx, party, partyID, now)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if pending {
			return nil, ErrFutureBookingsExist
		}
	}

	return s.deactivate(ctx, party, partyID)
}

func (s *Service) linkedParty(ctx context.Context, party Party, accountID uuid.UUID) (uuid.UUID, error) {
	var (
		id  uuid.UUID
		err error
	)
	if party == PartyPractitioner {
		var p *Practitioner
		if p, err = s.repo.FindPractitionerByAccount(ctx, accountID); err == nil {
			id = p.ID
		}
	} else {
		var c *Client
		if c, err = s.repo.FindClientByAccount(ctx, accountID); err == nil {
			id = c.ID
		}
	}

	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, ErrNotFound):
		return uuid.Nil, nil
	default:
		return uuid.Nil, fmt.Errorf("load %s by account: %w", party, err)
	}
}

// PurgePractitioner hard-deletes a practitioner that has never been booked.
func (s *Service) PurgePractitioner(ctx context.Context, id uuid.UUID) error {
	return s.purge(ctx, PartyPractitioner, id)
}

// PurgeClient hard-deletes a client that has never been booked.
func (s *Service) PurgeClient(ctx context.Context, id uuid.UUID) error {
	return s.purge(ctx, PartyClient, id)
}

func (s *Service) purge(ctx context.Context, party Party, id uuid.UUID) error {
	ctx, span := schedulingTracer.Start(ctx, "appointment.purge_"+string(party))
	defer span.End()
	span.SetAttributes(attribute.String("hospital.party_id", id.String()))

	err := s.purgeParty(ctx, party, id)
	s.metrics.ObserveMutation("purge_"+string(party), outcome(err))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Service) purgeParty(ctx context.Context, party Party, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError(string(party) + " id is required")
	}
	if err := s.ensureParty(ctx, party, id); err != nil {
		return err
	}

	n, err := s.repo.CountBookingsForParty(ctx, party, id)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	if n > 0 {
		return ErrPartyHasHistory
	}

	if err := s.repo.DeleteParty(ctx, party, id); err != nil {
		return wrapLookup("delete "+string(party), err)
	}

	s.logger.Info().Str("party", string(party)).Str("party_id", id.String()).Msg("party purged")
	return nil
}
