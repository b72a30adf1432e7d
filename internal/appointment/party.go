package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const identityNumberLength = 11

type PractitionerInput struct {
	Name       string
	Department Department
	AccountID  *uuid.UUID
}

type ClientInput struct {
	Name           string
	IdentityNumber string
	AccountID      *uuid.UUID
}

// ValidateIdentityNumber accepts exactly 11 ASCII digits.
func ValidateIdentityNumber(raw string) error {
	if len(raw) != identityNumberLength {
		return validationError(fmt.Sprintf("identity number must be exactly %d digits", identityNumberLength))
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return validationError("identity number must contain digits only")
		}
	}
	return nil
}

func (s *Service) RegisterPractitioner(ctx context.Context, in PractitionerInput) (*Practitioner, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.register_practitioner")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if !in.Department.Valid() {
		return nil, validationError(fmt.Sprintf("unknown department %d", in.Department))
	}

	p, err := s.repo.CreatePractitioner(ctx, Practitioner{
		Name:       name,
		Department: in.Department,
		AccountID:  in.AccountID,
	})
	s.metrics.ObserveMutation("register_practitioner", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, wrapLookup("create practitioner", err)
	}

	span.SetAttributes(attribute.String("hospital.practitioner_id", p.ID.String()))
	return p, nil
}

// RegisterClient stores a new client. The identity number is unique across
// clients; a duplicate is a conflict.
func (s *Service) RegisterClient(ctx context.Context, in ClientInput) (*Client, error) {
	ctx, span := schedulingTracer.Start(ctx, "appointment.register_client")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	identity := strings.TrimSpace(in.IdentityNumber)
	if err := ValidateIdentityNumber(identity); err != nil {
		return nil, err
	}

	c, err := s.repo.CreateClient(ctx, Client{
		Name:           name,
		IdentityNumber: identity,
		AccountID:      in.AccountID,
	})
	s.metrics.ObserveMutation("register_client", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, wrapLookup("create client", err)
	}

	span.SetAttributes(attribute.String("hospital.client_id", c.ID.String()))
	return c, nil
}

func (s *Service) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	p, err := s.repo.FindPractitioner(ctx, id)
	if err != nil {
		return nil, wrapLookup("get practitioner", err)
	}
	return p, nil
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := s.repo.FindClient(ctx, id)
	if err != nil {
		return nil, wrapLookup("get client", err)
	}
	return c, nil
}
