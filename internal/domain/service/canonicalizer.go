package service

import (
	"fmt"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
)

// NewCanonicalizer returns the canonicalizer for policy. With strict set,
// tickets missing an id, flight id or passenger are rejected instead of being
// signed with empty fields.
func NewCanonicalizer(policy constants.ClaimsPolicy, strict bool) (Canonicalizer, error) {
	switch policy {
	case constants.ClaimsPolicyClaims:
		return &claimsCanonicalizer{strict: strict}, nil
	case constants.ClaimsPolicyVerbatim:
		return &verbatimCanonicalizer{strict: strict}, nil
	default:
		return nil, errors.ErrInvalidArgument(fmt.Sprintf("unknown claims policy %q", policy))
	}
}

// BuildClaims maps a ticket onto the claims that get signed. Flight details
// carry only the flight id; the remaining flight fields stay unset.
func BuildClaims(t *validationpb.Ticket) *validationpb.TicketClaims {
	return &validationpb.TicketClaims{
		TicketId:         t.Id,
		FlightDetails:    &validationpb.FlightDetails{Id: t.FlightId},
		PassengerDetails: t.Passenger,
		TicketCreatedAt:  t.ReservationDatetime,
	}
}

type claimsCanonicalizer struct {
	strict bool
}

func (c *claimsCanonicalizer) Policy() constants.ClaimsPolicy {
	return constants.ClaimsPolicyClaims
}

func (c *claimsCanonicalizer) Canonicalize(t *validationpb.Ticket) ([]byte, error) {
	if err := checkTicket(t, c.strict); err != nil {
		return nil, err
	}
	payload, err := BuildClaims(t).Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode ticket claims")
	}
	return payload, nil
}

type verbatimCanonicalizer struct {
	strict bool
}

func (c *verbatimCanonicalizer) Policy() constants.ClaimsPolicy {
	return constants.ClaimsPolicyVerbatim
}

func (c *verbatimCanonicalizer) Canonicalize(t *validationpb.Ticket) ([]byte, error) {
	if err := checkTicket(t, c.strict); err != nil {
		return nil, err
	}
	payload, err := t.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode ticket")
	}
	return payload, nil
}

func checkTicket(t *validationpb.Ticket, strict bool) error {
	if t == nil {
		return errors.ErrInvalidArgument("Ticket is required").WithMetadata("field", "ticket")
	}
	if !strict {
		return nil
	}
	for _, f := range []struct{ name, value string }{
		{"ticket.id", t.Id},
		{"ticket.flight_id", t.FlightId},
		{"ticket.passenger", t.Passenger},
	} {
		if f.value == "" {
			return errors.ErrInvalidArgument("missing " + f.name).WithMetadata("field", f.name)
		}
	}
	return nil
}
