package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
)

var t0 = time.Date(2024, 5, 17, 8, 45, 0, 0, time.UTC)

func sampleTicket() *validationpb.Ticket {
	return &validationpb.Ticket{
		Id:                  "T1",
		FlightId:            "F1",
		Passenger:           "Alice",
		Seat:                "12A",
		ReservationDatetime: timestamppb.New(t0),
	}
}

func mustCanonicalizer(t *testing.T, policy constants.ClaimsPolicy, strict bool) Canonicalizer {
	t.Helper()
	c, err := NewCanonicalizer(policy, strict)
	require.NoError(t, err)
	require.Equal(t, policy, c.Policy())
	return c
}

func TestClaimsCanonicalizer_ExactBytes(t *testing.T) {
	c := mustCanonicalizer(t, constants.ClaimsPolicyClaims, false)

	got, err := c.Canonicalize(sampleTicket())
	require.NoError(t, err)

	var ts []byte
	ts = protowire.AppendTag(ts, 1, protowire.VarintType)
	ts = protowire.AppendVarint(ts, uint64(t0.Unix()))

	var flight []byte
	flight = protowire.AppendTag(flight, 1, protowire.BytesType)
	flight = protowire.AppendString(flight, "F1")

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "T1")
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendBytes(want, flight)
	want = protowire.AppendTag(want, 3, protowire.BytesType)
	want = protowire.AppendString(want, "Alice")
	want = protowire.AppendTag(want, 4, protowire.BytesType)
	want = protowire.AppendBytes(want, ts)

	assert.Equal(t, want, got)

	claims, err := validationpb.UnmarshalTicketClaims(got)
	require.NoError(t, err)
	assert.Equal(t, "T1", claims.TicketId)
	assert.Equal(t, "F1", claims.FlightDetails.Id)
	assert.Empty(t, claims.FlightDetails.SourceIata)
	assert.Nil(t, claims.FlightDetails.DepartureTime)
	assert.Equal(t, "Alice", claims.PassengerDetails)
	assert.True(t, claims.TicketCreatedAt.AsTime().Equal(t0))
}

func TestCanonicalizer_Deterministic(t *testing.T) {
	for _, policy := range []constants.ClaimsPolicy{constants.ClaimsPolicyClaims, constants.ClaimsPolicyVerbatim} {
		t.Run(string(policy), func(t *testing.T) {
			c := mustCanonicalizer(t, policy, false)
			first, err := c.Canonicalize(sampleTicket())
			require.NoError(t, err)
			for i := 0; i < 50; i++ {
				again, err := c.Canonicalize(sampleTicket())
				require.NoError(t, err)
				require.Equal(t, first, again)
			}
		})
	}
}

func TestCanonicalizer_SeatOnlyAffectsVerbatim(t *testing.T) {
	other := sampleTicket()
	other.Seat = "30F"

	claims := mustCanonicalizer(t, constants.ClaimsPolicyClaims, false)
	a, _ := claims.Canonicalize(sampleTicket())
	b, _ := claims.Canonicalize(other)
	assert.Equal(t, a, b)

	verbatim := mustCanonicalizer(t, constants.ClaimsPolicyVerbatim, false)
	a, _ = verbatim.Canonicalize(sampleTicket())
	b, _ = verbatim.Canonicalize(other)
	assert.NotEqual(t, a, b)
}

func TestVerbatimCanonicalizer_MatchesTicketEncoding(t *testing.T) {
	c := mustCanonicalizer(t, constants.ClaimsPolicyVerbatim, false)
	got, err := c.Canonicalize(sampleTicket())
	require.NoError(t, err)

	want, err := sampleTicket().Marshal()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	back, err := validationpb.UnmarshalTicket(got)
	require.NoError(t, err)
	assert.Equal(t, "12A", back.Seat)
}

func TestCanonicalizer_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		ticket *validationpb.Ticket
		field  string
	}{
		{"nil ticket", false, nil, "ticket"},
		{"nil ticket strict", true, nil, "ticket"},
		{"strict missing id", true, &validationpb.Ticket{FlightId: "F1", Passenger: "Alice"}, "ticket.id"},
		{"strict missing flight", true, &validationpb.Ticket{Id: "T1", Passenger: "Alice"}, "ticket.flight_id"},
		{"strict missing passenger", true, &validationpb.Ticket{Id: "T1", FlightId: "F1"}, "ticket.passenger"},
	}

	for _, tt := range tests {
		for _, policy := range []constants.ClaimsPolicy{constants.ClaimsPolicyClaims, constants.ClaimsPolicyVerbatim} {
			t.Run(tt.name+"/"+string(policy), func(t *testing.T) {
				c := mustCanonicalizer(t, policy, tt.strict)
				payload, err := c.Canonicalize(tt.ticket)
				assert.Nil(t, payload)
				require.Error(t, err)
				appErr, ok := errors.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, errors.CodeInvalidArgument, appErr.Code())
				assert.Equal(t, tt.field, appErr.Metadata()["field"])
			})
		}
	}
}

func TestClaimsCanonicalizer_LenientAcceptsEmptyTicket(t *testing.T) {
	c := mustCanonicalizer(t, constants.ClaimsPolicyClaims, false)
	payload, err := c.Canonicalize(&validationpb.Ticket{})
	require.NoError(t, err)

	claims, err := validationpb.UnmarshalTicketClaims(payload)
	require.NoError(t, err)
	require.NotNil(t, claims.FlightDetails, "flight details are always present")
	assert.Nil(t, claims.TicketCreatedAt)
}

func TestNewCanonicalizer_UnknownPolicy(t *testing.T) {
	_, err := NewCanonicalizer("everything", false)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
}
