package validationpb

import (
	"bytes"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// deterministic is used for every marshal so that equal values always
// produce identical bytes. Signatures are computed over these bytes.
var deterministic = proto.MarshalOptions{Deterministic: true}

// Ticket is ticketsrvc.Ticket.
type Ticket struct {
	Id                  string
	FlightId            string
	Passenger           string
	Seat                string
	ReservationDatetime *timestamppb.Timestamp
}

// FlightDetails is validationsvc.FlightDetails.
type FlightDetails struct {
	Id              string
	SourceIata      string
	DestinationIata string
	DepartureTime   *timestamppb.Timestamp
	ArrivalTime     *timestamppb.Timestamp
}

// TicketClaims is validationsvc.TicketClaims.
type TicketClaims struct {
	TicketId         string
	FlightDetails    *FlightDetails
	PassengerDetails string
	TicketCreatedAt  *timestamppb.Timestamp
}

// SignedTicket is validationsvc.SignedTicket.
type SignedTicket struct {
	Ticket    []byte
	Signature []byte
}

// SignTicketRequest is validationsvc.SignTicketRequest.
type SignTicketRequest struct {
	Ticket *Ticket
}

// SignTicketResponse is validationsvc.SignTicketResponse.
type SignTicketResponse struct {
	Qr           []byte
	SignedTicket *SignedTicket
}

// GetVerificationKeyResponse is validationsvc.GetVerificationKeyResponse.
type GetVerificationKeyResponse struct {
	VerificationKeys [][]byte
}

// ToProto returns the dynamic protobuf form of x. A nil receiver yields nil.
func (x *Ticket) ToProto() *dynamicpb.Message {
	if x == nil {
		return nil
	}
	m := dynamicpb.NewMessage(ticketDesc)
	setString(m, "id", x.Id)
	setString(m, "flight_id", x.FlightId)
	setString(m, "passenger", x.Passenger)
	setString(m, "seat", x.Seat)
	setTimestamp(m, "reservation_datetime", x.ReservationDatetime)
	return m
}

// Marshal returns the deterministic wire encoding of x.
func (x *Ticket) Marshal() ([]byte, error) {
	if x == nil {
		x = &Ticket{}
	}
	return deterministic.Marshal(x.ToProto())
}

// TicketFromProto reads a ticketsrvc.Ticket message.
func TicketFromProto(m protoreflect.Message) *Ticket {
	return &Ticket{
		Id:                  getString(m, "id"),
		FlightId:            getString(m, "flight_id"),
		Passenger:           getString(m, "passenger"),
		Seat:                getString(m, "seat"),
		ReservationDatetime: getTimestamp(m, "reservation_datetime"),
	}
}

// UnmarshalTicket decodes a ticketsrvc.Ticket.
func UnmarshalTicket(b []byte) (*Ticket, error) {
	m := dynamicpb.NewMessage(ticketDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return TicketFromProto(m), nil
}

// ToProto returns the dynamic protobuf form of x. A nil receiver yields nil.
func (x *FlightDetails) ToProto() *dynamicpb.Message {
	if x == nil {
		return nil
	}
	m := dynamicpb.NewMessage(flightDetailsDesc)
	setString(m, "id", x.Id)
	setString(m, "source_iata", x.SourceIata)
	setString(m, "destination_iata", x.DestinationIata)
	setTimestamp(m, "departure_time", x.DepartureTime)
	setTimestamp(m, "arrival_time", x.ArrivalTime)
	return m
}

// FlightDetailsFromProto reads a validationsvc.FlightDetails message.
func FlightDetailsFromProto(m protoreflect.Message) *FlightDetails {
	return &FlightDetails{
		Id:              getString(m, "id"),
		SourceIata:      getString(m, "source_iata"),
		DestinationIata: getString(m, "destination_iata"),
		DepartureTime:   getTimestamp(m, "departure_time"),
		ArrivalTime:     getTimestamp(m, "arrival_time"),
	}
}

// ToProto returns the dynamic protobuf form of x. A nil receiver yields nil.
func (x *TicketClaims) ToProto() *dynamicpb.Message {
	if x == nil {
		return nil
	}
	m := dynamicpb.NewMessage(ticketClaimsDesc)
	setString(m, "ticket_id", x.TicketId)
	setMessage(m, "flight_details", x.FlightDetails.ToProto())
	setString(m, "passenger_details", x.PassengerDetails)
	setTimestamp(m, "ticket_created_at", x.TicketCreatedAt)
	return m
}

// Marshal returns the deterministic wire encoding of x.
func (x *TicketClaims) Marshal() ([]byte, error) {
	if x == nil {
		x = &TicketClaims{}
	}
	return deterministic.Marshal(x.ToProto())
}

// TicketClaimsFromProto reads a validationsvc.TicketClaims message.
func TicketClaimsFromProto(m protoreflect.Message) *TicketClaims {
	c := &TicketClaims{
		TicketId:         getString(m, "ticket_id"),
		PassengerDetails: getString(m, "passenger_details"),
		TicketCreatedAt:  getTimestamp(m, "ticket_created_at"),
	}
	if fd, ok := getMessage(m, "flight_details"); ok {
		c.FlightDetails = FlightDetailsFromProto(fd)
	}
	return c
}

// UnmarshalTicketClaims decodes a validationsvc.TicketClaims.
func UnmarshalTicketClaims(b []byte) (*TicketClaims, error) {
	m := dynamicpb.NewMessage(ticketClaimsDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return TicketClaimsFromProto(m), nil
}

// ToProto returns the dynamic protobuf form of x. A nil receiver yields nil.
func (x *SignedTicket) ToProto() *dynamicpb.Message {
	if x == nil {
		return nil
	}
	m := dynamicpb.NewMessage(signedTicketDesc)
	setBytes(m, "ticket", x.Ticket)
	setBytes(m, "signature", x.Signature)
	return m
}

// Marshal returns the deterministic wire encoding of x.
func (x *SignedTicket) Marshal() ([]byte, error) {
	if x == nil {
		x = &SignedTicket{}
	}
	return deterministic.Marshal(x.ToProto())
}

// SignedTicketFromProto reads a validationsvc.SignedTicket message.
func SignedTicketFromProto(m protoreflect.Message) *SignedTicket {
	return &SignedTicket{
		Ticket:    getBytes(m, "ticket"),
		Signature: getBytes(m, "signature"),
	}
}

// UnmarshalSignedTicket decodes a validationsvc.SignedTicket.
func UnmarshalSignedTicket(b []byte) (*SignedTicket, error) {
	m := dynamicpb.NewMessage(signedTicketDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return SignedTicketFromProto(m), nil
}

// ToProto returns the dynamic protobuf form of x.
func (x *SignTicketRequest) ToProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(signTicketRequestDesc)
	if x != nil {
		setMessage(m, "ticket", x.Ticket.ToProto())
	}
	return m
}

// SignTicketRequestFromProto reads a validationsvc.SignTicketRequest. A
// missing ticket field stays nil so callers can reject it.
func SignTicketRequestFromProto(m protoreflect.Message) *SignTicketRequest {
	req := &SignTicketRequest{}
	if t, ok := getMessage(m, "ticket"); ok {
		req.Ticket = TicketFromProto(t)
	}
	return req
}

// ToProto returns the dynamic protobuf form of x.
func (x *SignTicketResponse) ToProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(signTicketResponseDesc)
	if x != nil {
		setBytes(m, "qr", x.Qr)
		setMessage(m, "signed_ticket", x.SignedTicket.ToProto())
	}
	return m
}

// SignTicketResponseFromProto reads a validationsvc.SignTicketResponse.
func SignTicketResponseFromProto(m protoreflect.Message) *SignTicketResponse {
	resp := &SignTicketResponse{Qr: getBytes(m, "qr")}
	if st, ok := getMessage(m, "signed_ticket"); ok {
		resp.SignedTicket = SignedTicketFromProto(st)
	}
	return resp
}

// ToProto returns the dynamic protobuf form of x.
func (x *GetVerificationKeyResponse) ToProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(getVerificationKeyResponseDesc)
	if x == nil {
		return m
	}
	fd := getVerificationKeyResponseDesc.Fields().ByName("verification_keys")
	list := m.Mutable(fd).List()
	for _, k := range x.VerificationKeys {
		list.Append(protoreflect.ValueOfBytes(bytes.Clone(k)))
	}
	return m
}

// GetVerificationKeyResponseFromProto reads a validationsvc.GetVerificationKeyResponse.
func GetVerificationKeyResponseFromProto(m protoreflect.Message) *GetVerificationKeyResponse {
	fd := m.Descriptor().Fields().ByName("verification_keys")
	list := m.Get(fd).List()
	keys := make([][]byte, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		keys = append(keys, bytes.Clone(list.Get(i).Bytes()))
	}
	return &GetVerificationKeyResponse{VerificationKeys: keys}
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic("validationpb: unknown field " + string(m.Descriptor().FullName()) + "." + string(name))
	}
	return fd
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v == "" {
		return
	}
	m.Set(field(m, name), protoreflect.ValueOfString(v))
}

func setBytes(m protoreflect.Message, name protoreflect.Name, v []byte) {
	if len(v) == 0 {
		return
	}
	m.Set(field(m, name), protoreflect.ValueOfBytes(bytes.Clone(v)))
}

func setMessage(m protoreflect.Message, name protoreflect.Name, v *dynamicpb.Message) {
	if v == nil {
		return
	}
	m.Set(field(m, name), protoreflect.ValueOfMessage(v))
}

func setTimestamp(m protoreflect.Message, name protoreflect.Name, ts *timestamppb.Timestamp) {
	if ts == nil {
		return
	}
	child := m.Mutable(field(m, name)).Message()
	fields := child.Descriptor().Fields()
	if ts.GetSeconds() != 0 {
		child.Set(fields.ByName("seconds"), protoreflect.ValueOfInt64(ts.GetSeconds()))
	}
	if ts.GetNanos() != 0 {
		child.Set(fields.ByName("nanos"), protoreflect.ValueOfInt32(ts.GetNanos()))
	}
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func getBytes(m protoreflect.Message, name protoreflect.Name) []byte {
	b := m.Get(field(m, name)).Bytes()
	if len(b) == 0 {
		return nil
	}
	return bytes.Clone(b)
}

func getMessage(m protoreflect.Message, name protoreflect.Name) (protoreflect.Message, bool) {
	fd := field(m, name)
	if !m.Has(fd) {
		return nil, false
	}
	return m.Get(fd).Message(), true
}

func getTimestamp(m protoreflect.Message, name protoreflect.Name) *timestamppb.Timestamp {
	child, ok := getMessage(m, name)
	if !ok {
		return nil
	}
	fields := child.Descriptor().Fields()
	return &timestamppb.Timestamp{
		Seconds: child.Get(fields.ByName("seconds")).Int(),
		Nanos:   int32(child.Get(fields.ByName("nanos")).Int()),
	}
}
