// Package validationpb holds the wire schema of the validation service.
//
// The descriptors below mirror api/proto/ticketsrvc/ticket.proto and
// api/proto/validationsvc/validation.proto field for field. They are built and
// registered in protoregistry.GlobalFiles at init so that server reflection,
// protojson and dynamic clients see exactly the schema the server speaks.
package validationpb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
)

const (
	// TicketProtoPath is the registry path of the ticket schema.
	TicketProtoPath = "ticketsrvc/ticket.proto"
	// ValidationProtoPath is the registry path of the validation service schema.
	ValidationProtoPath = "validationsvc/validation.proto"

	goPackage = "github.com/ScalabilityIssues/validation-service/api/validationpb"

	timestampType = ".google.protobuf.Timestamp"
	emptyType     = ".google.protobuf.Empty"
)

var (
	// TicketFileDescriptor describes ticketsrvc/ticket.proto.
	TicketFileDescriptor protoreflect.FileDescriptor
	// ValidationFileDescriptor describes validationsvc/validation.proto.
	ValidationFileDescriptor protoreflect.FileDescriptor

	ticketDesc                     protoreflect.MessageDescriptor
	signTicketRequestDesc          protoreflect.MessageDescriptor
	signTicketResponseDesc         protoreflect.MessageDescriptor
	getVerificationKeyResponseDesc protoreflect.MessageDescriptor
	flightDetailsDesc              protoreflect.MessageDescriptor
	ticketClaimsDesc               protoreflect.MessageDescriptor
	signedTicketDesc               protoreflect.MessageDescriptor
)

func init() {
	TicketFileDescriptor = mustRegister(ticketFileProto())
	ValidationFileDescriptor = mustRegister(validationFileProto())

	ticketDesc = TicketFileDescriptor.Messages().ByName("Ticket")

	msgs := ValidationFileDescriptor.Messages()
	signTicketRequestDesc = msgs.ByName("SignTicketRequest")
	signTicketResponseDesc = msgs.ByName("SignTicketResponse")
	getVerificationKeyResponseDesc = msgs.ByName("GetVerificationKeyResponse")
	flightDetailsDesc = msgs.ByName("FlightDetails")
	ticketClaimsDesc = msgs.ByName("TicketClaims")
	signedTicketDesc = msgs.ByName("SignedTicket")
}

func mustRegister(fdp *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("validationpb: build %s: %v", fdp.GetName(), err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("validationpb: register %s: %v", fdp.GetName(), err))
	}
	return fd
}

func ticketFileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(TicketProtoPath),
		Package:    proto.String("ticketsrvc"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		Syntax:     proto.String("proto3"),
		Options:    &descriptorpb.FileOptions{GoPackage: proto.String(goPackage)},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Ticket",
				scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("flight_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("passenger", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("seat", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				embedded("reservation_datetime", 5, timestampType),
			),
		},
	}
}

func validationFileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ValidationProtoPath),
		Package: proto.String("validationsvc"),
		Dependency: []string{
			"google/protobuf/empty.proto",
			"google/protobuf/timestamp.proto",
			TicketProtoPath,
		},
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{GoPackage: proto.String(goPackage)},
		MessageType: []*descriptorpb.DescriptorProto{
			message("SignTicketRequest",
				embedded("ticket", 1, ".ticketsrvc.Ticket"),
			),
			message("SignTicketResponse",
				scalar("qr", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				embedded("signed_ticket", 2, ".validationsvc.SignedTicket"),
			),
			message("GetVerificationKeyResponse",
				repeated(scalar("verification_keys", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES)),
			),
			message("FlightDetails",
				scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("source_iata", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("destination_iata", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				embedded("departure_time", 4, timestampType),
				embedded("arrival_time", 5, timestampType),
			),
			message("TicketClaims",
				scalar("ticket_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				embedded("flight_details", 2, ".validationsvc.FlightDetails"),
				scalar("passenger_details", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				embedded("ticket_created_at", 4, timestampType),
			),
			message("SignedTicket",
				scalar("ticket", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				scalar("signature", 2, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Validation"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{
					Name:       proto.String("SignTicket"),
					InputType:  proto.String(".validationsvc.SignTicketRequest"),
					OutputType: proto.String(".validationsvc.SignTicketResponse"),
				},
				{
					Name:       proto.String("GetVerificationKeys"),
					InputType:  proto.String(emptyType),
					OutputType: proto.String(".validationsvc.GetVerificationKeyResponse"),
				},
			},
		}},
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func embedded(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}
