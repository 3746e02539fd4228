package validationpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "validationsvc.Validation"

	Validation_SignTicket_FullMethodName          = "/validationsvc.Validation/SignTicket"
	Validation_GetVerificationKeys_FullMethodName = "/validationsvc.Validation/GetVerificationKeys"
)

// ValidationServer is the server API for the Validation service.
type ValidationServer interface {
	SignTicket(context.Context, *SignTicketRequest) (*SignTicketResponse, error)
	GetVerificationKeys(context.Context, *emptypb.Empty) (*GetVerificationKeyResponse, error)
}

// UnimplementedValidationServer can be embedded to have forward compatible implementations.
type UnimplementedValidationServer struct{}

func (UnimplementedValidationServer) SignTicket(context.Context, *SignTicketRequest) (*SignTicketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SignTicket not implemented")
}

func (UnimplementedValidationServer) GetVerificationKeys(context.Context, *emptypb.Empty) (*GetVerificationKeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetVerificationKeys not implemented")
}

// RegisterValidationServer registers srv on s.
func RegisterValidationServer(s grpc.ServiceRegistrar, srv ValidationServer) {
	s.RegisterService(&Validation_ServiceDesc, srv)
}

// Interceptors see the typed request and response structs. Conversion to and
// from the wire message happens only here, at the codec boundary.
func _Validation_SignTicket_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := dynamicpb.NewMessage(signTicketRequestDesc)
	if err := dec(in); err != nil {
		return nil, err
	}
	req := SignTicketRequestFromProto(in)
	var (
		out interface{}
		err error
	)
	if interceptor == nil {
		out, err = srv.(ValidationServer).SignTicket(ctx, req)
	} else {
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: Validation_SignTicket_FullMethodName,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(ValidationServer).SignTicket(ctx, req.(*SignTicketRequest))
		}
		out, err = interceptor(ctx, req, info, handler)
	}
	if err != nil {
		return nil, err
	}
	resp, _ := out.(*SignTicketResponse)
	return resp.ToProto(), nil
}

func _Validation_GetVerificationKeys_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	var (
		out interface{}
		err error
	)
	if interceptor == nil {
		out, err = srv.(ValidationServer).GetVerificationKeys(ctx, in)
	} else {
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: Validation_GetVerificationKeys_FullMethodName,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(ValidationServer).GetVerificationKeys(ctx, req.(*emptypb.Empty))
		}
		out, err = interceptor(ctx, in, info, handler)
	}
	if err != nil {
		return nil, err
	}
	resp, _ := out.(*GetVerificationKeyResponse)
	return resp.ToProto(), nil
}

// Validation_ServiceDesc is the grpc.ServiceDesc for the Validation service.
var Validation_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ValidationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SignTicket",
			Handler:    _Validation_SignTicket_Handler,
		},
		{
			MethodName: "GetVerificationKeys",
			Handler:    _Validation_GetVerificationKeys_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: ValidationProtoPath,
}

// ValidationClient is the client API for the Validation service.
type ValidationClient interface {
	SignTicket(ctx context.Context, in *SignTicketRequest, opts ...grpc.CallOption) (*SignTicketResponse, error)
	GetVerificationKeys(ctx context.Context, opts ...grpc.CallOption) (*GetVerificationKeyResponse, error)
}

type validationClient struct {
	cc grpc.ClientConnInterface
}

// NewValidationClient returns a client bound to cc.
func NewValidationClient(cc grpc.ClientConnInterface) ValidationClient {
	return &validationClient{cc: cc}
}

func (c *validationClient) SignTicket(ctx context.Context, in *SignTicketRequest, opts ...grpc.CallOption) (*SignTicketResponse, error) {
	out := dynamicpb.NewMessage(signTicketResponseDesc)
	if err := c.cc.Invoke(ctx, Validation_SignTicket_FullMethodName, in.ToProto(), out, opts...); err != nil {
		return nil, err
	}
	return SignTicketResponseFromProto(out), nil
}

func (c *validationClient) GetVerificationKeys(ctx context.Context, opts ...grpc.CallOption) (*GetVerificationKeyResponse, error) {
	out := dynamicpb.NewMessage(getVerificationKeyResponseDesc)
	if err := c.cc.Invoke(ctx, Validation_GetVerificationKeys_FullMethodName, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return GetVerificationKeyResponseFromProto(out), nil
}
