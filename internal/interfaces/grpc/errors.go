package grpc

import (
	"context"
	stderrors "errors"

	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ScalabilityIssues/validation-service/pkg/errors"
)

// internalMessage is all a caller learns about a server side failure.
const internalMessage = "Error creating QR code"

// ToStatus converts err into the gRPC status error returned to callers.
// Validation errors keep their message. Internal failures are reduced to a
// fixed message; the cause stays in the server log.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return status.Error(CodeOf(appErr.Code()), publicMessage(appErr))
	}
	var se interface{ GRPCStatus() *status.Status }
	if stderrors.As(err, &se) {
		return se.GRPCStatus().Err()
	}
	return status.Error(grpcCodes.Internal, internalMessage)
}

// CodeOf maps an application error code to a gRPC code.
func CodeOf(code errors.Code) grpcCodes.Code {
	switch code {
	case errors.CodeInvalidArgument:
		return grpcCodes.InvalidArgument
	case errors.CodeRateLimited:
		return grpcCodes.ResourceExhausted
	case errors.CodeUnavailable:
		return grpcCodes.Unavailable
	case errors.CodeNotFound:
		return grpcCodes.NotFound
	default:
		return grpcCodes.Internal
	}
}

func publicMessage(err errors.AppError) string {
	if err.Code() == errors.CodeInternal {
		return internalMessage
	}
	return err.Message()
}
