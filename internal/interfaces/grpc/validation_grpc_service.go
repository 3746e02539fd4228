// Package grpc exposes the signing service over gRPC.
package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	appService "github.com/ScalabilityIssues/validation-service/internal/application/service"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

var _ validationpb.ValidationServer = (*ValidationGRPCService)(nil)

// ValidationGRPCService implements the validationsvc.Validation service.
type ValidationGRPCService struct {
	validationpb.UnimplementedValidationServer
	signingSvc appService.SigningAppService
	keys       appService.KeyPublisher
	mode       constants.ResponseMode
	log        logger.Logger
}

// NewValidationGRPCService creates the service. mode decides which parts of
// the signing result are put on the wire.
func NewValidationGRPCService(
	signingSvc appService.SigningAppService,
	keys appService.KeyPublisher,
	mode constants.ResponseMode,
	log logger.Logger,
) *ValidationGRPCService {
	if mode == "" {
		mode = constants.ResponseModeQR
	}
	return &ValidationGRPCService{
		signingSvc: signingSvc,
		keys:       keys,
		mode:       mode,
		log:        log.WithComponent("ValidationGRPCService"),
	}
}

// SignTicket handles the gRPC request to sign a ticket.
func (s *ValidationGRPCService) SignTicket(ctx context.Context, req *validationpb.SignTicketRequest) (*validationpb.SignTicketResponse, error) {
	var ticket *validationpb.Ticket
	if req != nil {
		ticket = req.Ticket
	}

	result, err := s.signingSvc.SignTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}

	resp := &validationpb.SignTicketResponse{}
	if s.mode != constants.ResponseModePackage {
		resp.Qr = result.Image
	}
	if s.mode != constants.ResponseModeQR {
		resp.SignedTicket = result.Package.ToWire()
	}
	return resp, nil
}

// GetVerificationKeys handles the gRPC request for the public keys.
func (s *ValidationGRPCService) GetVerificationKeys(ctx context.Context, _ *emptypb.Empty) (*validationpb.GetVerificationKeyResponse, error) {
	return &validationpb.GetVerificationKeyResponse{
		VerificationKeys: s.keys.VerificationKeys(ctx),
	}, nil
}
