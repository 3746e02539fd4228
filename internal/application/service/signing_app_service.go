// Package service provides application-level services that orchestrate the
// domain services of the signing pipeline.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	domainService "github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// Outcome labels of a signing request.
const (
	ResultSigned   = "signed"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultCanceled = "canceled"
)

// Pipeline stages, used for span names and failure metrics.
const (
	StageCanonicalize = "canonicalize"
	StageSign         = "sign"
	StageEncode       = "encode"
)

// SigningAppService defines the interface for the ticket signing pipeline.
type SigningAppService interface {
	// SignTicket canonicalizes ticket, signs it and packages the result in
	// the configured response mode.
	SignTicket(ctx context.Context, ticket *validationpb.Ticket) (*models.SigningResult, error)
}

// SigningDeps groups the collaborators of the signing service.
type SigningDeps struct {
	Canonicalizer domainService.Canonicalizer
	Signer        domainService.Signer
	Encoder       domainService.CodeEncoder
	Audit         domainService.AuditPublisher
	Metrics       domainService.Metrics
	Tracer        trace.Tracer
	// KeyID identifies the signing key in audit events.
	KeyID string
}

type signingAppServiceImpl struct {
	canonicalizer domainService.Canonicalizer
	signer        domainService.Signer
	encoder       domainService.CodeEncoder
	audit         domainService.AuditPublisher
	metrics       domainService.Metrics
	tracer        trace.Tracer
	keyID         string
	mode          constants.ResponseMode
	logger        logger.Logger
}

// NewSigningAppService creates a new instance of SigningAppService.
func NewSigningAppService(deps SigningDeps, mode constants.ResponseMode, log logger.Logger) (SigningAppService, error) {
	if deps.Canonicalizer == nil || deps.Signer == nil {
		return nil, errors.ErrInternal("signing service requires a canonicalizer and a signer")
	}
	switch mode {
	case "":
		mode = constants.ResponseModeQR
	case constants.ResponseModeQR, constants.ResponseModePackage, constants.ResponseModeBoth:
	default:
		return nil, errors.ErrInvalidArgument("unknown response mode " + string(mode))
	}
	if mode != constants.ResponseModePackage && deps.Encoder == nil {
		return nil, errors.ErrInternal("response mode " + string(mode) + " requires a code encoder")
	}
	if deps.Metrics == nil {
		deps.Metrics = domainService.NewNoopMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer(constants.ServiceName)
	}
	return &signingAppServiceImpl{
		canonicalizer: deps.Canonicalizer,
		signer:        deps.Signer,
		encoder:       deps.Encoder,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		tracer:        deps.Tracer,
		keyID:         deps.KeyID,
		mode:          mode,
		logger:        log.WithComponent("SigningAppService"),
	}, nil
}

// SignTicket implements the signing pipeline:
// validate -> canonicalize -> sign -> package -> encode.
func (s *signingAppServiceImpl) SignTicket(ctx context.Context, ticket *validationpb.Ticket) (*models.SigningResult, error) {
	start := time.Now()
	policy := string(s.canonicalizer.Policy())

	ctx, span := s.tracer.Start(ctx, "SigningAppService.SignTicket",
		trace.WithAttributes(
			attribute.String("signing.policy", policy),
			attribute.String("signing.response_mode", string(s.mode)),
		))
	defer span.End()

	result, outcome, err := s.run(ctx, ticket)
	s.metrics.RecordSignRequest(policy, outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *signingAppServiceImpl) run(ctx context.Context, ticket *validationpb.Ticket) (*models.SigningResult, string, error) {
	// 1. Nothing has happened yet, so a canceled call just reports why.
	if err := ctx.Err(); err != nil {
		return nil, ResultCanceled, err
	}

	// 2. Validate
	if ticket == nil {
		s.logger.Warn(ctx, "Rejected sign request without ticket")
		return nil, ResultRejected, errors.ErrInvalidArgument("Ticket is required").WithMetadata("field", "ticket")
	}

	// 3. Canonicalize
	var payload []byte
	err := s.stage(ctx, StageCanonicalize, func() error {
		var err error
		payload, err = s.canonicalizer.Canonicalize(ticket)
		return err
	})
	if err != nil {
		if errors.IsCode(err, errors.CodeInvalidArgument) {
			s.logger.Warn(ctx, "Rejected ticket", logger.Err(err), logger.String("ticket_id", ticket.Id))
			return nil, ResultRejected, err
		}
		return nil, ResultFailed, s.fail(ctx, StageCanonicalize, err, ticket.Id)
	}

	// 4. Sign
	var sig []byte
	err = s.stage(ctx, StageSign, func() error {
		var err error
		sig, err = s.signer.Sign(payload)
		return err
	})
	if err != nil {
		return nil, ResultFailed, s.fail(ctx, StageSign, err, ticket.Id)
	}

	// 5. Package
	result := &models.SigningResult{
		Package: &models.SignedPackage{Payload: payload, Signature: sig},
	}

	// 6. Encode
	if s.mode != constants.ResponseModePackage {
		err = s.stage(ctx, StageEncode, func() error {
			var err error
			result.Image, err = s.encoder.Encode(result.Package)
			return err
		})
		if err != nil {
			return nil, ResultFailed, s.fail(ctx, StageEncode, err, ticket.Id)
		}
		s.metrics.RecordQRImage(len(result.Image))
	}

	s.publishAudit(ctx, ticket.Id, result)

	s.logger.Info(ctx, "Ticket signed",
		logger.String("ticket_id", ticket.Id),
		logger.Int("payload_size", len(payload)),
		logger.Int("image_size", len(result.Image)),
	)
	return result, ResultSigned, nil
}

// stage runs fn inside a child span named after the stage.
func (s *signingAppServiceImpl) stage(ctx context.Context, name string, fn func() error) error {
	_, span := s.tracer.Start(ctx, "signing."+name)
	defer span.End()

	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// fail logs the cause of a pipeline failure and returns the error the caller
// sees. Callers never learn more than "internal".
func (s *signingAppServiceImpl) fail(ctx context.Context, stage string, err error, ticketID string) error {
	s.metrics.RecordStageFailure(stage)
	s.logger.Error(ctx, "Signing pipeline failed", err,
		logger.String("stage", stage),
		logger.String("ticket_id", ticketID),
	)
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.Wrap(err, "failed to "+stage+" ticket")
}

func (s *signingAppServiceImpl) publishAudit(ctx context.Context, ticketID string, result *models.SigningResult) {
	if s.audit == nil {
		return
	}
	var requestID string
	if v, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
		requestID = v
	}
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	event := models.NewTicketSignedLog(ticketID, string(s.canonicalizer.Policy()), s.keyID, result.Package).
		WithImageSize(len(result.Image)).
		WithContextInfo(requestID, traceID)

	if err := s.audit.Publish(ctx, event); err != nil {
		s.metrics.RecordAuditPublishError()
		s.logger.Warn(ctx, "Failed to publish audit event",
			logger.Err(err),
			logger.String("event_id", event.EventID.String()),
		)
	}
}
