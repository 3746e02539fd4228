package audit

import (
	"context"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// LogPublisher writes audit events to the structured log.
type LogPublisher struct {
	logger logger.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log logger.Logger) *LogPublisher {
	return &LogPublisher{logger: log.WithComponent("Audit")}
}

// Publish logs event at info level.
func (p *LogPublisher) Publish(ctx context.Context, event *models.AuditLog) error {
	p.logger.Info(ctx, "Audit event",
		logger.String("event_id", event.EventID.String()),
		logger.String("event_type", string(event.EventType)),
		logger.String("ticket_id", event.TicketID),
		logger.String("policy", event.Policy),
		logger.String("payload_sha256", event.PayloadSHA256),
		logger.String("key_id", event.KeyID),
		logger.Int("image_size", event.ImageSize),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *models.AuditLog) error { return nil }
func (noopPublisher) Close() error                                    { return nil }

// NewPublisher builds the audit sink selected by cfg.
func NewPublisher(cfg *config.AuditConfig, metrics service.Metrics, log logger.Logger) (service.AuditPublisher, error) {
	switch constants.AuditSink(cfg.Sink) {
	case constants.AuditSinkLog, "":
		return NewLogPublisher(log), nil
	case constants.AuditSinkKafka:
		p, err := NewKafkaProducer(&cfg.Kafka, metrics, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	case constants.AuditSinkNone:
		return noopPublisher{}, nil
	default:
		return nil, errors.ErrInvalidArgument("unknown audit sink " + cfg.Sink)
	}
}
