// Package audit publishes issuance events of signed tickets.
package audit

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

var _ service.AuditPublisher = (*KafkaProducer)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is a Kafka-backed AuditPublisher. Messages are keyed by
// ticket id so events of one ticket stay ordered within a partition.
type KafkaProducer struct {
	writer messageWriter
	logger logger.Logger
}

// NewKafkaProducer creates an asynchronous producer. Delivery failures are
// reported to metrics and the log from the writer's completion callback.
func NewKafkaProducer(cfg *config.KafkaConfig, metrics service.Metrics, log logger.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.ErrInvalidArgument("kafka audit sink requires brokers and a topic")
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	log = log.WithComponent("KafkaProducer")

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: false,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for range messages {
				metrics.RecordAuditPublishError()
			}
			log.Error(context.Background(), "Failed to deliver audit events", err,
				logger.Int("count", len(messages)),
			)
		},
	}
	log.Info(context.Background(), "Kafka audit producer configured",
		logger.Any("brokers", cfg.Brokers),
		logger.String("topic", cfg.Topic),
	)
	return newKafkaProducer(writer, log), nil
}

func newKafkaProducer(w messageWriter, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{writer: w, logger: log}
}

// Publish sends an audit event to the Kafka topic.
func (p *KafkaProducer) Publish(ctx context.Context, event *models.AuditLog) error {
	value, err := event.JSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit event")
	}

	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
		Time: event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.ErrUnavailable("failed to write audit event").WithCause(err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
