package events

import (
	"fmt"

	"ledgerflow/internal/events/kafka"
	"ledgerflow/internal/telemetry"
)

// Publisher is the domain event sink consumed by the Transaction Record
// engine and the Payment Orchestrator, following the teacher's
// EventPublisher interface shape (messaging/publisher.go) generalized to
// two streams instead of five banking-specific ones.
type Publisher interface {
	PublishTransactionEvent(e Envelope) error
	PublishPaymentEvent(e Envelope) error
	Close() error
	IsHealthy() bool
}

// KafkaPublisher implements Publisher over the two Kafka topics, keying
// transaction events by transaction_id and payment events by payment_id
// (spec §4.5) so each entity's events land on one partition and preserve
// order.
type KafkaPublisher struct {
	producer          *kafka.Producer
	transactionsTopic string
	paymentsTopic     string
}

func NewKafkaPublisher(cfg *kafka.Config, transactionsTopic, paymentsTopic string) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka event publisher: %w", err)
	}
	return &KafkaPublisher{
		producer:          producer,
		transactionsTopic: transactionsTopic,
		paymentsTopic:     paymentsTopic,
	}, nil
}

func (p *KafkaPublisher) PublishTransactionEvent(e Envelope) error {
	err := p.producer.PublishEvent(p.transactionsTopic, e.TransactionID, e)
	telemetry.RecordEventPublished(e.EventType, publishStatus(err))
	return err
}

func (p *KafkaPublisher) PublishPaymentEvent(e Envelope) error {
	err := p.producer.PublishEvent(p.paymentsTopic, e.PaymentID, e)
	telemetry.RecordEventPublished(e.EventType, publishStatus(err))
	return err
}

func publishStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (p *KafkaPublisher) Close() error    { return p.producer.Close() }
func (p *KafkaPublisher) IsHealthy() bool { return p.producer.IsHealthy() }

// NoOpPublisher discards every event; used by unit tests that exercise the
// engines without a broker (spec §4.5 "payment correctness does not depend
// on successful event delivery").
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

func (NoOpPublisher) PublishTransactionEvent(Envelope) error { return nil }
func (NoOpPublisher) PublishPaymentEvent(Envelope) error     { return nil }
func (NoOpPublisher) Close() error                           { return nil }
func (NoOpPublisher) IsHealthy() bool                        { return true }
