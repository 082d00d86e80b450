// Package kafka wraps a Sarama sync producer for the two event streams,
// adapted from the teacher's internal/infrastructure/messaging/kafka.Producer.
package kafka

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"ledgerflow/internal/logging"
)

type Producer struct {
	producer sarama.SyncProducer
	config   *Config
	mu       sync.RWMutex
	closed   bool
}

func NewProducer(config *Config) (*Producer, error) {
	saramaConfig, err := config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("create sarama config: %w", err)
	}

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logging.Info("kafka producer initialized", map[string]interface{}{
		"brokers":   config.Brokers,
		"client_id": config.ClientID,
	})

	return &Producer{producer: producer, config: config}, nil
}

// PublishEvent publishes an envelope to topic, keyed by key so all events
// for one entity land on the same partition and preserve order (spec §5
// "For a single entity id... events appear in the publish order").
func (p *Producer) PublishEvent(topic string, key string, envelope interface{}) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("producer is closed")
	}
	p.mu.RUnlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logging.Warn("failed to publish event to kafka", map[string]interface{}{
			"topic": topic, "key": key, "error": err.Error(),
		})
		return fmt.Errorf("send message to kafka: %w", err)
	}

	logging.Debug("event published to kafka", map[string]interface{}{
		"topic": topic, "partition": partition, "offset": offset, "key": key,
	})
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

func (p *Producer) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}
