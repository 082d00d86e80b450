package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

// Config holds Kafka producer configuration, adapted from the teacher's
// internal/infrastructure/messaging/kafka.Config. Unlike the teacher (which
// disables idempotence for throughput), spec §6.4 requires
// events.producer.idempotent=true, acks=all, retries=3.
type Config struct {
	Brokers           []string
	ClientID          string
	EnableIdempotence bool
	RequiredAcks      string
	MaxRetries        int
}

// ToSaramaConfig converts to Sarama configuration, following
// internal/infrastructure/messaging/kafka.Config.ToSaramaConfig.
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	config := sarama.NewConfig()

	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Idempotent = c.EnableIdempotence
	config.Producer.Retry.Max = c.MaxRetries

	if c.EnableIdempotence {
		// Sarama requires MaxOpenRequests=1 when idempotence is enabled.
		config.Net.MaxOpenRequests = 1
	} else {
		config.Net.MaxOpenRequests = 5
	}

	switch c.RequiredAcks {
	case "all", "-1":
		config.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		config.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		config.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("invalid required acks value: %s", c.RequiredAcks)
	}

	config.ClientID = c.ClientID
	config.Version = sarama.V3_0_0_0

	return config, nil
}
