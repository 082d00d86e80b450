// Package config centralizes the environment-driven configuration for every
// service binary, following the teacher's getEnv/getEnvAsInt style
// (src/config/config.go, internal/infrastructure/database/postgres/config.go,
// internal/infrastructure/messaging/kafka/config.go) collapsed into one
// loader per option family so each binary pulls only what it needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Logging holds the structured logger settings shared by every binary.
type Logging struct {
	Level  string
	Format string
}

func LoadLogging() Logging {
	return Logging{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

// Server holds the HTTP listener settings for a service's RPC surface.
type Server struct {
	Host string
	Port string
}

func LoadServer(portEnv, defaultPort string) Server {
	return Server{
		Host: getEnv("SERVER_HOST", "0.0.0.0"),
		Port: getEnv(portEnv, defaultPort),
	}
}

// Database holds PostgreSQL connectivity settings, per spec.md
// ledger.db.url / ledger.db.max_conns.
type Database struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

func LoadDatabase(prefix string) Database {
	return Database{
		Host:            getEnv(prefix+"_DB_HOST", "localhost"),
		Port:            getEnvInt(prefix+"_DB_PORT", 5432),
		Name:            getEnv(prefix+"_DB_NAME", strings.ToLower(prefix)),
		User:            getEnv(prefix+"_DB_USER", strings.ToLower(prefix)),
		Password:        getEnv(prefix+"_DB_PASSWORD", ""),
		SSLMode:         getEnv(prefix+"_DB_SSLMODE", "disable"),
		MaxConns:        int32(getEnvInt(prefix+"_DB_MAX_CONNS", 25)),
		MinConns:        int32(getEnvInt(prefix+"_DB_MIN_CONNS", 2)),
		ConnMaxLifetime: getEnvDuration(prefix+"_DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// ConnectionString builds a libpq-style DSN for pgxpool.
func (d Database) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Reservation holds Ledger-specific reservation engine settings, per
// spec.md ledger.reservation.default_ttl.
type Reservation struct {
	DefaultTTL time.Duration
}

func LoadReservation() Reservation {
	return Reservation{
		DefaultTTL: getEnvDuration("LEDGER_RESERVATION_DEFAULT_TTL", 15*time.Minute),
	}
}

// Endpoints holds the orchestrator's collaborator RPC targets, per spec.md
// orchestrator.ledger_endpoint / orchestrator.txrecord_endpoint.
type Endpoints struct {
	LedgerEndpoint   string
	TxRecordEndpoint string
	CallTimeout      time.Duration
}

func LoadEndpoints() Endpoints {
	return Endpoints{
		LedgerEndpoint:   getEnv("ORCHESTRATOR_LEDGER_ENDPOINT", "http://localhost:8081"),
		TxRecordEndpoint: getEnv("ORCHESTRATOR_TXRECORD_ENDPOINT", "http://localhost:8082"),
		CallTimeout:      getEnvDuration("ORCHESTRATOR_CALL_TIMEOUT", 5*time.Second),
	}
}

// Events holds the event stream settings, per spec.md events.* options.
type Events struct {
	Brokers           []string
	ClientID          string
	TransactionsTopic string
	PaymentsTopic     string
	RequiredAcks      string
	MaxRetries        int
	Idempotent        bool
	Enabled           bool
}

func LoadEvents(clientID string) Events {
	return Events{
		Brokers:           strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		ClientID:          getEnv("KAFKA_CLIENT_ID", clientID),
		TransactionsTopic: getEnv("EVENTS_TRANSACTIONS_TOPIC", "ledger.transactions"),
		PaymentsTopic:     getEnv("EVENTS_PAYMENTS_TOPIC", "ledger.payments"),
		RequiredAcks:      getEnv("EVENTS_PRODUCER_ACKS", "all"),
		MaxRetries:        getEnvInt("EVENTS_PRODUCER_RETRIES", 3),
		Idempotent:        getEnvBool("EVENTS_PRODUCER_IDEMPOTENT", true),
		Enabled:           getEnvBool("KAFKA_ENABLED", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
