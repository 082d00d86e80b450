package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerflow/internal/config"
	"ledgerflow/internal/events"
	eventskafka "ledgerflow/internal/events/kafka"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/telemetry"
	"ledgerflow/internal/txrecord/engine"
	"ledgerflow/internal/txrecord/rpc"
	"ledgerflow/internal/txrecord/store/postgres"
)

// TxRecordContainer holds the Transaction Record Store process's
// components.
type TxRecordContainer struct {
	Logging  config.Logging
	Server   config.Server
	Database config.Database
	Events   config.Events

	Store     *postgres.Store
	Publisher events.Publisher
	Engine    *engine.Engine
	Router    *gin.Engine
	HTTP      *http.Server
}

func NewTxRecordContainer(ctx context.Context) (*TxRecordContainer, error) {
	c := &TxRecordContainer{
		Logging:  config.LoadLogging(),
		Server:   config.LoadServer("TXRECORD_SERVER_PORT", "8082"),
		Database: config.LoadDatabase("TXRECORD"),
		Events:   config.LoadEvents("txrecord"),
	}

	logging.Init(c.Logging.Level, c.Logging.Format)

	pgStore, err := postgres.Connect(ctx, c.Database.ConnectionString(), c.Database.MaxConns, c.Database.MinConns, c.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("connect to txrecord database: %w", err)
	}
	c.Store = pgStore

	c.Publisher = newPublisher(c.Events)
	c.Engine = engine.New(c.Store, c.Publisher)

	c.initRouter()
	logging.Info("txrecord container initialized", map[string]interface{}{
		"port": c.Server.Port,
		"db":   c.Database.Host,
	})
	return c, nil
}

// newPublisher builds a Kafka-backed Publisher, falling back to a no-op one
// if events are disabled or the broker is unreachable at startup — mirroring
// the teacher's initEventPublisher fallback so the service can still start
// without a broker present (components.go, "Failed to initialize Kafka").
func newPublisher(cfg config.Events) events.Publisher {
	if !cfg.Enabled {
		logging.Info("events disabled, using no-op publisher", nil)
		return events.NewNoOpPublisher()
	}

	kafkaCfg := &eventskafka.Config{
		Brokers:           cfg.Brokers,
		ClientID:          cfg.ClientID,
		EnableIdempotence: cfg.Idempotent,
		RequiredAcks:      cfg.RequiredAcks,
		MaxRetries:        cfg.MaxRetries,
	}

	publisher, err := events.NewKafkaPublisher(kafkaCfg, cfg.TransactionsTopic, cfg.PaymentsTopic)
	if err != nil {
		logging.Warn("failed to initialize kafka, using no-op publisher", map[string]interface{}{
			"error": err.Error(),
		})
		return events.NewNoOpPublisher()
	}
	return publisher
}

func (c *TxRecordContainer) initRouter() {
	c.Router = gin.New()
	c.Router.Use(gin.Recovery(), telemetry.GinMiddleware())

	server := rpc.NewServer(c.Engine)
	server.RegisterRoutes(c.Router.Group(""))
	c.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	c.HTTP = &http.Server{
		Addr:           c.Server.Host + ":" + c.Server.Port,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

func (c *TxRecordContainer) Run() error {
	go func() {
		if err := c.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("txrecord server failed", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Shutdown(ctx)
}

func (c *TxRecordContainer) Shutdown(ctx context.Context) error {
	if err := c.HTTP.Shutdown(ctx); err != nil {
		return fmt.Errorf("txrecord server shutdown: %w", err)
	}
	if err := c.Publisher.Close(); err != nil {
		logging.Error("failed to close event publisher", err, nil)
	}
	c.Store.Close()
	return nil
}
