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
	"ledgerflow/internal/logging"
	ledgerrpc "ledgerflow/internal/ledger/rpc"
	"ledgerflow/internal/orchestrator/rpc"
	"ledgerflow/internal/orchestrator/service"
	"ledgerflow/internal/orchestrator/store/postgres"
	"ledgerflow/internal/telemetry"
	txrecordrpc "ledgerflow/internal/txrecord/rpc"
)

// OrchestratorContainer holds the Payment Orchestrator process's
// components: its own Payment store, HTTP clients for the Ledger and
// Transaction Record collaborators, and an event publisher for payment
// events.
type OrchestratorContainer struct {
	Logging   config.Logging
	Server    config.Server
	Database  config.Database
	Endpoints config.Endpoints
	Events    config.Events

	Store        *postgres.Store
	Publisher    events.Publisher
	Orchestrator *service.Orchestrator
	Router       *gin.Engine
	HTTP         *http.Server
}

func NewOrchestratorContainer(ctx context.Context) (*OrchestratorContainer, error) {
	c := &OrchestratorContainer{
		Logging:   config.LoadLogging(),
		Server:    config.LoadServer("ORCHESTRATOR_SERVER_PORT", "8080"),
		Database:  config.LoadDatabase("ORCHESTRATOR"),
		Endpoints: config.LoadEndpoints(),
		Events:    config.LoadEvents("orchestrator"),
	}

	logging.Init(c.Logging.Level, c.Logging.Format)

	pgStore, err := postgres.Connect(ctx, c.Database.ConnectionString(), c.Database.MaxConns, c.Database.MinConns, c.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("connect to orchestrator database: %w", err)
	}
	c.Store = pgStore

	c.Publisher = newPublisher(c.Events)

	httpClient := &http.Client{Timeout: c.Endpoints.CallTimeout}
	ledgerClient := ledgerrpc.NewHTTPClient(c.Endpoints.LedgerEndpoint, httpClient)
	txrecordClient := txrecordrpc.NewHTTPClient(c.Endpoints.TxRecordEndpoint, httpClient)

	c.Orchestrator = service.New(c.Store, ledgerClient, txrecordClient, c.Publisher)

	c.initRouter()
	logging.Info("orchestrator container initialized", map[string]interface{}{
		"port":              c.Server.Port,
		"ledger_endpoint":   c.Endpoints.LedgerEndpoint,
		"txrecord_endpoint": c.Endpoints.TxRecordEndpoint,
	})
	return c, nil
}

func (c *OrchestratorContainer) initRouter() {
	c.Router = gin.New()
	c.Router.Use(gin.Recovery(), telemetry.GinMiddleware())

	server := rpc.NewServer(c.Orchestrator)
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

func (c *OrchestratorContainer) Run() error {
	go func() {
		if err := c.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("orchestrator server failed", err, nil)
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

func (c *OrchestratorContainer) Shutdown(ctx context.Context) error {
	if err := c.HTTP.Shutdown(ctx); err != nil {
		return fmt.Errorf("orchestrator server shutdown: %w", err)
	}
	if err := c.Publisher.Close(); err != nil {
		logging.Error("failed to close event publisher", err, nil)
	}
	c.Store.Close()
	return nil
}
