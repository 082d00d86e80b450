// Package app wires each service binary's components together, following
// the teacher's internal/pkg/components.Container shape: one container per
// process holding config, logger, store, event publisher, router, and
// server, with explicit Run/Shutdown lifecycle methods instead of the
// teacher's package-level singleton.
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
	"ledgerflow/internal/ledger/engine"
	"ledgerflow/internal/ledger/rpc"
	"ledgerflow/internal/ledger/store/postgres"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/telemetry"
)

// LedgerContainer holds the Ledger RPC Server process's components.
type LedgerContainer struct {
	Logging     config.Logging
	Server      config.Server
	Database    config.Database
	Reservation config.Reservation

	Store  *postgres.Store
	Engine *engine.Engine
	Router *gin.Engine
	HTTP   *http.Server
}

// NewLedgerContainer loads configuration, connects to Postgres, and wires
// the reservation engine behind the gin RPC surface.
func NewLedgerContainer(ctx context.Context) (*LedgerContainer, error) {
	c := &LedgerContainer{
		Logging:     config.LoadLogging(),
		Server:      config.LoadServer("LEDGER_SERVER_PORT", "8081"),
		Database:    config.LoadDatabase("LEDGER"),
		Reservation: config.LoadReservation(),
	}

	logging.Init(c.Logging.Level, c.Logging.Format)

	pgStore, err := postgres.Connect(ctx, c.Database.ConnectionString(), c.Database.MaxConns, c.Database.MinConns, c.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("connect to ledger database: %w", err)
	}
	c.Store = pgStore
	c.Engine = engine.New(c.Store, c.Reservation.DefaultTTL)

	c.initRouter()
	logging.Info("ledger container initialized", map[string]interface{}{
		"port": c.Server.Port,
		"db":   c.Database.Host,
	})
	return c, nil
}

func (c *LedgerContainer) initRouter() {
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

// Run starts serving and blocks until an interrupt signal arrives.
func (c *LedgerContainer) Run() error {
	go func() {
		if err := c.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("ledger server failed", err, nil)
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

func (c *LedgerContainer) Shutdown(ctx context.Context) error {
	if err := c.HTTP.Shutdown(ctx); err != nil {
		return fmt.Errorf("ledger server shutdown: %w", err)
	}
	c.Store.Close()
	return nil
}
