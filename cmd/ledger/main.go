package main

import (
	"context"
	"log"

	"ledgerflow/internal/app"
)

func main() {
	container, err := app.NewLedgerContainer(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize ledger: %v", err)
	}

	if err := container.Run(); err != nil {
		log.Fatalf("ledger server failed: %v", err)
	}
}
