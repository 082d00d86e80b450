package main

import (
	"context"
	"log"

	"ledgerflow/internal/app"
)

func main() {
	container, err := app.NewTxRecordContainer(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize transaction record store: %v", err)
	}

	if err := container.Run(); err != nil {
		log.Fatalf("transaction record server failed: %v", err)
	}
}
