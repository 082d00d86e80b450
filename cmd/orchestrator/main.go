package main

import (
	"context"
	"log"

	"ledgerflow/internal/app"
)

func main() {
	container, err := app.NewOrchestratorContainer(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize payment orchestrator: %v", err)
	}

	if err := container.Run(); err != nil {
		log.Fatalf("orchestrator server failed: %v", err)
	}
}
