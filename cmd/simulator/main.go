// Command simulator is a local load generator for the payment orchestration
// protocol, adapted from the teacher's dev/simulator/main.go: it drives a
// running deployment with concurrent blocks of randomized operations and
// reports per-endpoint status/duration at the end.
//
// Account provisioning is out of scope for the Ledger's RPC surface (spec
// §1, §3 — accounts are created externally), so unlike the teacher's
// simulator, which calls POST /accounts, this one seeds accounts directly
// into the Ledger's Postgres database before driving payments through the
// Payment Orchestrator's HTTP API.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"ledgerflow/internal/config"
	"ledgerflow/internal/ledger/store/postgres"
	orchestratorrpc "ledgerflow/internal/orchestrator/rpc"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

// requestMetric mirrors the teacher's metrics.RequestMetric, kept local
// here since nothing outside this binary needs it.
type requestMetric struct {
	Operation string
	Status    string
	Duration  time.Duration
}

var (
	metricsMu sync.Mutex
	metricsLs []requestMetric
)

func recordMetric(operation, status string, duration time.Duration) {
	metricsMu.Lock()
	metricsLs = append(metricsLs, requestMetric{Operation: operation, Status: status, Duration: duration})
	metricsMu.Unlock()
}

func listMetrics() []requestMetric {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	copied := make([]requestMetric, len(metricsLs))
	copy(copied, metricsLs)
	return copied
}

// seedAccounts inserts numAccounts fresh accounts directly into the
// Ledger's accounts table, each funded with startingBalance minor units in
// currency. It connects to the same Postgres database the Ledger service
// itself uses (LEDGER_DB_* env vars), bypassing the RPC surface entirely
// since account creation is not one of its operations.
func seedAccounts(ctx context.Context, numAccounts int, currency string, startingBalance int64) ([]string, error) {
	dbCfg := config.LoadDatabase("LEDGER")
	store, err := postgres.Connect(ctx, dbCfg.ConnectionString(), dbCfg.MaxConns, dbCfg.MinConns, dbCfg.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("connect to ledger database: %w", err)
	}
	defer store.Close()

	accountIDs := make([]string, 0, numAccounts)
	for i := 0; i < numAccounts; i++ {
		id := fmt.Sprintf("sim-acct-%04d", i+1)
		if err := store.SeedAccount(ctx, id, currency, startingBalance); err != nil {
			return nil, fmt.Errorf("seed account %s: %w", id, err)
		}
		accountIDs = append(accountIDs, id)
	}
	return accountIDs, nil
}

func randomOp(ctx context.Context, client orchestratorrpc.Client, accountIDs []string, maxAmount int64, currency string) {
	from := accountIDs[rand.Intn(len(accountIDs))]
	to := accountIDs[rand.Intn(len(accountIDs))]
	for to == from {
		to = accountIDs[rand.Intn(len(accountIDs))]
	}
	amount := rand.Int63n(maxAmount) + 1

	start := time.Now()
	payment, err := client.CreatePayment(ctx, from, to, amount, currency)
	if err != nil {
		recordMetric("create_payment", "error", time.Since(start))
		log.Printf("create payment %s -> %s: %v", from, to, err)
		return
	}
	recordMetric("create_payment", "ok", time.Since(start))

	// Occasionally cancel instead of processing, to exercise cancelling a
	// PENDING payment alongside the happy path.
	if rand.Intn(10) == 0 {
		start = time.Now()
		_, err := client.CancelPayment(ctx, payment.ID)
		if err != nil {
			recordMetric("cancel_payment", "error", time.Since(start))
			log.Printf("cancel payment %s: %v", payment.ID, err)
			return
		}
		recordMetric("cancel_payment", "ok", time.Since(start))
		return
	}

	start = time.Now()
	processed, err := client.ProcessPayment(ctx, payment.ID)
	if err != nil {
		recordMetric("process_payment", "error", time.Since(start))
		log.Printf("process payment %s: %v", payment.ID, err)
		return
	}
	recordMetric("process_payment", processed.Status, time.Since(start))
}

func main() {
	rand.Seed(time.Now().UnixNano())

	var (
		orchestratorURL = getenv("SIMULATOR_ORCHESTRATOR_URL", "http://localhost:8080")
		currency        = getenv("SIMULATOR_CURRENCY", "USD")
		numAccounts     = getenvInt("SIMULATOR_NUM_ACCOUNTS", 50)
		totalOps        = getenvInt("SIMULATOR_TOTAL_OPS", 2000)
		blockSize       = getenvInt("SIMULATOR_BLOCK_SIZE", 50)
		blockPause      = 100 * time.Millisecond
		startingBalance = int64(1_000_000)
		maxAmount       = int64(5_000)
	)

	ctx := context.Background()

	log.Printf("seeding %d accounts into the ledger database", numAccounts)
	accountIDs, err := seedAccounts(ctx, numAccounts, currency, startingBalance)
	if err != nil {
		log.Fatalf("seed accounts: %v", err)
	}

	client := orchestratorrpc.NewHTTPClient(orchestratorURL, &http.Client{Timeout: 10 * time.Second})

	log.Printf("driving %d payment operations against %s", totalOps, orchestratorURL)
	for sent := 0; sent < totalOps; {
		var wg sync.WaitGroup
		for i := 0; i < blockSize && sent < totalOps; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				randomOp(ctx, client, accountIDs, maxAmount, currency)
			}()
			sent++
		}
		wg.Wait()
		time.Sleep(blockPause)
	}

	for _, m := range listMetrics() {
		log.Printf("%-16s status=%-10s duration=%s", m.Operation, m.Status, m.Duration)
	}
}
