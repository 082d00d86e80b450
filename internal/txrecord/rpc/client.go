package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"ledgerflow/internal/apperr"
)

// Client is the orchestrator-side view of the Transaction Record RPC
// surface (spec §6.2).
type Client interface {
	CreateTransaction(ctx context.Context, paymentID, reservationID, sourceID, destinationID string, amount int64, currency, idempotencyKey string) (transactionID, referenceNumber string, err error)
	CompleteTransaction(ctx context.Context, transactionID string) error
	FailTransaction(ctx context.Context, transactionID, reason string) error
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{baseURL: baseURL, http: httpClient}
}

func (c *HTTPClient) CreateTransaction(ctx context.Context, paymentID, reservationID, sourceID, destinationID string, amount int64, currency, idempotencyKey string) (string, string, error) {
	req := CreateTransactionRequest{
		PaymentID:      paymentID,
		ReservationID:  reservationID,
		SourceID:       sourceID,
		DestinationID:  destinationID,
		Amount:         Money{Amount: amount, Currency: currency},
		IdempotencyKey: idempotencyKey,
	}
	var resp CreateTransactionResponse
	if err := c.do(ctx, http.MethodPost, "/transactions", req, &resp); err != nil {
		return "", "", err
	}
	return resp.TransactionID, resp.ReferenceNumber, nil
}

func (c *HTTPClient) CompleteTransaction(ctx context.Context, transactionID string) error {
	return c.do(ctx, http.MethodPost, "/transactions/"+transactionID+"/complete", nil, nil)
}

func (c *HTTPClient) FailTransaction(ctx context.Context, transactionID, reason string) error {
	req := FailTransactionRequest{Reason: reason}
	return c.do(ctx, http.MethodPost, "/transactions/"+transactionID+"/fail", req, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperr.Internalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Internalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperr.DeadlineExceededf("txrecord rpc %s %s: %v", method, path, err)
		}
		return apperr.Internalf("txrecord rpc %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return apperr.DeadlineExceededf("txrecord rpc %s %s: upstream timeout", method, path)
	}

	if resp.StatusCode >= 300 {
		var wireErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&wireErr); decodeErr != nil {
			return apperr.Internalf("txrecord rpc %s %s: status %d", method, path, resp.StatusCode)
		}
		return apperr.New(apperr.Category(wireErr.Category), wireErr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Internalf("decode response: %v", err)
	}
	return nil
}
