package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"ledgerflow/internal/apperr"
)

// Client is the orchestrator-side view of the Ledger RPC surface (spec
// §6.1). Every method takes a context whose deadline, if any, is
// propagated onto the outbound HTTP request (spec §5 "Cancellation &
// timeouts"): a deadline exceeded while waiting for a response surfaces as
// apperr.DeadlineExceeded.
type Client interface {
	GetBalance(ctx context.Context, accountID string) (GetBalanceResponse, error)
	ReserveBalance(ctx context.Context, accountID string, amount int64, currency, idempotencyKey string) (string, error)
	CommitReservation(ctx context.Context, reservationID, transactionID string) error
	ReleaseReservation(ctx context.Context, reservationID, reason string) error
	CreditBalance(ctx context.Context, accountID string, amount int64, currency, referenceID string) (int64, error)
}

// HTTPClient implements Client over the gin HTTP surface exposed by Server.
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

func (c *HTTPClient) GetBalance(ctx context.Context, accountID string) (GetBalanceResponse, error) {
	var resp GetBalanceResponse
	err := c.do(ctx, http.MethodGet, "/accounts/"+accountID+"/balance", nil, &resp)
	return resp, err
}

func (c *HTTPClient) ReserveBalance(ctx context.Context, accountID string, amount int64, currency, idempotencyKey string) (string, error) {
	req := ReserveBalanceRequest{
		AccountID:      accountID,
		Amount:         Money{Amount: amount, Currency: currency},
		IdempotencyKey: idempotencyKey,
	}
	var resp ReserveBalanceResponse
	if err := c.do(ctx, http.MethodPost, "/accounts/"+accountID+"/reservations", req, &resp); err != nil {
		return "", err
	}
	return resp.ReservationID, nil
}

func (c *HTTPClient) CommitReservation(ctx context.Context, reservationID, transactionID string) error {
	req := CommitReservationRequest{TransactionID: transactionID}
	return c.do(ctx, http.MethodPost, "/reservations/"+reservationID+"/commit", req, nil)
}

func (c *HTTPClient) ReleaseReservation(ctx context.Context, reservationID, reason string) error {
	req := ReleaseReservationRequest{Reason: reason}
	return c.do(ctx, http.MethodPost, "/reservations/"+reservationID+"/release", req, nil)
}

func (c *HTTPClient) CreditBalance(ctx context.Context, accountID string, amount int64, currency, referenceID string) (int64, error) {
	req := CreditBalanceRequest{
		Amount:      Money{Amount: amount, Currency: currency},
		ReferenceID: referenceID,
	}
	var resp CreditBalanceResponse
	if err := c.do(ctx, http.MethodPost, "/accounts/"+accountID+"/credit", req, &resp); err != nil {
		return 0, err
	}
	return resp.NewBalance, nil
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
			return apperr.DeadlineExceededf("ledger rpc %s %s: %v", method, path, err)
		}
		return apperr.Internalf("ledger rpc %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return apperr.DeadlineExceededf("ledger rpc %s %s: upstream timeout", method, path)
	}

	if resp.StatusCode >= 300 {
		var wireErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&wireErr); decodeErr != nil {
			return apperr.Internalf("ledger rpc %s %s: status %d", method, path, resp.StatusCode)
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
