package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"ledgerflow/internal/apperr"
)

// Client is the simulator-side view of the Payment Orchestrator's RPC
// surface.
type Client interface {
	CreatePayment(ctx context.Context, source, destination string, amount int64, currency string) (PaymentResponse, error)
	ProcessPayment(ctx context.Context, paymentID string) (PaymentResponse, error)
	CancelPayment(ctx context.Context, paymentID string) (PaymentResponse, error)
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

func (c *HTTPClient) CreatePayment(ctx context.Context, source, destination string, amount int64, currency string) (PaymentResponse, error) {
	req := CreatePaymentRequest{
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               Money{Amount: amount, Currency: currency},
	}
	var resp PaymentResponse
	err := c.do(ctx, http.MethodPost, "/payments", req, &resp)
	return resp, err
}

func (c *HTTPClient) ProcessPayment(ctx context.Context, paymentID string) (PaymentResponse, error) {
	var resp PaymentResponse
	err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/process", nil, &resp)
	return resp, err
}

func (c *HTTPClient) CancelPayment(ctx context.Context, paymentID string) (PaymentResponse, error) {
	var resp PaymentResponse
	err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/cancel", nil, &resp)
	return resp, err
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
			return apperr.DeadlineExceededf("orchestrator rpc %s %s: %v", method, path, err)
		}
		return apperr.Internalf("orchestrator rpc %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return apperr.DeadlineExceededf("orchestrator rpc %s %s: upstream timeout", method, path)
	}

	if resp.StatusCode >= 300 {
		var wireErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&wireErr); decodeErr != nil {
			return apperr.Internalf("orchestrator rpc %s %s: status %d", method, path, resp.StatusCode)
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
