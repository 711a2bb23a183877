package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CaptureResult reports the outcome of one capture attempt.
type CaptureResult struct {
	Succeeded bool
	Reference string
}

// PaymentChannel is the external capture collaborator. Its internal retry
// and idempotency behavior is owned by the provider; callers bound each
// attempt with a context timeout and treat a timeout as a failed capture.
type PaymentChannel interface {
	AttemptCapture(ctx context.Context, paymentID string, amountCents int64, currency string) (CaptureResult, error)
}

type captureRequest struct {
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type captureResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

// HTTPPaymentChannel captures payments against a provider's HTTP endpoint.
type HTTPPaymentChannel struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPaymentChannel creates a capture client with a bounded timeout.
func NewHTTPPaymentChannel(endpoint string, timeout time.Duration) *HTTPPaymentChannel {
	return &HTTPPaymentChannel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (h *HTTPPaymentChannel) AttemptCapture(ctx context.Context, paymentID string, amountCents int64, currency string) (CaptureResult, error) {
	body, err := json.Marshal(captureRequest{PaymentID: paymentID, AmountCents: amountCents, Currency: currency})
	if err != nil {
		return CaptureResult{}, fmt.Errorf("encode capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return CaptureResult{}, fmt.Errorf("build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("capture call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Declined by the provider; not an error, just an unsuccessful capture.
		return CaptureResult{Succeeded: false}, nil
	}

	var out captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CaptureResult{}, fmt.Errorf("decode capture response: %w", err)
	}
	return CaptureResult{Succeeded: out.Status == "succeeded", Reference: out.Reference}, nil
}

// SimulatedChannel approves every capture. It stands in for a real provider
// in local and test environments.
type SimulatedChannel struct{}

func (SimulatedChannel) AttemptCapture(ctx context.Context, paymentID string, amountCents int64, currency string) (CaptureResult, error) {
	return CaptureResult{Succeeded: true, Reference: "sim-" + paymentID}, nil
}
