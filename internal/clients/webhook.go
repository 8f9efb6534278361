package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"leafline/internal/domain"
)

// WebhookVerifier asks the payment verification endpoint whether an order
// has been paid.
type WebhookVerifier struct {
	url        string
	httpClient *http.Client
}

type VerifyRequest struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"payment_method"`
}

type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status,omitempty"`
}

func NewWebhookVerifier(url string, timeout time.Duration) *WebhookVerifier {
	return &WebhookVerifier{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (v *WebhookVerifier) Verify(ctx context.Context, o domain.Order) (bool, error) {
	jsonData, err := json.Marshal(VerifyRequest{
		OrderID:       o.ID,
		TransactionID: o.TransactionID,
		Amount:        o.Total,
		Method:        o.PaymentMethod,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(jsonData))
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to call verification webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var vr VerifyResponse
		if err := json.Unmarshal(body, &vr); err != nil {
			return false, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return vr.Verified, nil
	case http.StatusAccepted, http.StatusNotFound:
		// not settled yet
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}
}
