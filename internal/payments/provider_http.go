package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider talks to a payment-intent style provider API. Calls carry the
// request context so provider latency is bounded by the caller's deadline on
// top of the client timeout.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %d for %s", resp.StatusCode, path)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (p *HTTPProvider) Authorize(ctx context.Context, amount int64, currency string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]interface{}{
		"amount":         amount,
		"currency":       currency,
		"capture_method": "manual",
	}
	if err := p.post(ctx, "/v1/payment_intents", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (p *HTTPProvider) Capture(ctx context.Context, externalID string) error {
	return p.post(ctx, "/v1/payment_intents/"+externalID+"/capture", map[string]interface{}{}, nil)
}

func (p *HTTPProvider) Refund(ctx context.Context, externalID string, amount int64) error {
	body := map[string]interface{}{"amount": amount}
	return p.post(ctx, "/v1/payment_intents/"+externalID+"/refund", body, nil)
}
