package pay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Client talks to the card processor. It implements the charge and payout
// calls the booking core needs; settlement arrives later through the webhook.
type Client struct {
	httpClient *http.Client
	merchantID string
	secret     string
	callback   string
	baseURL    string
	currency   string
}

// NewClient constructs a processor client. An empty baseURL keeps the default endpoint.
func NewClient(httpClient *http.Client, baseURL, merchantID, secret, callback string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.gigpay.example/v1"
	}
	return &Client{
		httpClient: httpClient,
		merchantID: merchantID,
		secret:     secret,
		callback:   callback,
		baseURL:    baseURL,
		currency:   "GBP",
	}
}

// Secret returns the configured signing secret.
func (c *Client) Secret() string { return c.secret }

type chargeResponse struct {
	Success bool   `json:"success"`
	Ref     string `json:"payment_ref"`
	Message string `json:"message"`
}

// Charge starts collecting amount (minor units) with the venue's payment method.
// The returned reference identifies the later settlement notification.
func (c *Client) Charge(ctx context.Context, amount int64, destination string, metadata map[string]string) (string, error) {
	payload := map[string]interface{}{
		"merchant_id":    c.merchantID,
		"amount":         amount,
		"currency":       c.currency,
		"payment_method": destination,
		"callback_url":   c.callback,
		"metadata":       metadata,
	}
	if id := metadata["engagement_id"]; id != "" {
		payload["idempotency_key"] = id + ":" + metadata["performer_id"] + ":" + strconv.FormatInt(amount, 10)
	}
	var resp chargeResponse
	if err := c.post(ctx, "/charges", payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Ref == "" {
		return "", fmt.Errorf("pay: charge rejected: %s", resp.Message)
	}
	return resp.Ref, nil
}

type payoutResponse struct {
	Success bool   `json:"success"`
	Ref     string `json:"payout_ref"`
	Message string `json:"message"`
}

// Payout sends amount (minor units) to a linked payout destination.
func (c *Client) Payout(ctx context.Context, amount int64, destination string) (string, error) {
	payload := map[string]interface{}{
		"merchant_id": c.merchantID,
		"amount":      amount,
		"currency":    c.currency,
		"destination": destination,
	}
	var resp payoutResponse
	if err := c.post(ctx, "/payouts", payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Ref == "" {
		return "", fmt.Errorf("pay: payout rejected: %s", resp.Message)
	}
	return resp.Ref, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(body, c.secret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pay: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
