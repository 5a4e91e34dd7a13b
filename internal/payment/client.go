// Package payment is the client for the external redirect-based payment
// processor. The service only depends on the processor's contract: create
// a checkout session, send the customer to its redirect URL, and receive
// them back on the success or cancel route.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckoutRequest is the body of POST /payments/create-checkout-session.
type CheckoutRequest struct {
	Amount        int64             `json:"amountInSmallestCurrencyUnit"`
	Currency      string            `json:"currency"`
	OrderMetadata map[string]string `json:"orderMetadata,omitempty"`
	SuccessURL    string            `json:"successUrl"`
	CancelURL     string            `json:"cancelUrl"`
}

// CheckoutSession is the processor's response: where to send the customer.
type CheckoutSession struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// Client talks to the payment processor's session API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a payment client against the processor base URL.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, client: client}
}

// CreateCheckoutSession asks the processor for a redirect session.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("encoding checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/payments/create-checkout-session", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("creating checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("creating checkout session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return CheckoutSession{}, fmt.Errorf("creating checkout session: status %d: %s",
			resp.StatusCode, bytes.TrimSpace(data))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return CheckoutSession{}, fmt.Errorf("decoding checkout session: %w", err)
	}
	if session.RedirectURL == "" {
		return CheckoutSession{}, fmt.Errorf("checkout session missing redirect URL")
	}
	return session, nil
}
