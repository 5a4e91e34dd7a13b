package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIClient submits order records to the backend order API, the primary
// commit path. Transient failures are retried with exponential backoff
// before the caller falls back to the direct write.
type APIClient struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewAPIClient creates a client against the order API base URL.
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      client,
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		sleep:       time.Sleep,
	}
}

// Submit POSTs the record to /orders and returns the created order id.
// Any failure after the retry budget (network, non-2xx, malformed
// response) is reported so the fallback path can take over.
func (c *APIClient) Submit(ctx context.Context, rec Record) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encoding order record: %w", err)
	}

	var lastErr error
	delay := c.baseDelay
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		id, err := c.post(ctx, body)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			c.sleep(delay)
			delay *= 2
		}
	}
	return "", fmt.Errorf("submitting order after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *APIClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("order API status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var reply struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decoding order response: %w", err)
	}
	if reply.ID == "" {
		return "", fmt.Errorf("order response missing id")
	}
	return reply.ID, nil
}
