package order

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Notifier dispatches order-created notifications. The primary order API
// sends these itself as a side effect; the fallback path bypasses it, so
// the commit service fires the equivalent notification here as a
// best-effort compensating call. A delivery failure never fails a commit —
// the order is already durably recorded.
type Notifier struct {
	url        string
	secret     string
	client     *http.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// NewNotifier creates a notifier posting to the given URL. An empty URL
// disables dispatch.
func NewNotifier(url, secret string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:        url,
		secret:     secret,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		maxRetries: 3,
		retryDelay: time.Second,
		sleep:      time.Sleep,
	}
}

// OrderCreated sends the notification for the given record. Returns the
// delivery error for observability; callers on the commit path ignore it.
func (n *Notifier) OrderCreated(ctx context.Context, rec Record) error {
	if n.url == "" {
		n.logger.Debug("no notify URL configured, skipping dispatch", "order_id", rec.ID)
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"type":  "order.created",
		"order": rec,
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating notification request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if n.secret != "" {
			ts := strconv.FormatInt(time.Now().Unix(), 10)
			req.Header.Set("Snapcase-Timestamp", ts)
			req.Header.Set("Snapcase-Signature", sign(payload, ts, n.secret))
		}

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("notification delivery failed: status %d", resp.StatusCode)
		}

		if attempt < n.maxRetries {
			n.sleep(n.retryDelay)
		}
	}
	return lastErr
}

// sign computes the hex HMAC-SHA256 of "{timestamp}.{payload}".
func sign(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
