// Package storage uploads image artifacts to durable object storage under
// unique, time-based names and hands back publicly resolvable URLs for the
// order record to reference.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader stores a binary artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// UniqueName generates a time-based unique object name with the given
// prefix and extension, e.g. "orders/1724850000123456789-9f8b2c1a-original.jpg".
func UniqueName(prefix, suffix, ext string) string {
	return fmt.Sprintf("%s/%d-%s-%s%s",
		prefix, time.Now().UnixNano(), uuid.NewString()[:8], suffix, ext)
}

// HTTPUploader uploads via PUT {baseURL}/objects/{name}. Transient failures
// are retried with exponential backoff before the commit is aborted.
type HTTPUploader struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewHTTPUploader creates an uploader against the object storage base URL.
func NewHTTPUploader(baseURL string, client *http.Client) *HTTPUploader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPUploader{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      client,
		maxAttempts: 3,
		baseDelay:   200 * time.Millisecond,
		sleep:       time.Sleep,
	}
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	var lastErr error
	delay := u.baseDelay

	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		url, err := u.put(ctx, name, contentType, data)
		if err == nil {
			return url, nil
		}
		lastErr = err

		if attempt < u.maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			u.sleep(delay)
			delay *= 2
		}
	}
	return "", fmt.Errorf("uploading %s after %d attempts: %w", name, u.maxAttempts, lastErr)
}

func (u *HTTPUploader) put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		u.baseURL+"/objects/"+name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload status %d", resp.StatusCode)
	}

	// The store replies with the public URL; fall back to the object path
	// if the body is empty or unparseable.
	var reply struct {
		URL string `json:"url"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, &reply); err == nil && reply.URL != "" {
		return reply.URL, nil
	}
	return u.baseURL + "/objects/" + name, nil
}
