// Package classify calls the remote skin classifier with JPEG snapshots of
// the current frame.
package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ouva/dermascan/internal/roi"
)

// Config holds the configuration for the classifier client.
type Config struct {
	BaseURL     string
	Path        string
	Timeout     time.Duration
	JPEGQuality int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8000",
		Path:        "/classify",
		Timeout:     15 * time.Second,
		JPEGQuality: 85,
	}
}

// Client is the HTTP client for the classification service.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new classifier client.
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// ClassifyFrame encodes the frame as JPEG and submits it. One call, no
// retries: auto-trigger attempts are independent and the next one may
// succeed on its own.
func (c *Client) ClassifyFrame(ctx context.Context, px roi.Pixels) (*Result, error) {
	if px.Empty() {
		return nil, ErrEmptyFrame
	}
	jpeg, err := EncodeJPEG(px, c.config.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return c.Classify(ctx, base64.StdEncoding.EncodeToString(jpeg))
}

// Classify submits a base64 JPEG and decodes the result. Non-2xx statuses,
// non-JSON bodies and ok:false responses all come back as errors with a
// human-readable message.
func (c *Client) Classify(ctx context.Context, imageB64 string) (*Result, error) {
	body, err := json.Marshal(Request{ImageB64: imageB64})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.config.BaseURL + c.config.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, truncate(respBody, maxDiagnosticBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, truncate(respBody, maxDiagnosticBody))
	}

	if !result.OK {
		msg := result.Error
		if msg == "" {
			msg = "no reason given"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	return &result, nil
}

// maxDiagnosticBody caps how much of a raw response body ends up in error
// messages.
const maxDiagnosticBody = 200

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
