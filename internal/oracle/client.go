// Package oracle tracks whether an out-of-band settlement has completed.
// Client polls and resets the flag over HTTP; Server is a development
// implementation of the same contract.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"zen7-console/internal/middleware"
	"zen7-console/internal/model"
)

// statusResponse is the body of every oracle endpoint.
type statusResponse struct {
	Status bool `json:"status"`
}

// Client talks to a completion oracle.
// Safe for concurrent use; holds no per-conversation state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an oracle client for baseURL (e.g. "http://localhost:8088").
// A nil httpClient uses http.DefaultClient; a nil logger uses slog.Default().
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CheckFinished reports whether the settlement backend has signalled completion.
func (c *Client) CheckFinished(ctx context.Context) (bool, error) {
	return c.do(ctx, http.MethodGet, "/status", "check status", nil)
}

// Reset clears the completion flag and returns the status the oracle reports afterwards.
func (c *Client) Reset(ctx context.Context) (bool, error) {
	return c.do(ctx, http.MethodPut, "/reset", "reset", nil)
}

// Notify marks the settlement as finished. The payload is opaque to the oracle.
func (c *Client) Notify(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.NewOracleError("notify", fmt.Errorf("encoding payload: %w", err))
	}
	_, err = c.do(ctx, http.MethodPost, "/notify", "notify", body)
	return err
}

// do performs one oracle round trip and decodes {"status": bool}.
func (c *Client) do(ctx context.Context, method, path, op string, body []byte) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, model.NewOracleError(op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.RequestIDHeader, model.NewID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, model.NewOracleError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, model.NewOracleError(op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, model.NewOracleError(op, fmt.Errorf("decoding response: %w", err))
	}

	c.logger.DebugContext(ctx, "oracle round trip",
		slog.String("op", op),
		slog.Bool("status", status.Status),
	)
	return status.Status, nil
}
