// Package a2a implements the direct settlement binding: agent card discovery
// followed by one JSON-RPC message/send request per turn.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"zen7-console/internal/middleware"
	"zen7-console/internal/model"
	"zen7-console/internal/settlement"
)

// TransportName identifies this binding in errors and logs.
const TransportName = "a2a"

// DefaultTimeout bounds one turn end to end.
const DefaultTimeout = 100 * time.Second

// maxResponseSize limits JSON-RPC response bodies to 4MB.
const maxResponseSize = 4 << 20

var (
	_ settlement.Client    = (*Client)(nil)
	_ settlement.Refresher = (*Client)(nil)
)

// Config holds settings for the direct client.
type Config struct {
	BaseURL    string        // e.g., "http://localhost:10000"
	Timeout    time.Duration // Per-turn deadline (0 = DefaultTimeout)
	HTTPClient *http.Client  // nil = http.DefaultClient
	Resolver   *CardResolver // Shared card cache; nil = private resolver on HTTPClient
	Logger     *slog.Logger
}

// Client sends negotiation turns to a settlement agent over JSON-RPC.
// The agent card is resolved once per client and reused for every turn.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	resolver   *CardResolver
	logger     *slog.Logger

	mu   sync.Mutex
	card *model.AgentCard
}

// New creates a direct client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewCardResolver(cfg.HTTPClient, DefaultCardTTL)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		resolver:   cfg.Resolver,
		logger:     cfg.Logger,
	}
}

// Name implements settlement.Client.
func (c *Client) Name() string { return TransportName }

// ResolveCapabilities returns the pinned agent card, resolving it on first
// use. A failed resolution is retried on the next call.
func (c *Client) ResolveCapabilities(ctx context.Context) (*model.AgentCard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.card != nil {
		return c.card, nil
	}
	return c.resolveLocked(ctx)
}

// Refresh implements settlement.Refresher. It re-pins the card through the
// resolver, whose cache policy decides whether the card is fetched again.
// On failure the previously pinned card is kept.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.resolveLocked(ctx)
	return err
}

func (c *Client) resolveLocked(ctx context.Context) (*model.AgentCard, error) {
	card, err := c.resolver.Resolve(ctx, c.baseURL)
	if err != nil {
		return nil, wrapErr("resolve card", err)
	}

	c.logger.InfoContext(ctx, "agent card resolved",
		slog.String("name", card.Name),
		slog.String("url", card.URL),
		slog.String("protocol_version", card.ProtocolVersion),
	)
	c.card = card
	return card, nil
}

// SendTurn implements settlement.Client. The deadline covers card
// resolution and the message/send round trip.
func (c *Client) SendTurn(ctx context.Context, msg *model.Message) (*model.TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	card, err := c.ResolveCapabilities(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.endpoint(card)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      model.NewID(),
		Method:  MethodSendMessage,
		Params:  sendParams{Message: msg},
	})
	if err != nil {
		return nil, model.NewTransportError(TransportName, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, model.NewTransportError(TransportName, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.RequestIDHeader, msg.MessageID)

	c.logger.InfoContext(ctx, "sending turn",
		slog.String("endpoint", endpoint),
		slog.String("message_id", msg.MessageID),
		slog.String("context_id", msg.ContextID),
		slog.String("task_id", msg.TaskID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr("send message", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, wrapErr("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewStatusError(TransportName, "send message", resp.StatusCode, truncate(string(respBody), 256))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, model.NewTransportError(TransportName, "decode response", err)
	}
	if rpcResp.Error != nil {
		return nil, model.NewTransportError(TransportName, "send message", rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, model.NewTransportError(TransportName, "decode response", errors.New("missing result"))
	}

	var payload taskPayload
	if err := json.Unmarshal(rpcResp.Result, &payload); err != nil {
		return nil, model.NewTransportError(TransportName, "decode result", err)
	}

	result := payload.toTaskResult()
	c.logger.InfoContext(ctx, "turn result",
		slog.String("state", string(result.State)),
		slog.String("context_id", result.ContextID),
		slog.String("task_id", result.TaskID),
	)
	return result, nil
}

// endpoint returns the card's service URL, resolved against the base URL
// when the card leaves it relative.
func (c *Client) endpoint(card *model.AgentCard) string {
	switch {
	case strings.HasPrefix(card.URL, "http://"), strings.HasPrefix(card.URL, "https://"):
		return card.URL
	case card.URL == "" || card.URL == "/":
		return c.baseURL + "/"
	default:
		return c.baseURL + "/" + strings.TrimPrefix(card.URL, "/")
	}
}

// wrapErr classifies err as a timeout or a plain transport failure.
func wrapErr(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewTimeoutError(TransportName, op, err)
	}
	return model.NewTransportError(TransportName, op, err)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DescribeCard renders the card for terminal output.
func DescribeCard(card *model.AgentCard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", card.Name, card.URL)
	if card.Description != "" {
		fmt.Fprintf(&b, "  %s\n", card.Description)
	}
	if card.ProtocolVersion != "" {
		fmt.Fprintf(&b, "  protocol %s\n", card.ProtocolVersion)
	}
	for _, s := range card.Skills {
		fmt.Fprintf(&b, "  - %s: %s\n", s.ID, s.Name)
	}
	return b.String()
}
