// Package mcptool implements the session settlement binding: each turn opens
// an MCP session over SSE, invokes the payment tool once, and closes the session.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"zen7-console/internal/model"
	"zen7-console/internal/settlement"
)

// TransportName identifies this binding in errors and logs.
const TransportName = "mcp"

// DefaultToolName is the settlement tool exposed by the remote server.
const DefaultToolName = "proceed_payment_and_settlement_detail_info"

// DefaultTimeout bounds one turn including session setup.
const DefaultTimeout = 100 * time.Second

var _ settlement.Client = (*Client)(nil)

// ToolArguments is the argument object of the settlement tool.
// Correlation ids are sent once the remote has assigned them.
type ToolArguments struct {
	Message            string             `json:"message" jsonschema:"turn text"`
	UserID             string             `json:"user_id" jsonschema:"payer id"`
	SignInfo           model.SignInfo     `json:"sign_info" jsonschema:"signer authorization"`
	PaymentInfo        *model.PaymentInfo `json:"payment_info,omitempty" jsonschema:"structured payment request, first turn only"`
	Timezone           string             `json:"timezone" jsonschema:"IANA timezone of the payer"`
	OwnerWalletAddress string             `json:"owner_wallet_address,omitempty" jsonschema:"payer wallet"`
	ContextID          string             `json:"context_id,omitempty" jsonschema:"conversation id assigned by the remote"`
	TaskID             string             `json:"task_id,omitempty" jsonschema:"task id assigned by the remote"`
}

// ToolResult is the usable part of a tool response.
type ToolResult struct {
	Text       string // First text content item
	Structured any    // Structured content, if the tool returned any
	IsError    bool
}

// Config holds settings for the session client.
type Config struct {
	Host               string
	Port               int
	ToolName           string        // "" = DefaultToolName
	Timeout            time.Duration // 0 = DefaultTimeout
	OwnerWalletAddress string
	HTTPClient         *http.Client
	Logger             *slog.Logger
}

// Client sends negotiation turns as MCP tool calls.
type Client struct {
	mcp    *mcp.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a session client.
func New(cfg Config) *Client {
	if cfg.ToolName == "" {
		cfg.ToolName = DefaultToolName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		mcp: mcp.NewClient(&mcp.Implementation{
			Name:    "zen7-console",
			Version: "v1.0.0",
		}, nil),
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Name implements settlement.Client.
func (c *Client) Name() string { return TransportName }

// Endpoint returns the SSE URL for host and port.
func Endpoint(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/sse"
}

// OpenSession connects to the SSE endpoint at host:port.
// The caller owns the session and must Close it.
func (c *Client) OpenSession(ctx context.Context, host string, port int) (*mcp.ClientSession, error) {
	transport := &mcp.SSEClientTransport{
		Endpoint:   Endpoint(host, port),
		HTTPClient: c.cfg.HTTPClient,
	}
	session, err := c.mcp.Connect(ctx, transport, nil)
	if err != nil {
		return nil, wrapErr(ctx, "open session", err)
	}
	return session, nil
}

// InvokeTool calls tool name on session and extracts the first text item.
func (c *Client) InvokeTool(ctx context.Context, session *mcp.ClientSession, name string, args *ToolArguments) (*ToolResult, error) {
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, wrapErr(ctx, "call tool", err)
	}

	result := &ToolResult{
		Structured: res.StructuredContent,
		IsError:    res.IsError,
	}
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok && text.Text != "" {
			result.Text = text.Text
			break
		}
	}
	return result, nil
}

// SendTurn implements settlement.Client. The session lives for this call only.
func (c *Client) SendTurn(ctx context.Context, msg *model.Message) (*model.TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	session, err := c.OpenSession(ctx, c.cfg.Host, c.cfg.Port)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	args := &ToolArguments{
		Message:            msg.Text(),
		UserID:             msg.Metadata.UserID,
		SignInfo:           msg.Metadata.SignInfo,
		PaymentInfo:        msg.Metadata.PaymentInfo,
		Timezone:           msg.Metadata.Timezone,
		OwnerWalletAddress: c.cfg.OwnerWalletAddress,
		ContextID:          msg.ContextID,
		TaskID:             msg.TaskID,
	}

	c.logger.InfoContext(ctx, "invoking settlement tool",
		slog.String("tool", c.cfg.ToolName),
		slog.String("session", session.ID()),
		slog.String("message_id", msg.MessageID),
		slog.Bool("payment_info", args.PaymentInfo != nil),
	)

	res, err := c.InvokeTool(ctx, session, c.cfg.ToolName, args)
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, model.NewTransportError(TransportName, "call tool", fmt.Errorf("tool error: %s", res.Text))
	}

	result, err := toTaskResult(res)
	if err != nil {
		return nil, model.NewTransportError(TransportName, "decode result", err)
	}

	c.logger.InfoContext(ctx, "tool result",
		slog.String("state", string(result.State)),
		slog.String("context_id", result.ContextID),
		slog.String("task_id", result.TaskID),
	)
	return result, nil
}

// toolPayload is the task-shaped JSON a settlement tool may return.
type toolPayload struct {
	State         model.TaskState  `json:"state"`
	ContextID     string           `json:"context_id"`
	TaskID        string           `json:"task_id"`
	StatusMessage string           `json:"status_message"`
	Message       string           `json:"message"`
	Artifacts     []model.Artifact `json:"artifacts"`
}

// toTaskResult maps a tool response onto a TaskResult. Task-shaped JSON
// (structured content, or a text item holding a JSON object with "state")
// keeps its state and ids; plain text means the remote is still working.
func toTaskResult(res *ToolResult) (*model.TaskResult, error) {
	var raw []byte
	switch {
	case res.Structured != nil:
		data, err := json.Marshal(res.Structured)
		if err != nil {
			return nil, fmt.Errorf("encoding structured content: %w", err)
		}
		raw = data
	case looksLikeTask(res.Text):
		raw = []byte(res.Text)
	default:
		return &model.TaskResult{
			State:         model.TaskStateWorking,
			StatusMessage: res.Text,
		}, nil
	}

	var p toolPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.State == "" {
		if res.Structured != nil {
			// Structured content that is not task-shaped: fall back to the text
			return &model.TaskResult{State: model.TaskStateWorking, StatusMessage: res.Text}, nil
		}
		p.State = model.TaskStateUnknown
	}

	return &model.TaskResult{
		State:         p.State,
		ContextID:     p.ContextID,
		TaskID:        p.TaskID,
		StatusMessage: firstNonEmpty(p.StatusMessage, p.Message),
		Artifacts:     p.Artifacts,
	}, nil
}

// looksLikeTask reports whether text is a JSON object carrying a state field.
func looksLikeTask(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return false
	}
	var probe struct {
		State *string `json:"state"`
	}
	return json.Unmarshal([]byte(text), &probe) == nil && probe.State != nil
}

// wrapErr classifies err as a timeout or a plain transport failure.
func wrapErr(ctx context.Context, op string, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewTimeoutError(TransportName, op, err)
	}
	return model.NewTransportError(TransportName, op, err)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
