package mcptool

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"zen7-console/internal/model"
)

// Reply is what a SettleFunc answers for one tool call.
// A non-nil Task is returned as structured content; otherwise Text is sent as-is.
type Reply struct {
	Text string
	Task *model.TaskResult
}

// SettleFunc decides the outcome of one settlement tool invocation.
type SettleFunc func(ctx context.Context, args ToolArguments) (Reply, error)

// SettlementServer exposes a SettleFunc as the settlement tool over MCP.
// Used for local runs against a scripted backend.
type SettlementServer struct {
	toolName string
	settle   SettleFunc
	logger   *slog.Logger
}

// NewSettlementServer creates a server answering toolName ("" = DefaultToolName) with settle.
func NewSettlementServer(toolName string, settle SettleFunc, logger *slog.Logger) *SettlementServer {
	if toolName == "" {
		toolName = DefaultToolName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementServer{toolName: toolName, settle: settle, logger: logger}
}

// NewMCPServer creates an MCP server with the settlement tool registered.
func (s *SettlementServer) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "zen7-settlement",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Settlement backend. Call the payment tool once per negotiation turn.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        s.toolName,
		Description: "Proceed with a payment and return settlement detail for the current turn.",
	}, s.handleSettle)

	return server
}

// SSEHandler returns an HTTP handler for the SSE transport.
// Mount this at /sse on your mux.
func (s *SettlementServer) SSEHandler() http.Handler {
	server := s.NewMCPServer()
	return mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

func (s *SettlementServer) handleSettle(
	ctx context.Context,
	req *mcp.CallToolRequest,
	args ToolArguments,
) (*mcp.CallToolResult, any, error) {
	s.logger.InfoContext(ctx, "settlement tool called",
		slog.String("user_id", args.UserID),
		slog.Bool("payment_info", args.PaymentInfo != nil),
		slog.String("context_id", args.ContextID),
	)

	reply, err := s.settle(ctx, args)
	if err != nil {
		// Regular errors become IsError results
		return nil, nil, err
	}

	if reply.Task != nil {
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: reply.Task.StatusMessage}},
			StructuredContent: reply.Task,
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: reply.Text}},
	}, nil, nil
}
