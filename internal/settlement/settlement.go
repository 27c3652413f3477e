// Package settlement defines the interface for reaching the remote settlement service.
// Implementations bind the single negotiation protocol to a concrete transport.
package settlement

import (
	"context"

	"zen7-console/internal/model"
)

// Client sends one negotiation turn and reports the remote task outcome.
// Each binding (direct JSON-RPC, session tool call) provides its own implementation.
//
// SendTurn performs exactly one blocking round trip bounded by a deadline.
// Network failures, non-success responses, malformed payloads and timeouts
// are returned as *model.TransportError; a non-nil result always carries a
// normalized model.TaskState.
type Client interface {
	// Name identifies the binding in logs, e.g. "a2a" or "mcp".
	Name() string

	// SendTurn dispatches msg and returns the remote task state.
	SendTurn(ctx context.Context, msg *model.Message) (*model.TaskResult, error)
}

// Refresher is implemented by bindings that pin remote capability data.
// The negotiator calls Refresh when a new conversation starts, so each
// conversation works against a current capability descriptor.
type Refresher interface {
	Refresh(ctx context.Context) error
}
