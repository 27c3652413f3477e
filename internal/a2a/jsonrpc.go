package a2a

import (
	"encoding/json"
	"fmt"

	"zen7-console/internal/model"
)

// MethodSendMessage is the JSON-RPC method for one negotiation turn.
const MethodSendMessage = "message/send"

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type sendParams struct {
	Message *model.Message `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// taskPayload is the send-message result. Servers emit either snake_case or
// camelCase correlation ids, so both are accepted.
type taskPayload struct {
	Kind         string           `json:"kind,omitempty"`
	ID           string           `json:"id"`
	TaskID       string           `json:"task_id,omitempty"`
	TaskIDAlt    string           `json:"taskId,omitempty"`
	ContextID    string           `json:"context_id,omitempty"`
	ContextIDAlt string           `json:"contextId,omitempty"`
	Status       *taskStatus      `json:"status,omitempty"`
	Artifacts    []model.Artifact `json:"artifacts,omitempty"`
	Parts        []model.Part     `json:"parts,omitempty"` // present when the result is a bare message
}

type taskStatus struct {
	State   model.TaskState `json:"state"`
	Message *struct {
		Parts []model.Part `json:"parts"`
	} `json:"message,omitempty"`
}

// toTaskResult normalizes the payload. A bare message (no task status) is
// reported as unknown: the negotiation only advances on task states.
func (p *taskPayload) toTaskResult() *model.TaskResult {
	result := &model.TaskResult{
		State:     model.TaskStateUnknown,
		ContextID: firstNonEmpty(p.ContextID, p.ContextIDAlt),
		Artifacts: p.Artifacts,
	}

	if p.Status == nil {
		result.TaskID = firstNonEmpty(p.TaskID, p.TaskIDAlt)
		result.StatusMessage = model.FirstText(p.Parts)
		return result
	}

	result.State = p.Status.State
	if result.State == "" {
		result.State = model.TaskStateUnknown
	}
	result.TaskID = firstNonEmpty(p.ID, p.TaskID, p.TaskIDAlt)
	if p.Status.Message != nil {
		result.StatusMessage = model.FirstText(p.Status.Message.Parts)
	}
	return result
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
