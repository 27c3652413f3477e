// Package model defines data structures for the settlement negotiation protocol.
package model

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// === Task State ===

// TaskState is the remote task state reported after each turn.
// Only the four states the negotiation reacts to are modeled; anything
// else the remote reports (failed, canceled, rejected) maps to unknown.
type TaskState string

const (
	TaskStateCompleted     TaskState = "completed"
	TaskStateInputRequired TaskState = "input_required"
	TaskStateWorking       TaskState = "working"
	TaskStateUnknown       TaskState = "unknown"
)

// ParseTaskState normalizes a wire state. Accepts both the hyphenated
// A2A form ("input-required") and the underscored form.
func ParseTaskState(s string) TaskState {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "completed":
		return TaskStateCompleted
	case "input_required":
		return TaskStateInputRequired
	case "working", "submitted":
		return TaskStateWorking
	default:
		return TaskStateUnknown
	}
}

// UnmarshalJSON normalizes the state on decode.
func (s *TaskState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseTaskState(raw)
	return nil
}

// IsTerminal reports whether the state ends the payment on the remote side.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted
}

// IsOpen reports whether the remote is waiting for another turn.
func (s TaskState) IsOpen() bool {
	return s == TaskStateInputRequired || s == TaskStateWorking
}

// === Message ===

// Role identifies the author of a message.
type Role string

const RoleUser Role = "user"

// PartKind discriminates message part content.
type PartKind string

const PartKindText PartKind = "text"

// Part is one piece of message content. Only text parts are produced;
// non-text parts received from the remote are skipped when extracting text.
type Part struct {
	Kind PartKind `json:"kind"`
	Text string   `json:"text,omitempty"`
}

// NewTextPart creates a text Part.
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// Message is one outbound turn.
// ContextID and TaskID are omitted on the wire until the remote assigns them.
type Message struct {
	Role      Role     `json:"role"`
	Parts     []Part   `json:"parts"`
	MessageID string   `json:"message_id"`
	ContextID string   `json:"context_id,omitempty"`
	TaskID    string   `json:"task_id,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

// Text returns the first text part, or "" if none.
func (m *Message) Text() string {
	return FirstText(m.Parts)
}

// Metadata travels with every message.
type Metadata struct {
	UserID      string       `json:"user_id"`
	SignInfo    SignInfo     `json:"sign_info"`
	PaymentInfo *PaymentInfo `json:"payment_info,omitempty"`
	Timezone    string       `json:"timezone"`
}

// SignInfo is the signer's authorization for the settlement backend.
type SignInfo struct {
	Signature string `json:"signature" yaml:"signature"`
	R         string `json:"r" yaml:"r"`
	S         string `json:"s" yaml:"s"`
	V         string `json:"v" yaml:"v"`
}

// IsZero reports whether no signing material is configured.
func (s SignInfo) IsZero() bool {
	return s == SignInfo{}
}

// PaymentInfo is the structured payment request sent on the first turn.
// Amounts are in minor units.
type PaymentInfo struct {
	OrderNumber  string `json:"order_number"`
	SpendAmount  int64  `json:"spend_amount"`
	BudgetAmount int64  `json:"budget_amount"`
	Currency     string `json:"currency"`
	Chain        string `json:"chain"`
	ExpiresOn    string `json:"expires_on"` // YYYY-MM-DD
	Payee        string `json:"payee,omitempty"`
	Timezone     string `json:"timezone"`
}

// NewID returns a fresh hex identifier for messages and requests.
func NewID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

// === Task Result ===

// Artifact is a remote-produced result attached to a completed task.
type Artifact struct {
	Name  string `json:"name,omitempty"`
	Parts []Part `json:"parts"`
}

// TaskResult is the transport-neutral outcome of one turn.
type TaskResult struct {
	State         TaskState  `json:"state"`
	ContextID     string     `json:"context_id,omitempty"`
	TaskID        string     `json:"task_id,omitempty"`
	StatusMessage string     `json:"status_message,omitempty"`
	Artifacts     []Artifact `json:"artifacts,omitempty"`
}

// ArtifactText returns the first text part found across artifacts.
func (r *TaskResult) ArtifactText() string {
	for _, a := range r.Artifacts {
		if text := FirstText(a.Parts); text != "" {
			return text
		}
	}
	return ""
}

// FirstText returns the first non-empty text part.
func FirstText(parts []Part) string {
	for _, p := range parts {
		if p.Kind == PartKindText && p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// === Agent Card ===

// AgentCard is the capability descriptor of a Direct endpoint.
// Fetched once per client and never mutated afterwards.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	URL                string            `json:"url"`
	Version            string            `json:"version,omitempty"`
	ProtocolVersion    string            `json:"protocolVersion,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
}

// AgentCapabilities declares optional protocol features.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming,omitempty"`
	PushNotifications bool `json:"pushNotifications,omitempty"`
}

// AgentSkill describes one operation the remote advertises.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}
