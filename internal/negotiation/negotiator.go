package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zen7-console/internal/model"
	"zen7-console/internal/settlement"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// OraclePolicy decides how an unreachable completion oracle is treated.
type OraclePolicy string

const (
	// FailOpen treats an unreachable oracle as "not finished" and keeps negotiating.
	FailOpen OraclePolicy = "fail-open"
	// FailClosed refuses to send a turn while the oracle is unreachable.
	FailClosed OraclePolicy = "fail-closed"
)

// StatusOracle reports out-of-band settlement completion.
// Implemented by oracle.Client.
type StatusOracle interface {
	CheckFinished(ctx context.Context) (bool, error)
	Reset(ctx context.Context) (bool, error)
}

// Result is the outcome of one Proceed call. Errors never escape Proceed;
// they are reported here with Status "failed".
type Result struct {
	Status  string          `json:"status"`
	State   model.TaskState `json:"state,omitempty"`
	Message string          `json:"message"`
}

// Options configures a Negotiator.
type Options struct {
	Policy OraclePolicy // "" = FailOpen
	Logger *slog.Logger
}

// Negotiator runs turns for any number of conversations.
// It holds only immutable collaborators and is safe to share; all
// per-conversation data lives in the State passed to each call.
type Negotiator struct {
	transport settlement.Client
	oracle    StatusOracle
	composer  *Composer
	policy    OraclePolicy
	logger    *slog.Logger
}

// NewNegotiator creates a negotiator dispatching through transport.
func NewNegotiator(transport settlement.Client, oracle StatusOracle, composer *Composer, opts Options) *Negotiator {
	if opts.Policy == "" {
		opts.Policy = FailOpen
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Negotiator{
		transport: transport,
		oracle:    oracle,
		composer:  composer,
		policy:    opts.Policy,
		logger:    opts.Logger,
	}
}

// SelectItem resets the completion oracle, refreshes the transport's
// capability data when it pins any, and starts a fresh negotiation for item.
// Oracle and refresh failures are logged and do not block the selection.
func (n *Negotiator) SelectItem(ctx context.Context, state *State, item model.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	if status, err := n.oracle.Reset(ctx); err != nil {
		n.logger.WarnContext(ctx, "oracle reset failed", slog.String("error", err.Error()))
	} else {
		n.logger.InfoContext(ctx, "oracle reset", slog.Bool("status", status))
	}

	if r, ok := n.transport.(settlement.Refresher); ok {
		if err := r.Refresh(ctx); err != nil {
			n.logger.WarnContext(ctx, "transport refresh failed",
				slog.String("transport", n.transport.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	state.Select(item)
	n.logger.InfoContext(ctx, "item selected",
		slog.Int("item_id", item.ID),
		slog.String("item", item.Name),
	)
	return nil
}

// Proceed runs one negotiation turn for state.
//
// The turn counter is advanced before the oracle is consulted. When the
// oracle reports completion no message is sent and progress is cleared.
// A local error, transport failure, or unrecognized task state restores the
// turn counter so the caller can retry the identical turn.
func (n *Negotiator) Proceed(ctx context.Context, state *State, text string) Result {
	if state.Item == nil {
		err := model.NewNoItemError()
		n.logger.WarnContext(ctx, "proceed without item", slog.String("error", err.Error()))
		return failed(err)
	}

	prevTurn := state.Turn
	state.Turn = prevTurn + 1

	logger := n.logger.With(
		slog.String("transport", n.transport.Name()),
		slog.Int("turn", state.Turn),
		slog.Int("item_id", state.Item.ID),
	)

	finished, err := n.oracle.CheckFinished(ctx)
	if err != nil {
		if n.policy == FailClosed {
			logger.ErrorContext(ctx, "oracle unavailable, refusing turn", slog.String("error", err.Error()))
			state.Turn = prevTurn
			return failed(err)
		}
		logger.WarnContext(ctx, "oracle unavailable, continuing", slog.String("error", err.Error()))
		finished = false
	}

	if finished {
		item := *state.Item
		state.finish()
		logger.InfoContext(ctx, "settlement finished per oracle")
		return Result{
			Status:  StatusSuccess,
			State:   model.TaskStateCompleted,
			Message: fmt.Sprintf("Proceed payment for the product: %s", item),
		}
	}

	msg, err := n.composer.Compose(state, text)
	if err != nil {
		state.Turn = prevTurn
		logger.WarnContext(ctx, "compose failed", slog.String("error", err.Error()))
		return failed(err)
	}

	logger.InfoContext(ctx, "dispatching turn",
		slog.String("message_id", msg.MessageID),
		slog.String("context_id", msg.ContextID),
		slog.String("task_id", msg.TaskID),
	)

	result, err := n.transport.SendTurn(ctx, msg)
	if err != nil {
		state.Turn = prevTurn
		logger.ErrorContext(ctx, "turn failed", slog.String("error", err.Error()))
		return failed(err)
	}

	switch {
	case result.State.IsTerminal():
		state.finish()
		reply := result.ArtifactText()
		if reply == "" {
			reply = result.StatusMessage
		}
		logger.InfoContext(ctx, "payment completed")
		return Result{Status: StatusSuccess, State: model.TaskStateCompleted, Message: reply}

	case result.State.IsOpen():
		state.capture(result)
		logger.InfoContext(ctx, "awaiting next turn",
			slog.String("state", string(result.State)),
			slog.String("context_id", state.ContextID),
			slog.String("task_id", state.TaskID),
		)
		return Result{Status: StatusSuccess, State: result.State, Message: result.StatusMessage}

	default:
		state.Turn = prevTurn
		logger.WarnContext(ctx, "unrecognized task state", slog.String("state", string(result.State)))
		detail := "unrecognized task state from settlement service"
		if result.StatusMessage != "" {
			detail += ": " + result.StatusMessage
		}
		return Result{Status: StatusFailed, State: model.TaskStateUnknown, Message: detail}
	}
}

// failed converts err into a failed Result. Transport failures report an unknown remote state.
func failed(err error) Result {
	var state model.TaskState
	var tErr *model.TransportError
	if errors.As(err, &tErr) {
		state = model.TaskStateUnknown
	}
	return Result{Status: StatusFailed, State: state, Message: err.Error()}
}
