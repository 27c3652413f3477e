package mcptool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zen7-console/internal/model"
)

// ErrNoPaymentInProgress is returned by the scripted backend for a follow-up
// turn that does not belong to a payment it started.
var ErrNoPaymentInProgress = errors.New("no payment in progress: send payment_info first")

// ScriptedSettlement returns a SettleFunc that asks for confirmation when a
// payment request arrives and completes it on an affirmative reply.
// onPaid (optional) runs once for every completed payment.
func ScriptedSettlement(onPaid func(ctx context.Context, args ToolArguments)) SettleFunc {
	return func(ctx context.Context, args ToolArguments) (Reply, error) {
		if info := args.PaymentInfo; info != nil {
			id := model.NewID()
			return Reply{Task: &model.TaskResult{
				State:     model.TaskStateInputRequired,
				ContextID: "ctx-" + id,
				TaskID:    "task-" + id,
				StatusMessage: fmt.Sprintf("Pay %s to %s for order %s before %s? (yes/no)",
					model.FormatMinorUnits(info.SpendAmount, info.Currency),
					firstNonEmpty(info.Payee, "the merchant"), info.OrderNumber, info.ExpiresOn),
			}}, nil
		}

		if args.ContextID == "" {
			return Reply{}, ErrNoPaymentInProgress
		}

		task := &model.TaskResult{ContextID: args.ContextID, TaskID: args.TaskID}
		switch strings.ToLower(strings.TrimSpace(args.Message)) {
		case "yes", "y", "ok", "confirm":
			if onPaid != nil {
				onPaid(ctx, args)
			}
			task.State = model.TaskStateCompleted
			task.Artifacts = []model.Artifact{{
				Name:  "receipt",
				Parts: []model.Part{model.NewTextPart("paid")},
			}}
		case "no", "n", "cancel":
			// Decoded as unknown on the client side
			task.State = model.TaskState("canceled")
			task.StatusMessage = "payment canceled"
		default:
			task.State = model.TaskStateInputRequired
			task.StatusMessage = "Please reply yes to confirm or no to cancel."
		}
		return Reply{Task: task}, nil
	}
}
