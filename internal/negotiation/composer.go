package negotiation

import (
	"fmt"
	"strconv"
	"time"

	"zen7-console/internal/model"
)

// expiryLayout formats the payment expiry as a calendar date.
const expiryLayout = "2006-01-02"

// Composer builds the outbound message for a turn.
// Turn 1 carries the structured payment request; later turns forward the
// caller's text unchanged.
type Composer struct {
	cfg model.ComposerConfig
	loc *time.Location
	now func() time.Time
}

// NewComposer creates a composer from cfg. Missing location falls back to
// cfg.Timezone, then UTC.
func NewComposer(cfg *model.ComposerConfig) *Composer {
	c := &Composer{cfg: *cfg, now: time.Now}
	c.loc = cfg.Location
	if c.loc == nil {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			loc = time.UTC
		}
		c.loc = loc
	}
	return c
}

// Compose builds the message for state.Turn. text is ignored on turn 1.
func (c *Composer) Compose(state *State, text string) (*model.Message, error) {
	if state.Item == nil {
		return nil, model.NewNoItemError()
	}
	// A task belongs to a context; a task id alone cannot be continued and
	// the conversation has to be restarted with SelectItem.
	if state.TaskID != "" && state.ContextID == "" {
		return nil, model.NewMissingCorrelationError("context_id")
	}

	msg := &model.Message{
		Role:      model.RoleUser,
		MessageID: model.NewID(),
		ContextID: state.ContextID,
		TaskID:    state.TaskID,
		Metadata: model.Metadata{
			UserID:   c.cfg.UserID,
			SignInfo: c.cfg.SignInfo,
			Timezone: c.cfg.Timezone,
		},
	}

	if state.Turn <= 1 {
		info := c.PaymentInfo(*state.Item)
		msg.Metadata.PaymentInfo = info
		text = fmt.Sprintf("I want to make a payment with order number: %s, spend amount %d",
			info.OrderNumber, state.Item.Price)
	}
	msg.Parts = []model.Part{model.NewTextPart(text)}

	return msg, nil
}

// PaymentInfo derives the structured payment request for item.
func (c *Composer) PaymentInfo(item model.Item) *model.PaymentInfo {
	amount := model.ToMinorUnits(item.Price)
	return &model.PaymentInfo{
		OrderNumber:  c.cfg.OrderPrefix + strconv.Itoa(item.ID),
		SpendAmount:  amount,
		BudgetAmount: amount,
		Currency:     c.cfg.Currency,
		Chain:        c.cfg.Chain,
		ExpiresOn:    c.now().In(c.loc).Add(c.cfg.ExpiryWindow).Format(expiryLayout),
		Payee:        item.Payee,
		Timezone:     c.cfg.Timezone,
	}
}
