package settlement

import (
	"context"
	"errors"
	"sync"

	"zen7-console/internal/model"
)

var (
	_ Client    = (*Mock)(nil)
	_ Refresher = (*Mock)(nil)
)

// Mock implements Client for testing.
// SendTurn can be configured via SendTurnFunc; every dispatched message is recorded.
type Mock struct {
	NameValue    string
	SendTurnFunc func(ctx context.Context, msg *model.Message) (*model.TaskResult, error)
	RefreshFunc  func(ctx context.Context) error

	mu        sync.Mutex
	calls     []*model.Message
	refreshes int
}

// Name returns NameValue or "mock".
func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// SendTurn records msg and calls the configured SendTurnFunc or returns a transport error.
func (m *Mock) SendTurn(ctx context.Context, msg *model.Message) (*model.TaskResult, error) {
	m.mu.Lock()
	cp := *msg
	m.calls = append(m.calls, &cp)
	m.mu.Unlock()

	if m.SendTurnFunc != nil {
		return m.SendTurnFunc(ctx, msg)
	}
	return nil, model.NewTransportError(m.Name(), "send turn", errors.New("mock not configured"))
}

// Calls returns the messages dispatched so far, oldest first.
func (m *Mock) Calls() []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// Refresh counts the call and runs RefreshFunc when set.
func (m *Mock) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}
	return nil
}

// Refreshes returns how many times Refresh was called.
func (m *Mock) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}
