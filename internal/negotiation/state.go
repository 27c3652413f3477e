// Package negotiation drives the multi-turn settlement conversation: it keeps
// per-conversation correlation state, composes each turn, dispatches it through
// a settlement.Client, and reconciles progress against the completion oracle.
package negotiation

import "zen7-console/internal/model"

// State is the negotiation state of one conversation.
// Each conversation owns its State; it is not safe for concurrent use and
// must not be shared. Only the Negotiator mutates it during Proceed.
type State struct {
	ContextID string      // Assigned by the remote; "" until the first open result
	TaskID    string      // Assigned by the remote; "" until the first open result
	Turn      int         // 0 before the first attempt, then 1, 2, ...
	Item      *model.Item // Must be set before any payment turn
	Completed bool        // Payment reached a terminal state
}

// NewState returns an empty conversation state.
func NewState() *State {
	return &State{}
}

// Select stores item and starts a fresh negotiation for it.
func (s *State) Select(item model.Item) {
	s.Item = &item
	s.Completed = false
	s.clearProgress()
}

// clearProgress forgets correlation ids and the turn counter.
func (s *State) clearProgress() {
	s.ContextID = ""
	s.TaskID = ""
	s.Turn = 0
}

// capture records correlation ids from an open result. Ids the result
// leaves empty keep their previous value.
func (s *State) capture(result *model.TaskResult) {
	if result.ContextID != "" {
		s.ContextID = result.ContextID
	}
	if result.TaskID != "" {
		s.TaskID = result.TaskID
	}
}

// finish marks the payment terminal and clears progress.
func (s *State) finish() {
	s.Completed = true
	s.clearProgress()
}
