// Package nop provides an executor that records the action as carried out
// without any external side effect. It backs categories whose effect is the
// record itself (filing decisions, acknowledgements) and local runs where no
// external account is wired.
package nop

import (
	"context"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/executor"
)

// Executor acknowledges every action as done.
type Executor struct{}

var _ executor.Executor = (*Executor)(nil)

// New creates a nop executor.
func New() *Executor { return &Executor{} }

// Execute reports success with a note describing what would have happened.
func (e *Executor) Execute(_ context.Context, _ *model.Task, action model.ProposedAction) (*model.ExecutionResult, error) {
	return &model.ExecutionResult{
		Success: true,
		Message: "recorded without external effect: " + action.Description,
		At:      clock.Now(),
	}, nil
}
