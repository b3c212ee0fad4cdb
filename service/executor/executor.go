// Package executor defines the contract for carrying out an approved action
// and the registry that routes each action category to its executor.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taskvault/taskvault/model"
)

// ErrUnknownCategory is returned when no executor is registered for the
// action's category.
var ErrUnknownCategory = errors.New("executor: no executor for category")

// Executor carries out a single approved action. A returned error means the
// attempt failed and may be retried; the result records the final outcome.
type Executor interface {
	Execute(ctx context.Context, task *model.Task, action model.ProposedAction) (*model.ExecutionResult, error)
}

// Registry routes action categories to executors. Registration happens at
// wiring time; Resolve is called concurrently by orchestrator workers.
type Registry struct {
	mux       sync.RWMutex
	executors map[string]Executor
	fallback  Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register binds a category to an executor, replacing any previous binding.
func (r *Registry) Register(category string, exec Executor) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.executors[category] = exec
}

// SetFallback sets the executor used for categories with no explicit binding.
func (r *Registry) SetFallback(exec Executor) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.fallback = exec
}

// Resolve returns the executor for the category.
func (r *Registry) Resolve(category string) (Executor, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	if exec, ok := r.executors[category]; ok {
		return exec, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
}
