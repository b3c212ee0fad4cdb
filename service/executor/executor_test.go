package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/model"
)

type stub struct{ name string }

func (s *stub) Execute(context.Context, *model.Task, model.ProposedAction) (*model.ExecutionResult, error) {
	return &model.ExecutionResult{Success: true, Message: s.name}, nil
}

func TestRegistryResolves(t *testing.T) {
	registry := NewRegistry()
	registry.Register("payment", &stub{name: "pay"})
	registry.Register("communication", &stub{name: "mail"})

	exec, err := registry.Resolve("payment")
	require.NoError(t, err)
	result, err := exec.Execute(context.Background(), nil, model.ProposedAction{})
	require.NoError(t, err)
	assert.Equal(t, "pay", result.Message)
}

func TestRegistryUnknownCategory(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Resolve("payment")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRegistryFallback(t *testing.T) {
	registry := NewRegistry()
	registry.SetFallback(&stub{name: "fallback"})

	exec, err := registry.Resolve("system-change")
	require.NoError(t, err)
	result, err := exec.Execute(context.Background(), nil, model.ProposedAction{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Message)
}

func TestRegisterReplacesBinding(t *testing.T) {
	registry := NewRegistry()
	registry.Register("payment", &stub{name: "old"})
	registry.Register("payment", &stub{name: "new"})

	exec, err := registry.Resolve("payment")
	require.NoError(t, err)
	result, _ := exec.Execute(context.Background(), nil, model.ProposedAction{})
	assert.Equal(t, "new", result.Message)
}
