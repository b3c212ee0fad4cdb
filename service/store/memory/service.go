// Package memory provides an in-memory task store with the same transition
// semantics as the filesystem implementation. Intended for tests and for
// embedding the orchestrator without a vault on disk.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/store"
)

// Service implements store.Store backed by a map.
type Service struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
}

var _ store.Store = (*Service)(nil)

// New creates an empty in-memory task store.
func New() *Service {
	return &Service{tasks: make(map[string]*model.Task)}
}

func (s *Service) Create(_ context.Context, task *model.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("cannot create task without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return store.ErrDuplicate
	}
	s.tasks[task.ID] = clone(task)
	return nil
}

func (s *Service) Get(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(task), nil
}

func (s *Service) ListByBucket(_ context.Context, bucket model.Bucket) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Task
	for _, task := range s.tasks {
		if task.Bucket == bucket {
			out = append(out, clone(task))
		}
	}
	return out, nil
}

func (s *Service) Transition(_ context.Context, id string, from, to model.Bucket, mutation store.Mutation) (*model.Task, error) {
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if task.Bucket != from {
		return nil, fmt.Errorf("%w: task %s is in %s, expected %s", store.ErrConflict, id, task.Bucket, from)
	}
	updated := clone(task)
	if mutation != nil {
		if err := mutation(updated); err != nil {
			return nil, err
		}
	}
	updated.RecordTransition(to, clock.Now())
	s.tasks[id] = updated
	return clone(updated), nil
}

func (s *Service) Append(_ context.Context, id string, field string, value interface{}) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated := clone(task)
	if err := store.ApplyAppend(updated, field, value); err != nil {
		return nil, err
	}
	s.tasks[id] = updated
	return clone(updated), nil
}

func (s *Service) Update(_ context.Context, id string, mutation store.Mutation) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated := clone(task)
	if mutation != nil {
		if err := mutation(updated); err != nil {
			return nil, err
		}
	}
	s.tasks[id] = updated
	return clone(updated), nil
}

// Ping always succeeds for the in-memory store.
func (s *Service) Ping(context.Context) error { return nil }

// clone round-trips through the document codec so callers never share
// mutable state with the store.
func clone(task *model.Task) *model.Task {
	data, err := model.MarshalDocument(task)
	if err != nil {
		// Marshal of an in-memory task only fails on a nil receiver, which
		// Create and Transition already reject.
		return task
	}
	copied, err := model.UnmarshalDocument(data)
	if err != nil {
		return task
	}
	return copied
}
