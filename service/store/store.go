// Package store defines the durable task store: every task is a document
// that lives in exactly one bucket at any instant, and Transition is the sole
// mutator of bucket membership.
package store

import (
	"context"
	"errors"

	"github.com/taskvault/taskvault/model"
)

// Common, reusable store errors. Sentinel variables let callers detect
// conditions via errors.Is instead of brittle string comparisons.
var (
	// ErrNotFound is returned when the task does not exist in any bucket.
	ErrNotFound = errors.New("store: task not found")

	// ErrDuplicate is returned by Create when a task with the same identity
	// already exists. Ingestion treats it as a silent drop.
	ErrDuplicate = errors.New("store: task already exists")

	// ErrConflict signals a lost transition race: the task is no longer in
	// the expected source bucket. Callers skip the task, they do not fail.
	ErrConflict = errors.New("store: task not in expected bucket")

	// ErrInvalidTransition signals an illegal bucket move, e.g. out of a
	// terminal bucket. It indicates a programming or integration fault.
	ErrInvalidTransition = errors.New("store: invalid transition")

	// ErrInvalidField is returned by Append for an unsupported field name.
	ErrInvalidField = errors.New("store: invalid append field")
)

// Fields accepted by Append.
const (
	FieldNote     = "note"     // value: string
	FieldPlan     = "plan"     // value: *model.Plan
	FieldApproval = "approval" // value: *model.ApprovalRequest
	FieldResult   = "result"   // value: model.ExecutionResult
)

// Mutation is applied to a task inside a transition, before the bucket move
// becomes visible. Returning an error aborts the transition.
type Mutation func(*model.Task) error

// Store is the single source of truth for tasks.
//
// Transition performs the membership check, the mutation, the bucket move and
// the history append as one atomic unit: no reader ever observes a task in
// two buckets or in neither. Operations on the same task identifier are
// serialized; distinct tasks proceed in parallel.
type Store interface {
	// Create admits a new task into its initial bucket.
	Create(ctx context.Context, task *model.Task) error

	// Get returns the task regardless of bucket.
	Get(ctx context.Context, id string) (*model.Task, error)

	// ListByBucket returns all tasks currently in the bucket.
	ListByBucket(ctx context.Context, bucket model.Bucket) ([]*model.Task, error)

	// Transition atomically moves the task from one bucket to another,
	// applying the optional mutation first. It fails with ErrConflict when
	// the task is not in from, and ErrInvalidTransition when the move is
	// illegal.
	Transition(ctx context.Context, id string, from, to model.Bucket, mutation Mutation) (*model.Task, error)

	// Append updates a single field of the task document in place, without
	// changing bucket membership or history.
	Append(ctx context.Context, id string, field string, value interface{}) (*model.Task, error)

	// Update applies the mutation to the current document under the task's
	// lock, without changing bucket membership or history. The mutation sees
	// the latest persisted state, so callers can re-check a condition before
	// acting instead of writing back a stale snapshot.
	Update(ctx context.Context, id string, mutation Mutation) (*model.Task, error)
}

// ApplyAppend mutates the task according to the Append contract. Shared by
// the fs and memory implementations.
func ApplyAppend(task *model.Task, field string, value interface{}) error {
	switch field {
	case FieldNote:
		note, ok := value.(string)
		if !ok {
			return ErrInvalidField
		}
		task.AddNote(note)
	case FieldPlan:
		plan, ok := value.(*model.Plan)
		if !ok {
			return ErrInvalidField
		}
		task.Plan = plan
	case FieldApproval:
		approval, ok := value.(*model.ApprovalRequest)
		if !ok {
			return ErrInvalidField
		}
		task.Approval = approval
	case FieldResult:
		result, ok := value.(model.ExecutionResult)
		if !ok {
			return ErrInvalidField
		}
		task.Results = append(task.Results, result)
	default:
		return ErrInvalidField
	}
	return nil
}
