// Package reasoning turns a freshly ingested task into a structured plan:
// the list of proposed actions, an optional draft, and the engine's
// confidence in its own reading of the task.
package reasoning

import (
	"context"
	"errors"

	"github.com/taskvault/taskvault/model"
)

// ErrUnavailable signals that the engine cannot answer right now, e.g. a
// remote model endpoint is unreachable. The orchestrator retries a bounded
// number of times before parking the task in Error.
var ErrUnavailable = errors.New("reasoning: engine unavailable")

// LowConfidence is the threshold below which a plan is never auto-approved,
// regardless of what the security policy would allow.
const LowConfidence = 0.5

// Engine drafts a plan for a task. Implementations must be safe for
// concurrent use; the orchestrator calls Plan from multiple workers.
type Engine interface {
	Plan(ctx context.Context, task *model.Task) (*model.Plan, error)
}
