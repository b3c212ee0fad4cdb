// Package source defines the contract for input adapters: independent
// pollers that turn external signals (dropped files, incoming mail) into
// candidate tasks, plus the runner that drives them with backoff and health
// reporting.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/taskvault/taskvault/model"
)

// ErrPermanent marks a failure no retry can fix, e.g. a missing long-lived
// credential. The runner stops the adapter and reports it down; other
// adapters keep polling.
var ErrPermanent = errors.New("source: permanent adapter failure")

// Candidate is a source item not yet admitted as a task: it still has to
// pass the dedup check.
type Candidate struct {
	Source      string
	Fingerprint string
	Kind        model.Kind
	Priority    model.Priority
	Title       string
	Body        string
	Payload     model.Payload
}

// Adapter produces candidate tasks from one external source. Poll is invoked
// on a fixed interval; it must be safe to call again after an error.
type Adapter interface {
	// Name identifies the adapter in health reports and dedup records.
	Name() string

	// Interval is the configured polling cadence.
	Interval() time.Duration

	// Poll returns the batch of new candidates since the previous call.
	// Transient failures return an ordinary error; unrecoverable ones wrap
	// ErrPermanent.
	Poll(ctx context.Context) ([]Candidate, error)
}

// Sink receives candidates that survived a poll; the ingestion layer
// implements it.
type Sink interface {
	Admit(ctx context.Context, candidate Candidate) error
}

// Reporter receives adapter liveness signals; the health monitor implements
// it.
type Reporter interface {
	ReportSuccess(component string)
	ReportFailure(component string, err error)
	MarkDown(component string, err error)
}
