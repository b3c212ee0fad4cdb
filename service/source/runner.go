package source

import (
	"context"
	"errors"
	"log"
	"time"
)

const (
	backoffBase = 5 * time.Second
	backoffCap  = 10 * time.Minute
)

// Runner drives a single adapter: poll on the configured interval, back off
// exponentially on transient errors, stop on permanent ones. One runner per
// adapter; failures never propagate across adapters.
type Runner struct {
	adapter  Adapter
	sink     Sink
	reporter Reporter

	// overridden in tests
	base time.Duration
	cap  time.Duration
}

// NewRunner creates a runner for the adapter. reporter may be nil.
func NewRunner(adapter Adapter, sink Sink, reporter Reporter) *Runner {
	return &Runner{
		adapter:  adapter,
		sink:     sink,
		reporter: reporter,
		base:     backoffBase,
		cap:      backoffCap,
	}
}

// Run polls until ctx is cancelled or the adapter fails permanently.
func (r *Runner) Run(ctx context.Context) {
	name := r.adapter.Name()
	delay := r.adapter.Interval()
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		err := r.pollOnce(ctx)
		switch {
		case err == nil:
			failures = 0
			delay = r.adapter.Interval()
			r.reportSuccess(name)
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, ErrPermanent):
			log.Printf("source %s: permanent failure, stopping: %v", name, err)
			if r.reporter != nil {
				r.reporter.MarkDown(name, err)
			}
			return
		default:
			failures++
			delay = r.backoff(failures)
			log.Printf("source %s: poll failed (attempt %d, next in %s): %v", name, failures, delay, err)
			if r.reporter != nil {
				r.reporter.ReportFailure(name, err)
			}
		}
	}
}

// PollOnce runs a single poll cycle; exposed for the scheduler-driven mode
// and for tests.
func (r *Runner) PollOnce(ctx context.Context) error {
	return r.pollOnce(ctx)
}

func (r *Runner) pollOnce(ctx context.Context) error {
	candidates, err := r.adapter.Poll(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		if err := r.sink.Admit(ctx, candidate); err != nil {
			// Admission failures are local to the candidate; keep going so
			// one bad item does not starve the rest of the batch.
			log.Printf("source %s: failed to admit candidate %s: %v", r.adapter.Name(), candidate.Fingerprint, err)
		}
	}
	return nil
}

// backoff returns the delay before the next poll after n consecutive
// failures: base doubling per failure, capped.
func (r *Runner) backoff(n int) time.Duration {
	delay := r.base
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= r.cap {
			return r.cap
		}
	}
	if delay > r.cap {
		return r.cap
	}
	return delay
}

func (r *Runner) reportSuccess(name string) {
	if r.reporter != nil {
		r.reporter.ReportSuccess(name)
	}
}
