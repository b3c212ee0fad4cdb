package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/model"
)

type scriptedAdapter struct {
	name     string
	interval time.Duration
	mu       sync.Mutex
	results  []pollResult
	calls    int
}

type pollResult struct {
	candidates []Candidate
	err        error
}

func (a *scriptedAdapter) Name() string            { return a.name }
func (a *scriptedAdapter) Interval() time.Duration { return a.interval }

func (a *scriptedAdapter) Poll(context.Context) ([]Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls >= len(a.results) {
		return nil, nil
	}
	result := a.results[a.calls]
	a.calls++
	return result.candidates, result.err
}

type recordingSink struct {
	mu        sync.Mutex
	admitted  []Candidate
	admitErrs []error
}

func (s *recordingSink) Admit(_ context.Context, c Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admitted = append(s.admitted, c)
	if len(s.admitErrs) > 0 {
		err := s.admitErrs[0]
		s.admitErrs = s.admitErrs[1:]
		return err
	}
	return nil
}

type recordingReporter struct {
	mu        sync.Mutex
	successes int
	failures  int
	down      bool
}

func (r *recordingReporter) ReportSuccess(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
}

func (r *recordingReporter) ReportFailure(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingReporter) MarkDown(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = true
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	runner := NewRunner(&scriptedAdapter{}, &recordingSink{}, nil)
	runner.base = 5 * time.Second
	runner.cap = 10 * time.Minute

	assert.Equal(t, 5*time.Second, runner.backoff(1))
	assert.Equal(t, 10*time.Second, runner.backoff(2))
	assert.Equal(t, 40*time.Second, runner.backoff(4))
	assert.Equal(t, 10*time.Minute, runner.backoff(9))
	assert.Equal(t, 10*time.Minute, runner.backoff(50), "backoff never exceeds the cap")
}

func TestPollOnceDeliversCandidates(t *testing.T) {
	candidate := Candidate{Source: "dropzone", Fingerprint: "fp-1", Kind: model.KindFile}
	adapter := &scriptedAdapter{
		name:    "dropzone",
		results: []pollResult{{candidates: []Candidate{candidate}}},
	}
	sink := &recordingSink{}
	runner := NewRunner(adapter, sink, nil)

	require.NoError(t, runner.PollOnce(context.Background()))
	require.Len(t, sink.admitted, 1)
	assert.Equal(t, "fp-1", sink.admitted[0].Fingerprint)
}

func TestPollOnceAdmitErrorDoesNotStopBatch(t *testing.T) {
	adapter := &scriptedAdapter{
		name: "dropzone",
		results: []pollResult{{candidates: []Candidate{
			{Fingerprint: "a"}, {Fingerprint: "b"},
		}}},
	}
	sink := &recordingSink{admitErrs: []error{assert.AnError}}
	runner := NewRunner(adapter, sink, nil)

	require.NoError(t, runner.PollOnce(context.Background()))
	assert.Len(t, sink.admitted, 2, "second candidate still admitted")
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	adapter := &scriptedAdapter{
		name:     "mailbox",
		interval: time.Millisecond,
		results:  []pollResult{{err: ErrPermanent}},
	}
	reporter := &recordingReporter{}
	runner := NewRunner(adapter, &recordingSink{}, reporter)

	done := make(chan struct{})
	go func() {
		runner.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on permanent failure")
	}
	assert.True(t, reporter.down)
}

func TestRunRecoversAfterTransientFailure(t *testing.T) {
	adapter := &scriptedAdapter{
		name:     "dropzone",
		interval: time.Millisecond,
		results: []pollResult{
			{err: assert.AnError},
			{candidates: []Candidate{{Fingerprint: "fp"}}},
		},
	}
	reporter := &recordingReporter{}
	sink := &recordingSink{}
	runner := NewRunner(adapter, sink, reporter)
	runner.base = time.Millisecond
	runner.cap = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.admitted) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	assert.Equal(t, 1, reporter.failures)
	assert.GreaterOrEqual(t, reporter.successes, 1)
}
