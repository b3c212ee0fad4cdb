package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobsRunOnInterval(t *testing.T) {
	var runs int32
	service := New(Job{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})
	service.Start(context.Background())
	defer service.Shutdown()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestFailingJobKeepsRunning(t *testing.T) {
	var runs int32
	service := New(Job{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return errors.New("boom")
		},
	})
	service.Start(context.Background())
	defer service.Shutdown()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestShutdownStopsJobs(t *testing.T) {
	var runs int32
	service := New(Job{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})
	service.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, time.Second, time.Millisecond)
	service.Shutdown()

	at := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, at, atomic.LoadInt32(&runs))
}

func TestInvalidJobsAreSkipped(t *testing.T) {
	service := New(Job{Name: "no-interval", Run: func(context.Context) error { return nil }}, Job{Name: "no-run", Interval: time.Second})
	service.Start(context.Background())
	service.Shutdown()
}
