package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/health"
	"github.com/taskvault/taskvault/service/store"
	"github.com/taskvault/taskvault/service/store/memory"
)

func seedTask(t *testing.T, taskStore store.Store, id string, path ...model.Bucket) *model.Task {
	t.Helper()
	ctx := context.Background()
	task := model.New("mailbox", id, model.KindEmail, time.Now())
	task.Title = "Email: " + id
	require.NoError(t, taskStore.Create(ctx, task))
	from := model.BucketNeedsAction
	for _, to := range path {
		_, err := taskStore.Transition(ctx, task.ID, from, to, nil)
		require.NoError(t, err)
		from = to
	}
	current, err := taskStore.Get(ctx, task.ID)
	require.NoError(t, err)
	return current
}

func TestDailyBriefing(t *testing.T) {
	dir := t.TempDir()
	taskStore := memory.New()
	ctx := context.Background()

	seedTask(t, taskStore, "fresh")
	pending := seedTask(t, taskStore, "gated", model.BucketInProgress, model.BucketPlans, model.BucketPendingApproval)
	_, err := taskStore.Append(ctx, pending.ID, store.FieldApproval, &model.ApprovalRequest{
		ID:       "req-1",
		Deadline: time.Now().Add(-time.Hour),
		Decision: model.DecisionPending,
		Urgent:   true,
	})
	require.NoError(t, err)
	parked := seedTask(t, taskStore, "broken", model.BucketInProgress, model.BucketError)
	_, err = taskStore.Append(ctx, parked.ID, store.FieldNote, "Planning failed: engine down.")
	require.NoError(t, err)

	monitor := health.New()
	monitor.Register("mailbox", 30*time.Second)

	briefing := NewBriefing(dir, taskStore, monitor)
	require.NoError(t, briefing.Daily(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "# Daily Briefing")
	assert.Contains(t, text, "Needs_Action: 1")
	assert.Contains(t, text, "Pending_Approval: 1")
	assert.Contains(t, text, "**OVERDUE**")
	assert.Contains(t, text, "Needs Attention")
	assert.Contains(t, text, "Planning failed")
	assert.Contains(t, text, "mailbox: healthy")
}

func TestWeeklyBriefing(t *testing.T) {
	dir := t.TempDir()
	taskStore := memory.New()
	ctx := context.Background()

	seedTask(t, taskStore, "done-1", model.BucketInProgress, model.BucketDone)
	seedTask(t, taskStore, "done-2", model.BucketInProgress, model.BucketDone)
	seedTask(t, taskStore, "nope", model.BucketInProgress, model.BucketPlans, model.BucketRejected)
	seedTask(t, taskStore, "open")

	briefing := NewBriefing(dir, taskStore, nil)
	require.NoError(t, briefing.Weekly(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "- Completed: 2")
	assert.Contains(t, text, "- Rejected: 1")
	assert.Contains(t, text, "- In flight: 1")
}
