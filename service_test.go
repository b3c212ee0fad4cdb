package taskvault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/store"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(location, []byte(`
vaultPath: /data/vault
dropzonePath: /data/dropzone
mailFilter: is:unread label:inbox
dropzoneInterval: 15s
policy:
  lowThreshold: 40
  highThreshold: 90
  knownContacts:
    - billing@acme.example
`), 0o644))

	config, err := LoadConfig(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, "/data/vault", config.VaultPath)
	assert.Equal(t, "/data/vault/.seen", config.DedupPath)
	assert.Equal(t, "/data/vault/Briefings", config.BriefingPath)
	assert.Equal(t, 15*time.Second, time.Duration(config.DropzoneInterval))
	assert.Equal(t, 40.0, config.Policy.LowThreshold)
	assert.Equal(t, []string{"billing@acme.example"}, config.Policy.KnownContacts)
	assert.Equal(t, 30*time.Second, time.Duration(config.HealthInterval))
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	t.Setenv("TASKVAULT_VAULT", "/env/vault")
	t.Setenv("TASKVAULT_HIGH_THRESHOLD", "250")
	t.Setenv("TASKVAULT_KNOWN_CONTACTS", "a@b.c, d@e.f")

	config, err := LoadConfig(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/env/vault", config.VaultPath)
	assert.Equal(t, 250.0, config.Policy.HighThreshold)
	assert.Equal(t, []string{"a@b.c", "d@e.f"}, config.Policy.KnownContacts)
}

func TestLoadConfigRequiresVault(t *testing.T) {
	_, err := LoadConfig(context.Background(), "")
	require.Error(t, err)
}

func fastConfig(t *testing.T) *Config {
	t.Helper()
	config := DefaultConfig()
	config.VaultPath = filepath.Join(t.TempDir(), "vault")
	config.DropzonePath = filepath.Join(t.TempDir(), "dropzone")
	config.DropzoneInterval = Duration(20 * time.Millisecond)
	config.Orchestrator.ScanInterval = 20 * time.Millisecond
	config.Orchestrator.RetryDelay = time.Millisecond
	config.Init()
	return &config
}

func TestDroppedFileFlowsToApprovalGate(t *testing.T) {
	config := fastConfig(t)
	require.NoError(t, os.MkdirAll(config.DropzonePath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(config.DropzonePath, "contract.pdf"), []byte("terms"), 0o644))

	service, err := New(config)
	require.NoError(t, err)
	runtime, err := service.Start(context.Background())
	require.NoError(t, err)
	defer runtime.Shutdown()

	ctx := context.Background()
	var taskID string
	require.Eventually(t, func() bool {
		tasks, err := service.Store().ListByBucket(ctx, model.BucketPendingApproval)
		if err != nil || len(tasks) != 1 {
			return false
		}
		taskID = tasks[0].ID
		return tasks[0].Approval.Active()
	}, 5*time.Second, 20*time.Millisecond, "dropped file should reach the approval gate")

	// Approve and watch it finish.
	task, err := service.Store().Get(ctx, taskID)
	require.NoError(t, err)
	task.Approval.Decision = model.DecisionApproved
	_, err = service.Store().Append(ctx, taskID, store.FieldApproval, task.Approval)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		final, err := service.Store().Get(ctx, taskID)
		return err == nil && final.Bucket == model.BucketDone
	}, 5*time.Second, 20*time.Millisecond)

	final, err := service.Store().Get(ctx, taskID)
	require.NoError(t, err)
	require.NotEmpty(t, final.Results)
	assert.True(t, final.Results[0].Success)
}

func TestBriefingOnDemand(t *testing.T) {
	config := fastConfig(t)
	service, err := New(config)
	require.NoError(t, err)

	require.NoError(t, service.Briefing().Daily(context.Background()))
	entries, err := os.ReadDir(config.BriefingPath)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
