package dropzone

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/model"
)

func TestPollPicksUpSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice.pdf"), []byte("fake invoice"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("remember"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.tmp"), []byte("scratch"), 0o644))

	adapter, err := New(dir)
	require.NoError(t, err)

	candidates, err := adapter.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2, "unsupported extension skipped")

	byTitle := map[string]bool{}
	for _, c := range candidates {
		byTitle[c.Title] = true
		assert.Equal(t, "dropzone", c.Source)
		assert.Equal(t, model.KindFile, c.Kind)
		assert.NotEmpty(t, c.Fingerprint)
		require.NotNil(t, c.Payload.File)
	}
	assert.True(t, byTitle["Process File: invoice.pdf"])
	assert.True(t, byTitle["Process File: notes.txt"])
}

func TestFingerprintFollowsContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf"), []byte("different"), 0o644))

	adapter, err := New(dir)
	require.NoError(t, err)
	candidates, err := adapter.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	prints := map[string]int{}
	for _, c := range candidates {
		prints[c.Fingerprint]++
	}
	assert.Len(t, prints, 2, "identical content shares a fingerprint")
}

func TestPriorityMapping(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.xlsx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte("y"), 0o644))

	adapter, err := New(dir, WithInterval(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, adapter.Interval())

	candidates, err := adapter.Poll(context.Background())
	require.NoError(t, err)
	priorities := map[string]model.Priority{}
	for _, c := range candidates {
		priorities[c.Payload.File.Ext] = c.Priority
	}
	assert.Equal(t, model.PriorityHigh, priorities[".xlsx"])
	assert.Equal(t, model.PriorityMedium, priorities[".png"])
}

func TestWithExtensionsFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("y"), 0o644))

	adapter, err := New(dir, WithExtensions(".pdf"))
	require.NoError(t, err)
	candidates, err := adapter.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, ".pdf", candidates[0].Payload.File.Ext)
}
