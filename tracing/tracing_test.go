package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpansAreExported(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.json")
	require.NoError(t, Init("taskvault", "0.0.1", fname))

	ctx, span := StartSpan(context.Background(), "task.plan")
	span.WithAttributes(map[string]string{"task.id": "mailbox-abc123"})
	EndSpan(span, nil)

	_, child := StartSpan(ctx, "task.execute")
	EndSpan(child, errors.New("provider down"))

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
