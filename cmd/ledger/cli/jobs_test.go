package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/jobs"
)

func TestTriggerGLIntegrityEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	info, err := c.Trigger(context.Background(), "gl-integrity", 4)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskGLIntegrity, info.Type)
	require.Equal(t, jobs.QueueDefault, info.Queue)
	require.JSONEq(t, `{"org_id":4}`, string(info.Payload))

	_, err = c.Trigger(context.Background(), "mail:send", 0)
	require.Error(t, err)
}

func TestNewJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)

	var empty *JobsCLI
	_, err = empty.Trigger(context.Background(), jobs.TaskGLIntegrity, 0)
	require.Error(t, err)
}
