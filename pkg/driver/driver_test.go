package driver

import (
	"context"
	"testing"

	"github.com/cuemby/nimbus-allocator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRetrieveLastAllocatedExecutorID(t *testing.T) {
	l := NewLocal(42)
	id, err := l.RetrieveLastAllocatedExecutorID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestLocalRemoveExecutorRecordsReason(t *testing.T) {
	l := NewLocal(0)
	reason := types.ExitReason{ExitStatus: types.ExitPMemExceeded, ExitCausedByApp: true, Message: "oom"}
	l.RemoveExecutor(context.Background(), "7", reason)

	assert.Equal(t, []types.ExecutorID{"7"}, l.Removed())
	got, ok := l.LastRemovedReason("7")
	require.True(t, ok)
	assert.Equal(t, reason, got)

	_, ok = l.LastRemovedReason("unknown")
	assert.False(t, ok)
}

func TestReplyDeliversExactlyOneResult(t *testing.T) {
	r, ch := NewReply()
	reason := types.ExitReason{Message: "explicit termination request"}
	r.Reply(reason)

	got := <-ch
	require.NoError(t, got.Err)
	assert.Equal(t, reason, got.Reason)
}

func TestReplyCanFail(t *testing.T) {
	r, ch := NewReply()
	r.Fail(ErrUnknownExecutor)

	got := <-ch
	assert.ErrorIs(t, got.Err, ErrUnknownExecutor)
}
