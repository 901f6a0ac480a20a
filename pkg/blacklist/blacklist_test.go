package blacklist

import (
	"testing"
	"time"

	"github.com/cuemby/nimbus-allocator/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestHandleResourceAllocationFailureCrossesThreshold(t *testing.T) {
	tr := New(2, time.Minute)
	tr.SetNumClusterNodes(3)

	tr.HandleResourceAllocationFailure("bad-node")
	assert.False(t, tr.IsBlacklisted("bad-node"))

	tr.HandleResourceAllocationFailure("bad-node")
	assert.True(t, tr.IsBlacklisted("bad-node"))
}

func TestHandleResourceAllocationFailureIgnoresEmptyHost(t *testing.T) {
	tr := New(1, time.Minute)
	tr.HandleResourceAllocationFailure("")
	assert.False(t, tr.IsBlacklisted(""))
}

func TestIsAllNodeBlacklisted(t *testing.T) {
	tr := New(1, time.Minute)
	tr.SetNumClusterNodes(2)
	tr.SetSchedulerBlacklistedNodes([]types.Host{"h1"})
	assert.False(t, tr.IsAllNodeBlacklisted())

	tr.HandleResourceAllocationFailure("h2")
	assert.True(t, tr.IsAllNodeBlacklisted())
}

func TestIsAllNodeBlacklistedUnknownClusterSize(t *testing.T) {
	tr := New(1, time.Minute)
	tr.HandleResourceAllocationFailure("h1")
	// numClusterNodes is still 0 (never reported) so we can't claim "all".
	assert.False(t, tr.IsAllNodeBlacklisted())
}

func TestSnapshotRestoreRoundtrips(t *testing.T) {
	tr := New(1, time.Minute)
	tr.HandleResourceAllocationFailure("h1")
	tr.HandleResourceAllocationFailure("h2")

	snap := tr.Snapshot()
	assert.ElementsMatch(t, []types.Host{"h1", "h2"}, snap)

	restored := New(1, time.Minute)
	restored.Restore(snap)
	assert.True(t, restored.IsBlacklisted("h1"))
	assert.True(t, restored.IsBlacklisted("h2"))
}

func TestFailuresExpireOutsideWindow(t *testing.T) {
	tr := New(1, 10*time.Millisecond)
	fake := time.Now()
	tr.nowFn = func() time.Time { return fake }

	tr.HandleResourceAllocationFailure("h1")
	assert.True(t, tr.IsBlacklisted("h1"))

	// A node already blacklisted stays blacklisted (no unban logic); but a
	// fresh tracker seeded only via failures that have since expired should
	// not count toward a new threshold crossing.
	tr2 := New(2, 10*time.Millisecond)
	tr2.nowFn = func() time.Time { return fake }
	tr2.HandleResourceAllocationFailure("h2")
	fake = fake.Add(20 * time.Millisecond)
	tr2.HandleResourceAllocationFailure("h2")
	assert.False(t, tr2.IsBlacklisted("h2"))
}
