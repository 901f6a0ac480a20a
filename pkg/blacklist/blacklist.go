// Package blacklist tracks nodes the allocator should stop requesting
// containers on, combining scheduler-supplied blacklisting with allocator
// observed allocation-failure signals. The allocator calls into this
// package only from under its own lock (spec.md §5); the Tracker's own
// locking exists so it remains safe if reused outside that discipline.
package blacklist

import (
	"sync"
	"time"

	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// Tracker implements the BlacklistTracker contract (spec.md §4.4).
type Tracker struct {
	mu sync.Mutex

	failureThreshold int
	failureWindow    time.Duration
	nowFn            func() time.Time

	schedulerBlacklisted map[types.Host]bool
	failuresAt           map[types.Host][]time.Time
	nodeBlacklisted      map[types.Host]bool
	numClusterNodes      int
}

// New creates a Tracker. A node accumulates allocation-failure blacklist
// status once it has failureThreshold allocation failures within
// failureWindow.
func New(failureThreshold int, failureWindow time.Duration) *Tracker {
	return &Tracker{
		failureThreshold:     failureThreshold,
		failureWindow:        failureWindow,
		nowFn:                time.Now,
		schedulerBlacklisted: make(map[types.Host]bool),
		failuresAt:           make(map[types.Host][]time.Time),
		nodeBlacklisted:      make(map[types.Host]bool),
	}
}

// SetSchedulerBlacklistedNodes replaces the scheduler-driven portion of the
// blacklist (e.g. nodes the driver already excluded via requestTotal).
func (t *Tracker) SetSchedulerBlacklistedNodes(hosts []types.Host) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.schedulerBlacklisted = make(map[types.Host]bool, len(hosts))
	for _, h := range hosts {
		t.schedulerBlacklisted[h] = true
	}
}

// HandleResourceAllocationFailure records a container failure attributable
// to a host; the allocator calls it for exit statuses outside its
// system-fault set. An empty host is a no-op (the failure could not be
// attributed to a specific node).
func (t *Tracker) HandleResourceAllocationFailure(host types.Host) {
	if host == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	t.failuresAt[host] = append(t.failuresAt[host], now)
	t.expireLocked(host, now)

	if t.failureThreshold > 0 && len(t.failuresAt[host]) >= t.failureThreshold {
		t.nodeBlacklisted[host] = true
	}
}

// SetNumClusterNodes records the cluster size, piped from each RM Allocate
// response, used by IsAllNodeBlacklisted.
func (t *Tracker) SetNumClusterNodes(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.numClusterNodes = n
}

// IsAllNodeBlacklisted reports whether every known cluster node is
// currently blacklisted (scheduler-driven or failure-driven), meaning no
// further allocation can possibly succeed.
func (t *Tracker) IsAllNodeBlacklisted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.numClusterNodes <= 0 {
		return false
	}

	blacklisted := make(map[types.Host]bool, len(t.schedulerBlacklisted)+len(t.nodeBlacklisted))
	for h := range t.schedulerBlacklisted {
		blacklisted[h] = true
	}
	for h := range t.nodeBlacklisted {
		blacklisted[h] = true
	}
	return len(blacklisted) >= t.numClusterNodes
}

// IsBlacklisted reports whether a specific host is currently excluded.
func (t *Tracker) IsBlacklisted(host types.Host) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.schedulerBlacklisted[host] || t.nodeBlacklisted[host]
}

// Snapshot returns the failure-driven blacklist for durable persistence
// across allocator restarts (pkg/state). Scheduler-driven entries are not
// persisted since the driver re-supplies them on every requestTotal call.
func (t *Tracker) Snapshot() []types.Host {
	t.mu.Lock()
	defer t.mu.Unlock()
	hosts := make([]types.Host, 0, len(t.nodeBlacklisted))
	for h := range t.nodeBlacklisted {
		hosts = append(hosts, h)
	}
	return hosts
}

// Restore seeds the failure-driven blacklist from a prior restart state.
func (t *Tracker) Restore(hosts []types.Host) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range hosts {
		t.nodeBlacklisted[h] = true
	}
}

func (t *Tracker) expireLocked(host types.Host, now time.Time) {
	if t.failureWindow <= 0 {
		return
	}
	cutoff := now.Add(-t.failureWindow)
	events := t.failuresAt[host]
	i := 0
	for ; i < len(events); i++ {
		if events[i].After(cutoff) {
			break
		}
	}
	t.failuresAt[host] = events[i:]
}
