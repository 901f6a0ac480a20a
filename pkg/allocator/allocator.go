// Package allocator implements the executor allocator: the reconciliation
// loop that turns a driver's "I want N executors with this locality" into
// resource manager requests, matches granted containers to those requests,
// launches worker processes for them, and reconciles completions back to
// the driver. It is the control loop every other package in this module
// exists to serve.
package allocator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/nimbus-allocator/pkg/blacklist"
	"github.com/cuemby/nimbus-allocator/pkg/failuretracker"
	"github.com/cuemby/nimbus-allocator/pkg/log"
	"github.com/cuemby/nimbus-allocator/pkg/placement"
	"github.com/cuemby/nimbus-allocator/pkg/resourcespec"
	"github.com/cuemby/nimbus-allocator/pkg/rmclient"
	"github.com/cuemby/nimbus-allocator/pkg/types"
	"github.com/rs/zerolog"
)

// RequestPriority is the fixed priority every container request carries.
const RequestPriority int32 = 1

// HeartbeatProgress is the fixed progress indicator reported on every
// Allocate heartbeat.
const HeartbeatProgress float32 = 0.1

// Launcher starts a worker process for a granted container. Implementations
// must be safe to call concurrently; the allocator dispatches launches to a
// bounded pool of goroutines, never the reconciliation goroutine itself.
type Launcher interface {
	Launch(ctx context.Context, c *types.Container, spec resourcespec.Spec, execID types.ExecutorID) error
}

// RackResolver resolves hosts to rack paths for the rack-local matching
// pass. Implementations may block; the allocator resolves each allocated
// batch on a spawned goroutine so that pass stays cancelable through the
// context passed to Allocate. The per-host lookups made while building
// placement preferences call ResolveRacks directly.
type RackResolver interface {
	ResolveRacks(ctx context.Context, hosts []types.Host) (map[types.Host]types.Rack, error)
}

// DriverClient is the allocator's outbound view of the application driver.
type DriverClient interface {
	RetrieveLastAllocatedExecutorID(ctx context.Context) (int, error)
	RemoveExecutor(ctx context.Context, id types.ExecutorID, reason types.ExitReason)
}

// LossReasonReply is the inbound handle for one enqueueGetLossReason call.
type LossReasonReply interface {
	Reply(reason types.ExitReason)
	Fail(err error)
}

// errUnknownExecutor is delivered to a LossReasonReply when the allocator
// has never heard of the requested executor id.
var errUnknownExecutor = fmt.Errorf("allocator: unknown executor")

// ErrUnknownExecutor is returned via LossReasonReply.Fail for an executor id
// the allocator has no record of, live or historical.
func ErrUnknownExecutor() error { return errUnknownExecutor }

// Allocator is the executor allocator described in package doc. All mutable
// state is protected by a single coarse mutex (mu); the RM Allocate call is
// made while holding it, matching spec semantics where a reconciliation
// cycle is atomic with respect to requestTotal/killExecutor/
// enqueueGetLossReason calls arriving concurrently from the driver side.
type Allocator struct {
	mu sync.Mutex

	logger zerolog.Logger

	spec      resourcespec.Spec
	requests  rmclient.RequestStore
	launcher  Launcher
	rack      RackResolver
	driver    DriverClient
	blacklist *blacklist.Tracker
	failures  *failuretracker.Tracker
	labelExpr string

	targetNumExecutors    int
	hostToLocalTaskCount  map[types.Host]int
	numLocalityAwareTasks int

	numStarting               int
	executorIDCounter         int
	runningExecutors          map[types.ExecutorID]bool
	executorIdToContainer     map[types.ExecutorID]*types.Container
	containerIdToExecutorId   map[types.ContainerID]types.ExecutorID
	allocatedHostToContainers map[types.Host]map[types.ContainerID]bool
	allocatedContainerToHost  map[types.ContainerID]types.Host
	releasedContainers        map[types.ContainerID]bool
	pendingLossReasonRequests map[types.ExecutorID][]LossReasonReply
	releasedExecutorLossReasons map[types.ExecutorID]types.ExitReason

	numUnexpectedContainerRelease int

	launchPool chan launchJob
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopCh     chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
}

type launchJob struct {
	container *types.Container
	execID    types.ExecutorID
}

// New constructs an Allocator and starts its launcher worker pool.
// initialExecutorID seeds executorIDCounter so ids survive an allocator
// restart without colliding with ids the driver already knows (spec.md §9).
func New(
	spec resourcespec.Spec,
	requests rmclient.RequestStore,
	launcher Launcher,
	rack RackResolver,
	driver DriverClient,
	poolSize int,
	failureThreshold int,
	failureWindowSeconds int64,
	initialExecutorID int,
	nodeLabelExpression string,
) *Allocator {
	if poolSize <= 0 {
		poolSize = 1
	}

	a := &Allocator{
		logger:                      log.WithComponent("allocator"),
		spec:                        spec,
		requests:                    requests,
		launcher:                    launcher,
		rack:                        rack,
		driver:                      driver,
		labelExpr:                   nodeLabelExpression,
		blacklist:                   blacklist.New(failureThreshold, time.Duration(failureWindowSeconds)*time.Second),
		failures:                    failuretracker.New(time.Duration(failureWindowSeconds)*time.Second, failureThreshold),
		hostToLocalTaskCount:        make(map[types.Host]int),
		executorIDCounter:           initialExecutorID,
		runningExecutors:            make(map[types.ExecutorID]bool),
		executorIdToContainer:       make(map[types.ExecutorID]*types.Container),
		containerIdToExecutorId:     make(map[types.ContainerID]types.ExecutorID),
		allocatedHostToContainers:   make(map[types.Host]map[types.ContainerID]bool),
		allocatedContainerToHost:    make(map[types.ContainerID]types.Host),
		releasedContainers:          make(map[types.ContainerID]bool),
		pendingLossReasonRequests:   make(map[types.ExecutorID][]LossReasonReply),
		releasedExecutorLossReasons: make(map[types.ExecutorID]types.ExitReason),
		launchPool:                  make(chan launchJob, poolSize*4),
		stopCh:                      make(chan struct{}),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	for i := 0; i < poolSize; i++ {
		a.wg.Add(1)
		go a.launchWorker()
	}

	return a
}

// requestTotal updates placement hints unconditionally and returns true iff
// the target executor count changed. It never kills running executors to
// shrink; shrink happens only by canceling pending requests on the next
// reconciliation.
func (a *Allocator) requestTotal(requestedTotal, localityAwareTasks int, hostToLocalTaskCount map[types.Host]int, nodeBlacklist []types.Host) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.numLocalityAwareTasks = localityAwareTasks
	a.hostToLocalTaskCount = hostToLocalTaskCount
	a.blacklist.SetSchedulerBlacklistedNodes(nodeBlacklist)

	if requestedTotal == a.targetNumExecutors {
		return false
	}
	a.targetNumExecutors = requestedTotal
	return true
}

// killExecutor marks an executor's container released and asks the resource
// manager to reclaim it. Unknown executors, or executors whose container is
// already released, are logged and ignored.
func (a *Allocator) killExecutor(id types.ExecutorID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.executorIdToContainer[id]
	if !ok {
		a.logger.Warn().Str("executor_id", string(id)).Msg("killExecutor: unknown executor")
		return
	}
	if a.releasedContainers[c.ID] {
		return
	}

	a.releasedContainers[c.ID] = true
	if err := a.requests.ReleaseAssignedContainer(c.ID); err != nil {
		a.logger.Error().Err(err).Str("container_id", string(c.ID)).Msg("failed to release container")
	}
	delete(a.runningExecutors, id)
}

// enqueueGetLossReason registers interest in why an executor exited. If the
// executor is currently live, the reply fires when its completion is
// processed; if a stored reason already exists, it fires immediately.
func (a *Allocator) enqueueGetLossReason(id types.ExecutorID, reply LossReasonReply) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, live := a.executorIdToContainer[id]; live {
		a.pendingLossReasonRequests[id] = append(a.pendingLossReasonRequests[id], reply)
		return
	}
	if reason, ok := a.releasedExecutorLossReasons[id]; ok {
		delete(a.releasedExecutorLossReasons, id)
		reply.Reply(reason)
		return
	}
	reply.Fail(errUnknownExecutor)
}

// stop force-shuts-down the launcher worker pool, interrupting in-flight
// launches.
func (a *Allocator) stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		a.cancel()
	})
	a.wg.Wait()
}

// Stop is the exported form of stop, for callers outside the package.
func (a *Allocator) Stop() { a.stop() }

// RequestTotal is the exported form of requestTotal.
func (a *Allocator) RequestTotal(requestedTotal, localityAwareTasks int, hostToLocalTaskCount map[types.Host]int, nodeBlacklist []types.Host) bool {
	return a.requestTotal(requestedTotal, localityAwareTasks, hostToLocalTaskCount, nodeBlacklist)
}

// KillExecutor is the exported form of killExecutor.
func (a *Allocator) KillExecutor(id types.ExecutorID) { a.killExecutor(id) }

// EnqueueGetLossReason is the exported form of enqueueGetLossReason.
func (a *Allocator) EnqueueGetLossReason(id types.ExecutorID, reply LossReasonReply) {
	a.enqueueGetLossReason(id, reply)
}

// Allocate is the exported form of the reconciliation step.
func (a *Allocator) Allocate(ctx context.Context) error { return a.allocate(ctx) }

// NumExecutorsRunning returns the number of currently running executors.
func (a *Allocator) NumExecutorsRunning() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.runningExecutors)
}

// NumExecutorsFailed returns the number of app-caused failures within the
// configured sliding window.
func (a *Allocator) NumExecutorsFailed() int {
	return a.failures.NumFailedExecutors()
}

// NumContainersPendingAllocate returns the number of outstanding container
// requests.
func (a *Allocator) NumContainersPendingAllocate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests.PendingRequests())
}

// NumReleasedContainers returns the number of released containers whose
// completion has not yet been processed.
func (a *Allocator) NumReleasedContainers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.releasedContainers)
}

// IsAllNodeBlacklisted reports whether every known cluster node is
// currently blacklisted, meaning no further allocation can possibly
// succeed.
func (a *Allocator) IsAllNodeBlacklisted() bool {
	return a.blacklist.IsAllNodeBlacklisted()
}

// IsFatal reports whether the application-caused failure count has crossed
// the configured fatal threshold.
func (a *Allocator) IsFatal() bool {
	return a.failures.IsFatal()
}

// ExecutorIDCounter returns the current executor-id high-watermark, for
// persisting across restarts so a new allocator instance never reissues an
// id the driver already knows (spec.md §9).
func (a *Allocator) ExecutorIDCounter() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executorIDCounter
}

// BlacklistSnapshot returns the failure-driven blacklist, for persisting
// across restarts so a restarted allocator does not immediately re-request
// nodes it had already blacklisted for cause.
func (a *Allocator) BlacklistSnapshot() []types.Host {
	return a.blacklist.Snapshot()
}

// RestoreBlacklist seeds the failure-driven blacklist from a prior restart
// state, so a restarted allocator does not immediately re-request nodes it
// had already blacklisted for cause.
func (a *Allocator) RestoreBlacklist(hosts []types.Host) {
	a.blacklist.Restore(hosts)
}

// removeFromHostBookLocked drops a container from the host bookkeeping
// maps, pruning empty host entries. Must be called with mu held.
func (a *Allocator) removeFromHostBookLocked(cid types.ContainerID) {
	host, ok := a.allocatedContainerToHost[cid]
	if !ok {
		return
	}
	delete(a.allocatedContainerToHost, cid)
	if set, ok := a.allocatedHostToContainers[host]; ok {
		delete(set, cid)
		if len(set) == 0 {
			delete(a.allocatedHostToContainers, host)
		}
	}
}

