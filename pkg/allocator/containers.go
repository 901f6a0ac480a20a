package allocator

import (
	"context"
	"fmt"

	"github.com/cuemby/nimbus-allocator/pkg/rackresolver"
	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// handleAllocatedContainersLocked implements §4.6.4: match granted
// containers to outstanding requests in three passes (host-local,
// rack-local, off-rack), release whatever is left over as surplus, and
// dispatch launches for everything matched. Must be called with mu held.
func (a *Allocator) handleAllocatedContainersLocked(ctx context.Context, allocated []*types.Container) {
	if len(allocated) == 0 {
		return
	}

	remaining := make([]*types.Container, len(allocated))
	copy(remaining, allocated)
	var toUse []*types.Container

	remaining, matched := a.matchPassLocked(remaining, func(c *types.Container) types.Host { return c.Host })
	toUse = append(toUse, matched...)

	if len(remaining) > 0 && a.rack != nil {
		hosts := make([]types.Host, len(remaining))
		for i, c := range remaining {
			hosts[i] = c.Host
		}
		racks, err := rackresolver.RunInterruptible(ctx, a.rack, hosts)
		if err != nil {
			a.logger.Warn().Err(err).Msg("rack resolution failed for allocated batch, skipping rack-local pass")
		} else {
			remaining, matched = a.matchPassLocked(remaining, func(c *types.Container) types.Host {
				return types.Host(racks[c.Host])
			})
			toUse = append(toUse, matched...)
		}
	}

	remaining, matched = a.matchPassLocked(remaining, func(c *types.Container) types.Host { return types.AnyHost })
	toUse = append(toUse, matched...)

	for _, c := range remaining {
		a.releasedContainers[c.ID] = true
		if err := a.requests.ReleaseAssignedContainer(c.ID); err != nil {
			a.logger.Error().Err(err).Str("container_id", string(c.ID)).Msg("failed to release surplus container")
		}
	}

	for _, c := range toUse {
		a.dispatchLaunchLocked(c)
	}
}

// matchPassLocked attempts to match each container to an outstanding
// request at the location keyFn returns, using the relaxed resource key
// (memory only; vcores are always our own requested value). Matched
// containers are removed from remaining and returned separately.
func (a *Allocator) matchPassLocked(containers []*types.Container, keyFn func(*types.Container) types.Host) (stillUnmatched, matched []*types.Container) {
	for _, c := range containers {
		loc := keyFn(c)
		if loc == "" {
			stillUnmatched = append(stillUnmatched, c)
			continue
		}
		if !a.spec.Matches(c.MemoryMB) {
			stillUnmatched = append(stillUnmatched, c)
			continue
		}
		groups := a.requests.GetMatchingRequests(RequestPriority, loc, a.spec)
		if len(groups) == 0 || len(groups[0]) == 0 {
			stillUnmatched = append(stillUnmatched, c)
			continue
		}
		req := groups[0][0]
		if err := a.requests.RemoveContainerRequest(req); err != nil {
			a.logger.Error().Err(err).Msg("failed to remove matched request")
			stillUnmatched = append(stillUnmatched, c)
			continue
		}
		matched = append(matched, c)
	}
	return stillUnmatched, matched
}

// dispatchLaunchLocked mints an executor id for a matched container and
// either dispatches it to the launcher pool or, if the number of running
// executors has already reached the target, leaves it unlaunched as a
// transient overshoot the next reconciliation corrects. Launches dispatched
// earlier in the same cycle are not counted by that check.
// Must be called with mu held.
func (a *Allocator) dispatchLaunchLocked(c *types.Container) {
	a.executorIDCounter++
	execID := types.ExecutorID(fmt.Sprintf("%d", a.executorIDCounter))

	if c.MemoryMB < a.spec.MemoryMB {
		a.logger.Error().
			Int("granted_mb", c.MemoryMB).
			Int("requested_mb", a.spec.MemoryMB).
			Msg("granted container memory below requested spec")
	}

	running := len(a.runningExecutors)
	if running >= a.targetNumExecutors {
		a.logger.Debug().
			Str("container_id", string(c.ID)).
			Msg("target already met, leaving matched container unlaunched this cycle")
		return
	}

	a.numStarting++
	select {
	case a.launchPool <- launchJob{container: c, execID: execID}:
	case <-a.stopCh:
		a.numStarting--
	}
}

// processCompletedContainersLocked implements §4.6.5. Must be called with
// mu held.
func (a *Allocator) processCompletedContainersLocked(ctx context.Context, completed []*types.ContainerStatus) {
	for _, status := range completed {
		a.processOneCompletionLocked(ctx, status)
	}
}

func (a *Allocator) processOneCompletionLocked(ctx context.Context, status *types.ContainerStatus) {
	cid := status.ContainerID

	alreadyReleased := a.releasedContainers[cid]
	if alreadyReleased {
		delete(a.releasedContainers, cid)
	}

	eid, hadExec := a.containerIdToExecutorId[cid]
	if !alreadyReleased && hadExec {
		delete(a.runningExecutors, eid)
	}

	causedByApp, diagnostic, feedBlacklist := classifyExit(status.ExitStatus, status.Diagnostics)
	reason := types.ExitReason{ExitStatus: status.ExitStatus, ExitCausedByApp: causedByApp, Message: diagnostic}

	if alreadyReleased {
		reason = types.ExitReason{ExitStatus: status.ExitStatus, ExitCausedByApp: false, Message: "explicit termination request"}
	} else {
		a.failures.RecordCompletion(causedByApp)
		if feedBlacklist {
			if host, ok := a.allocatedContainerToHost[cid]; ok {
				a.blacklist.HandleResourceAllocationFailure(host)
			}
		}
	}

	a.removeFromHostBookLocked(cid)
	delete(a.containerIdToExecutorId, cid)

	if hadExec {
		delete(a.executorIdToContainer, eid)
		if queue, ok := a.pendingLossReasonRequests[eid]; ok {
			for _, reply := range queue {
				reply.Reply(reason)
			}
			delete(a.pendingLossReasonRequests, eid)
		} else {
			a.releasedExecutorLossReasons[eid] = reason
		}
	}

	if !alreadyReleased && hadExec {
		a.numUnexpectedContainerRelease++
		a.driver.RemoveExecutor(ctx, eid, reason)
	}
}
