package allocator

import "github.com/cuemby/nimbus-allocator/pkg/types"

// launchWorker is one member of the bounded launcher pool. Launch calls run
// outside the bookkeeping lock; only the result is applied under mu, so a
// slow launch never blocks reconciliation.
func (a *Allocator) launchWorker() {
	defer a.wg.Done()
	for {
		select {
		case job, ok := <-a.launchPool:
			if !ok {
				return
			}
			a.runLaunch(job)
		case <-a.stopCh:
			return
		}
	}
}

func (a *Allocator) runLaunch(job launchJob) {
	err := a.launcher.Launch(a.ctx, job.container, a.spec, job.execID)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.numStarting--

	if err != nil {
		a.logger.Warn().Err(err).
			Str("container_id", string(job.container.ID)).
			Str("executor_id", string(job.execID)).
			Msg("launch failed, releasing container")
		a.releasedContainers[job.container.ID] = true
		if rerr := a.requests.ReleaseAssignedContainer(job.container.ID); rerr != nil {
			a.logger.Error().Err(rerr).Str("container_id", string(job.container.ID)).Msg("failed to release container after launch failure")
		}
		return
	}

	a.runningExecutors[job.execID] = true
	a.executorIdToContainer[job.execID] = job.container
	a.containerIdToExecutorId[job.container.ID] = job.execID
	if a.allocatedHostToContainers[job.container.Host] == nil {
		a.allocatedHostToContainers[job.container.Host] = make(map[types.ContainerID]bool)
	}
	a.allocatedHostToContainers[job.container.Host][job.container.ID] = true
	a.allocatedContainerToHost[job.container.ID] = job.container.Host
}
