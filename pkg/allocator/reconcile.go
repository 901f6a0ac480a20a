package allocator

import (
	"context"
	"fmt"

	"github.com/cuemby/nimbus-allocator/pkg/placement"
	"github.com/cuemby/nimbus-allocator/pkg/rmclient"
	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// allocate runs one reconciliation cycle: refresh outstanding requests,
// heartbeat the resource manager, and process whatever it handed back.
func (a *Allocator) allocate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.updateResourceRequestsLocked(); err != nil {
		return fmt.Errorf("update resource requests: %w", err)
	}

	resp, err := a.requests.Allocate(HeartbeatProgress)
	if err != nil {
		return fmt.Errorf("heartbeat allocate: %w", err)
	}

	a.blacklist.SetNumClusterNodes(resp.NumClusterNodes)

	a.handleAllocatedContainersLocked(ctx, resp.Allocated)
	a.processCompletedContainersLocked(ctx, resp.Completed)

	return nil
}

// updateResourceRequestsLocked implements §4.6.3. Must be called with mu
// held.
func (a *Allocator) updateResourceRequestsLocked() error {
	pending := a.requests.PendingRequests()

	running := len(a.runningExecutors)
	missing := a.targetNumExecutors - len(pending) - a.numStarting - running

	preferredHosts := make(map[types.Host]bool, len(a.hostToLocalTaskCount))
	for h, n := range a.hostToLocalTaskCount {
		if n > 0 {
			preferredHosts[h] = true
		}
	}

	var localityMatched, staleLocality, anyHost []*rmclient.Request
	for _, req := range pending {
		switch {
		case !req.HasNodes():
			anyHost = append(anyHost, req)
		case req.AnyOf(preferredHosts):
			localityMatched = append(localityMatched, req)
		default:
			staleLocality = append(staleLocality, req)
		}
	}

	switch {
	case missing > 0:
		for _, req := range staleLocality {
			if err := a.requests.RemoveContainerRequest(req); err != nil {
				return fmt.Errorf("cancel stale-locality request: %w", err)
			}
		}

		available := missing + len(staleLocality)
		potential := available + len(anyHost)

		matchedHosts := make(map[types.Host]bool, len(localityMatched))
		for _, req := range localityMatched {
			for _, h := range req.Nodes {
				matchedHosts[h] = true
			}
		}

		prefs := placement.Strategy(placement.Input{
			NumContainersNeeded:           potential,
			NumLocalityAwareTasks:         a.numLocalityAwareTasks,
			HostToLocalTaskCount:          a.hostToLocalTaskCount,
			AllocatedHostToContainerCount: allocatedCounts(a.allocatedHostToContainers),
			CurrentMatchedLocalityHosts:   matchedHosts,
		}, a.resolveRackLocked)

		var newRequests []*rmclient.Request
		for _, p := range prefs {
			if p.Host == "" {
				continue
			}
			racks := []types.Rack(nil)
			if p.Rack != "" {
				racks = []types.Rack{p.Rack}
			}
			newRequests = append(newRequests, &rmclient.Request{
				Spec:     a.spec,
				Nodes:    []types.Host{p.Host},
				Racks:    racks,
				Priority: RequestPriority,
			})
		}

		if available >= len(newRequests) {
			for i := 0; i < available-len(newRequests); i++ {
				newRequests = append(newRequests, &rmclient.Request{Spec: a.spec, Priority: RequestPriority})
			}
		} else {
			cancel := len(newRequests) - available
			for i := 0; i < cancel && i < len(anyHost); i++ {
				if err := a.requests.RemoveContainerRequest(anyHost[i]); err != nil {
					return fmt.Errorf("cancel any-host request: %w", err)
				}
			}
		}

		for _, req := range newRequests {
			if err := a.requests.AddContainerRequest(req, a.nodeLabelExpression()); err != nil {
				return fmt.Errorf("submit container request: %w", err)
			}
		}

	case missing < 0 && len(pending) > 0:
		toCancel := -missing
		if toCancel > len(pending) {
			toCancel = len(pending)
		}
		ordered := append(append(append([]*rmclient.Request{}, staleLocality...), anyHost...), localityMatched...)
		for i := 0; i < toCancel && i < len(ordered); i++ {
			if err := a.requests.RemoveContainerRequest(ordered[i]); err != nil {
				return fmt.Errorf("cancel surplus request: %w", err)
			}
		}
	}

	return nil
}

// nodeLabelExpression is a hook for the configured node label expression;
// the allocator itself is agnostic to its contents and only forwards it.
func (a *Allocator) nodeLabelExpression() string { return a.labelExpr }

func (a *Allocator) resolveRackLocked(h types.Host) types.Rack {
	if a.rack == nil {
		return ""
	}
	racks, err := a.rack.ResolveRacks(context.Background(), []types.Host{h})
	if err != nil {
		a.logger.Warn().Err(err).Str("host", string(h)).Msg("rack resolution failed")
		return ""
	}
	return racks[h]
}

func allocatedCounts(m map[types.Host]map[types.ContainerID]bool) map[types.Host]int {
	out := make(map[types.Host]int, len(m))
	for h, set := range m {
		out[h] = len(set)
	}
	return out
}
