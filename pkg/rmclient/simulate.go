package rmclient

import (
	"math/rand"

	"github.com/cuemby/nimbus-allocator/pkg/types"
	"github.com/google/uuid"
)

// SimulatedResourceManager stands in for a real cluster resource manager
// against a FakeRequestStore: on each Tick it grants a subset of pending
// requests as containers (minting container ids the way the teacher mints
// container ids for its own scheduled containers) and occasionally
// completes previously granted containers, so the CLI's --simulate mode
// exercises the full allocate/launch/complete loop without a real cluster.
type SimulatedResourceManager struct {
	store          *FakeRequestStore
	rng            *rand.Rand
	granted        []types.ContainerID
	grantRate      float64
	completionRate float64
}

// NewSimulatedResourceManager wraps store, granting a fraction of pending
// requests and completing a fraction of outstanding containers each Tick.
func NewSimulatedResourceManager(store *FakeRequestStore, seed int64, grantRate, completionRate float64) *SimulatedResourceManager {
	return &SimulatedResourceManager{
		store:          store,
		rng:            rand.New(rand.NewSource(seed)),
		grantRate:      grantRate,
		completionRate: completionRate,
	}
}

// Tick grants some pending requests and completes some granted containers.
func (s *SimulatedResourceManager) Tick() {
	for _, req := range s.store.PendingRequests() {
		if s.rng.Float64() > s.grantRate {
			continue
		}
		host := types.Host("node-" + uuid.New().String()[:8])
		if req.HasNodes() {
			host = req.Nodes[0]
		}
		container := &types.Container{
			ID:       types.ContainerID(uuid.New().String()),
			Host:     host,
			MemoryMB: req.Spec.MemoryMB,
			Cores:    req.Spec.Cores,
		}
		s.store.QueueAllocation(container)
		s.granted = append(s.granted, container.ID)
	}

	remaining := s.granted[:0]
	for _, id := range s.granted {
		if s.store.WasReleased(id) || s.rng.Float64() < s.completionRate {
			s.store.QueueCompletion(&types.ContainerStatus{
				ContainerID: id,
				ExitStatus:  types.ExitSuccess,
			})
			continue
		}
		remaining = append(remaining, id)
	}
	s.granted = remaining
}
