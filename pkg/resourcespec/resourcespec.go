// Package resourcespec computes the immutable per-executor resource
// capability every outgoing container request and every granted-container
// match uses.
package resourcespec

import "math"

// MinOverheadMB is the floor applied to the computed memory overhead,
// regardless of how small executorMemoryMB is.
const MinOverheadMB = 384

// DefaultOverheadFactor is applied to executorMemoryMB to derive the
// overhead unless the caller supplies its own factor.
const DefaultOverheadFactor = 0.10

// Spec is the immutable resource capability a single executor requests from
// the resource manager. Every ContainerRequest the allocator submits, and
// every granted container it matches against, uses this spec verbatim.
type Spec struct {
	MemoryMB int
	Cores    int
}

// New computes a Spec from the raw configuration values. overheadFactor of
// 0 selects DefaultOverheadFactor.
func New(executorMemoryMB, memoryOverheadMB, extraInterpreterWorkerMemoryMB, cores int, overheadFactor float64) Spec {
	overhead := memoryOverheadMB
	if overhead <= 0 {
		factor := overheadFactor
		if factor <= 0 {
			factor = DefaultOverheadFactor
		}
		computed := int(math.Ceil(float64(executorMemoryMB) * factor))
		overhead = computed
		if overhead < MinOverheadMB {
			overhead = MinOverheadMB
		}
	}

	return Spec{
		MemoryMB: executorMemoryMB + overhead + extraInterpreterWorkerMemoryMB,
		Cores:    cores,
	}
}

// Matches reports whether a granted container satisfies this spec under the
// allocator's relaxed resource key: memory must be at least what was
// requested; vcores are not compared here because the allocator always
// substitutes its own requested vcore count when matching (§4.6.4), to
// compensate for resource managers that report vcores they did not honor.
func (s Spec) Matches(grantedMemoryMB int) bool {
	return grantedMemoryMB >= s.MemoryMB
}
