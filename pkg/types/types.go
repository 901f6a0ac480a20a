package types

import "time"

// ContainerID identifies a container granted by the resource manager.
type ContainerID string

// ExecutorID identifies a launched worker process. Rendered as a decimal
// string from a monotonically increasing integer; string order is not
// numeric order ("10" sorts before "9").
type ExecutorID string

// Host is a DNS name. Rack is a resolved rack path. AnyHost is the sentinel
// used by the RM adapter to mean "no preference" (the placement strategy
// uses an empty Host for that instead).
type (
	Host string
	Rack string
)

// AnyHost is the sentinel location meaning "off-rack, no locality
// preference". It is never a real hostname.
const AnyHost Host = "*"

// Container is a slot granted by the resource manager on a host.
type Container struct {
	ID       ContainerID
	Host     Host
	Rack     Rack
	MemoryMB int
	Cores    int
}

// ExitStatus is the resource manager's reported exit code/category for a
// completed container. Negative sentinels mirror YARN-style RM semantics.
type ExitStatus int

const (
	ExitSuccess                  ExitStatus = 0
	ExitPreempted                ExitStatus = -102
	ExitVMemExceeded             ExitStatus = -103
	ExitPMemExceeded             ExitStatus = -104
	ExitKilledByResourceManager  ExitStatus = -105
	ExitKilledByAppMaster        ExitStatus = -106
	ExitKilledAfterAppCompletion ExitStatus = -107
	ExitAborted                  ExitStatus = -100
	ExitDisksFailed              ExitStatus = -101
)

// ContainerStatus is the resource manager's completion report for a
// container returned from an Allocate call.
type ContainerStatus struct {
	ContainerID ContainerID
	ExitStatus  ExitStatus
	Diagnostics string
}

// ExitReason is the allocator's classification of why an executor exited,
// delivered to the driver either eagerly (RemoveExecutor) or on demand
// (enqueueGetLossReason).
type ExitReason struct {
	ExitStatus      ExitStatus
	ExitCausedByApp bool
	Message         string
}

// RestartState is the small durable record an allocator reloads at
// construction so executor IDs and blacklist decisions survive a process
// restart. See pkg/state.
type RestartState struct {
	LastExecutorIDCounter int
	BlacklistedHosts      []Host
	SavedAt               time.Time
}
