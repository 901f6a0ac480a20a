// Package rmclient defines the thin facade the allocator uses to talk to
// the external cluster resource manager: add/remove container requests,
// query outstanding requests by location, heartbeat+receive via Allocate,
// and release a granted container. The real RM client library is an
// external collaborator (spec.md §1) — this package only defines the
// contract the allocator is built against, plus a deterministic in-memory
// double used by tests and the CLI's simulate mode.
package rmclient

import (
	"sync"

	"github.com/cuemby/nimbus-allocator/pkg/resourcespec"
	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// Request is one outstanding container request submitted to the RM.
// Nodes == nil means "any host" (off-rack / unlocalized).
type Request struct {
	Spec     resourcespec.Spec
	Nodes    []types.Host
	Racks    []types.Rack
	Priority int32
}

// HasNodes reports whether the request carries a node locality preference.
func (r *Request) HasNodes() bool { return len(r.Nodes) > 0 }

// AnyOf reports whether one of the request's nodes is in the given set.
func (r *Request) AnyOf(hosts map[types.Host]bool) bool {
	for _, n := range r.Nodes {
		if hosts[n] {
			return true
		}
	}
	return false
}

// MatchesLocation reports whether location names one of the request's
// preferred nodes or one of its preferred racks. GetMatchingRequests uses
// this for the rack-local pass, where location is a granted container's
// resolved rack rather than its host: a request built for host A with
// rack R must still match a container granted on host B once B also
// resolves to rack R (spec.md §4.6.4).
func (r *Request) MatchesLocation(location types.Host) bool {
	for _, n := range r.Nodes {
		if n == location {
			return true
		}
	}
	for _, rk := range r.Racks {
		if types.Host(rk) == location {
			return true
		}
	}
	return false
}

// AllocateResponse is what one Allocate heartbeat returns.
type AllocateResponse struct {
	Allocated          []*types.Container
	Completed          []*types.ContainerStatus
	AvailableResources resourcespec.Spec
	NumClusterNodes    int
}

// RequestStore is the allocator's view of the resource manager client.
type RequestStore interface {
	AddContainerRequest(req *Request, labelExpr string) error
	RemoveContainerRequest(req *Request) error
	// GetMatchingRequests returns a two-level grouping; only the first
	// element of the first inner list is consumed per match (spec.md §4.2).
	GetMatchingRequests(priority int32, location types.Host, spec resourcespec.Spec) [][]*Request
	// PendingRequests returns every outstanding request regardless of
	// locality, used by updateResourceRequests to compute how many more
	// containers are needed (spec.md §4.6.3).
	PendingRequests() []*Request
	Allocate(progress float32) (*AllocateResponse, error)
	ReleaseAssignedContainer(id types.ContainerID) error
}

// FakeRequestStore is a deterministic, in-memory RequestStore used by the
// allocator's unit/property tests and by the CLI's `run --simulate` mode.
// It is not a production RM client.
type FakeRequestStore struct {
	mu sync.Mutex

	requests        []*Request
	pendingAllocate []*types.Container
	pendingComplete []*types.ContainerStatus
	numClusterNodes int
	released        map[types.ContainerID]bool
	releaseCalls    map[types.ContainerID]int
}

// NewFakeRequestStore creates an empty fake store.
func NewFakeRequestStore() *FakeRequestStore {
	return &FakeRequestStore{
		released:     make(map[types.ContainerID]bool),
		releaseCalls: make(map[types.ContainerID]int),
	}
}

func (f *FakeRequestStore) AddContainerRequest(req *Request, labelExpr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return nil
}

func (f *FakeRequestStore) RemoveContainerRequest(req *Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.requests {
		if r == req {
			f.requests = append(f.requests[:i], f.requests[i+1:]...)
			return nil
		}
	}
	return nil // idempotent
}

// GetMatchingRequests returns every outstanding request whose location
// matches: types.AnyHost matches any-host requests, anything else matches
// requests carrying that host or rack (a rack-local pass calls this with
// a resolved rack as location, which only a request's Racks field, not
// its Nodes field, can match).
func (f *FakeRequestStore) GetMatchingRequests(priority int32, location types.Host, spec resourcespec.Spec) [][]*Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out [][]*Request
	for _, r := range f.requests {
		if location == types.AnyHost {
			if !r.HasNodes() {
				out = append(out, []*Request{r})
			}
			continue
		}
		if r.MatchesLocation(location) {
			out = append(out, []*Request{r})
		}
	}
	return out
}

// Allocate returns and clears whatever has been queued via QueueAllocation/
// QueueCompletion since the last call, simulating one RM heartbeat.
func (f *FakeRequestStore) Allocate(progress float32) (*AllocateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp := &AllocateResponse{
		Allocated:       f.pendingAllocate,
		Completed:       f.pendingComplete,
		NumClusterNodes: f.numClusterNodes,
	}
	f.pendingAllocate = nil
	f.pendingComplete = nil
	return resp, nil
}

func (f *FakeRequestStore) ReleaseAssignedContainer(id types.ContainerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[id] = true
	f.releaseCalls[id]++
	return nil
}

// ReleaseCallCount returns how many times ReleaseAssignedContainer was
// called for a given container id, for idempotence assertions in tests.
func (f *FakeRequestStore) ReleaseCallCount(id types.ContainerID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseCalls[id]
}

// QueueAllocation enqueues containers to be returned by the next Allocate.
func (f *FakeRequestStore) QueueAllocation(containers ...*types.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingAllocate = append(f.pendingAllocate, containers...)
}

// QueueCompletion enqueues container statuses to be returned by the next
// Allocate.
func (f *FakeRequestStore) QueueCompletion(statuses ...*types.ContainerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingComplete = append(f.pendingComplete, statuses...)
}

// SetNumClusterNodes controls what the next Allocate reports.
func (f *FakeRequestStore) SetNumClusterNodes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numClusterNodes = n
}

// PendingRequests returns a snapshot of the currently outstanding requests.
func (f *FakeRequestStore) PendingRequests() []*Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// WasReleased reports whether a container was released via
// ReleaseAssignedContainer, for test assertions.
func (f *FakeRequestStore) WasReleased(id types.ContainerID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[id]
}

var _ RequestStore = (*FakeRequestStore)(nil)
