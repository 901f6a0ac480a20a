// Package driver defines the allocator's outbound/inbound RPC boundary to
// the application driver (spec.md §6). The real transport to a remote
// driver process is an external collaborator; this package defines the
// contract plus an in-process implementation for the embedded/simulated
// deployment mode, mirroring the teacher's embedded worker pattern where a
// worker and manager share a process and skip the network hop entirely.
package driver

import (
	"context"
	"errors"

	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// ErrUnknownExecutor is a failure payload for a loss-reason reply about an
// executor id that is not known. pkg/allocator does not use it: it fails
// such replies with its own allocator.ErrUnknownExecutor() error.
var ErrUnknownExecutor = errors.New("driver: unknown executor")

// Client is the allocator's outbound view of the driver.
type Client interface {
	// RetrieveLastAllocatedExecutorID is called once at allocator
	// construction so executor ids survive an AM restart without
	// colliding with ids the driver already knows about.
	RetrieveLastAllocatedExecutorID(ctx context.Context) (int, error)
	// RemoveExecutor is fire-and-forget: the driver is informed an
	// executor is gone and why.
	RemoveExecutor(ctx context.Context, id types.ExecutorID, reason types.ExitReason)
}

// LossReasonReply is the inbound handle for one enqueueGetLossReason call;
// exactly one of Reply or Fail is invoked, exactly once.
type LossReasonReply interface {
	Reply(reason types.ExitReason)
	Fail(err error)
}

// Local is an in-process Client/driver-observer pair for embedded or
// simulated deployments, where the driver and the allocator run in the
// same process and there is no network boundary to cross.
type Local struct {
	initialExecutorID int
	removed            []removedRecord
}

type removedRecord struct {
	ID     types.ExecutorID
	Reason types.ExitReason
}

// NewLocal creates a Local driver client that reports initialExecutorID as
// the last allocated id (0 for a fresh application run).
func NewLocal(initialExecutorID int) *Local {
	return &Local{initialExecutorID: initialExecutorID}
}

func (l *Local) RetrieveLastAllocatedExecutorID(ctx context.Context) (int, error) {
	return l.initialExecutorID, nil
}

func (l *Local) RemoveExecutor(ctx context.Context, id types.ExecutorID, reason types.ExitReason) {
	l.removed = append(l.removed, removedRecord{ID: id, Reason: reason})
}

// Removed returns every executor reported removed so far, for test
// assertions and for the CLI simulate mode's summary output.
func (l *Local) Removed() []types.ExecutorID {
	ids := make([]types.ExecutorID, len(l.removed))
	for i, r := range l.removed {
		ids[i] = r.ID
	}
	return ids
}

// LastRemovedReason returns the ExitReason most recently reported for an
// executor id, used by tests.
func (l *Local) LastRemovedReason(id types.ExecutorID) (types.ExitReason, bool) {
	for i := len(l.removed) - 1; i >= 0; i-- {
		if l.removed[i].ID == id {
			return l.removed[i].Reason, true
		}
	}
	return types.ExitReason{}, false
}

var _ Client = (*Local)(nil)

// reply is a simple channel-backed LossReasonReply: the sender calls Reply
// or Fail exactly once, the receiver reads the single result off the
// channel NewReply returns. Used both by allocator tests and by any caller that
// wants a synchronous round trip through enqueueGetLossReason.
type reply struct {
	ch chan Result
}

// Result is the outcome of one loss-reason query.
type Result struct {
	Reason types.ExitReason
	Err    error
}

// NewReply creates a LossReasonReply paired with a channel carrying its
// eventual result.
func NewReply() (LossReasonReply, <-chan Result) {
	r := &reply{ch: make(chan Result, 1)}
	return r, r.ch
}

func (r *reply) Reply(reason types.ExitReason) { r.ch <- Result{Reason: reason} }
func (r *reply) Fail(err error)                { r.ch <- Result{Err: err} }
