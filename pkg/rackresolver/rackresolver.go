// Package rackresolver resolves hosts to rack paths. Real rack-resolution
// backends (e.g. a topology script shelling out, or a DNS-based lookup) are
// known to swallow thread/goroutine cancellation signals internally, so
// resolution for a batch must run on a worker the caller can walk away
// from while staying cancelable itself (spec.md §4.6.4, §9).
package rackresolver

import (
	"context"

	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// Resolver resolves a batch of hosts to their rack paths.
type Resolver interface {
	ResolveRacks(ctx context.Context, hosts []types.Host) (map[types.Host]types.Rack, error)
}

// ResolveFunc adapts a plain function to a Resolver.
type ResolveFunc func(types.Host) types.Rack

// Static resolves every host against a fixed lookup function. It is used
// directly as the allocator's Resolver when no real topology backend is
// configured (development / single-rack clusters), and is the function
// wrapped by the spawned-worker pattern below for any backend that does
// real I/O.
type Static struct {
	Lookup ResolveFunc
}

func (s Static) ResolveRacks(ctx context.Context, hosts []types.Host) (map[types.Host]types.Rack, error) {
	out := make(map[types.Host]types.Rack, len(hosts))
	for _, h := range hosts {
		if s.Lookup != nil {
			out[h] = s.Lookup(h)
		}
	}
	return out, nil
}

// RunInterruptible resolves a batch on a spawned goroutine and joins it,
// so that a caller blocked on the result remains cancelable via ctx even
// if the underlying Resolver ignores cancellation itself. Any error or
// panic from the resolver is recovered and returned to the caller after
// the goroutine exits, matching "any exception from rack resolution
// propagates after that worker joins" (spec.md §4.6.4).
func RunInterruptible(ctx context.Context, r Resolver, hosts []types.Host) (map[types.Host]types.Rack, error) {
	type outcome struct {
		racks map[types.Host]types.Rack
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: panicToError(p)}
			}
		}()
		racks, err := r.ResolveRacks(context.Background(), hosts)
		done <- outcome{racks: racks, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.racks, o.err
	}
}

func panicToError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return &panicError{value: p}
}

type panicError struct{ value any }

func (e *panicError) Error() string { return "rack resolver panicked" }
