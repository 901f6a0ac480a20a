// Package placement implements the locality-aware placement strategy:
// given how many containers are still needed and the driver's latest
// per-host pending-task hints, it returns a list of host/rack preferences
// the allocator turns into container requests.
//
// The strategy is a pure function: it has no state and makes no calls out.
// It biases toward hosts with high pending-task density, discounts hosts
// already saturated with allocated containers, and avoids re-suggesting a
// host that already has an outstanding locality-matched request.
package placement

import (
	"sort"

	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// Preference is one candidate placement: Host == "" means "any host"
// (no locality preference at all).
type Preference struct {
	Host types.Host
	Rack types.Rack
}

// Input bundles the signals the strategy needs for one call.
type Input struct {
	NumContainersNeeded        int
	NumLocalityAwareTasks      int
	HostToLocalTaskCount       map[types.Host]int
	AllocatedHostToContainerCount map[types.Host]int
	CurrentMatchedLocalityHosts  map[types.Host]bool
}

// RackResolverFunc resolves a host to its rack, used only to populate the
// Rack field on localized preferences; failures degrade to an empty rack
// rather than failing the whole call, since rack info is an optimization,
// not a requirement.
type RackResolverFunc func(types.Host) types.Rack

// Strategy computes container placement preferences.
func Strategy(in Input, resolveRack RackResolverFunc) []Preference {
	if in.NumContainersNeeded <= 0 {
		return nil
	}

	// No locality-aware tasks at all: every candidate is "any host".
	if in.NumLocalityAwareTasks <= 0 || len(in.HostToLocalTaskCount) == 0 {
		return anyHostPreferences(in.NumContainersNeeded)
	}

	type scored struct {
		host  types.Host
		score float64
	}
	candidates := make([]scored, 0, len(in.HostToLocalTaskCount))
	for host, pending := range in.HostToLocalTaskCount {
		if pending <= 0 {
			continue
		}
		if in.CurrentMatchedLocalityHosts[host] {
			continue
		}
		allocated := in.AllocatedHostToContainerCount[host]
		// Discount hosts already carrying allocated containers so density
		// spreads out instead of piling onto one host.
		score := float64(pending) / float64(1+allocated)
		candidates = append(candidates, scored{host: host, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].host < candidates[j].host // deterministic tiebreak
	})

	prefs := make([]Preference, 0, in.NumContainersNeeded)
	for _, c := range candidates {
		if len(prefs) >= in.NumContainersNeeded {
			break
		}
		var rack types.Rack
		if resolveRack != nil {
			rack = resolveRack(c.host)
		}
		prefs = append(prefs, Preference{Host: c.host, Rack: rack})
	}

	// Pad remaining slots with any-host preferences.
	for len(prefs) < in.NumContainersNeeded {
		prefs = append(prefs, Preference{})
	}

	return prefs
}

func anyHostPreferences(n int) []Preference {
	prefs := make([]Preference, n)
	return prefs
}
