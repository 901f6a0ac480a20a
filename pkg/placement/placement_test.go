package placement

import (
	"testing"

	"github.com/cuemby/nimbus-allocator/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestStrategyReturnsNilWhenNothingNeeded(t *testing.T) {
	assert.Nil(t, Strategy(Input{NumContainersNeeded: 0}, nil))
}

func TestStrategyAllAnyHostWhenNoLocalityHints(t *testing.T) {
	prefs := Strategy(Input{NumContainersNeeded: 3}, nil)
	assert.Len(t, prefs, 3)
	for _, p := range prefs {
		assert.Empty(t, p.Host)
	}
}

func TestStrategyBiasesTowardDenserHosts(t *testing.T) {
	in := Input{
		NumContainersNeeded:   1,
		NumLocalityAwareTasks: 10,
		HostToLocalTaskCount: map[types.Host]int{
			"h1": 1,
			"h2": 9,
		},
	}
	prefs := Strategy(in, nil)
	assert.Equal(t, types.Host("h2"), prefs[0].Host)
}

func TestStrategyDiscountsAlreadyAllocatedHosts(t *testing.T) {
	in := Input{
		NumContainersNeeded:   1,
		NumLocalityAwareTasks: 10,
		HostToLocalTaskCount: map[types.Host]int{
			"h1": 5,
			"h2": 5,
		},
		AllocatedHostToContainerCount: map[types.Host]int{
			"h1": 4,
		},
	}
	prefs := Strategy(in, nil)
	assert.Equal(t, types.Host("h2"), prefs[0].Host)
}

func TestStrategySkipsAlreadyMatchedHosts(t *testing.T) {
	in := Input{
		NumContainersNeeded:   1,
		NumLocalityAwareTasks: 10,
		HostToLocalTaskCount: map[types.Host]int{
			"h1": 100,
			"h2": 1,
		},
		CurrentMatchedLocalityHosts: map[types.Host]bool{"h1": true},
	}
	prefs := Strategy(in, nil)
	assert.Equal(t, types.Host("h2"), prefs[0].Host)
}

func TestStrategyPadsWithAnyHostWhenCandidatesRunOut(t *testing.T) {
	in := Input{
		NumContainersNeeded:   3,
		NumLocalityAwareTasks: 10,
		HostToLocalTaskCount: map[types.Host]int{
			"h1": 10,
		},
	}
	prefs := Strategy(in, nil)
	assert.Len(t, prefs, 3)
	assert.Equal(t, types.Host("h1"), prefs[0].Host)
	assert.Empty(t, prefs[1].Host)
	assert.Empty(t, prefs[2].Host)
}

func TestStrategyResolvesRackForLocalizedPreferences(t *testing.T) {
	in := Input{
		NumContainersNeeded:   1,
		NumLocalityAwareTasks: 10,
		HostToLocalTaskCount: map[types.Host]int{
			"h1": 10,
		},
	}
	prefs := Strategy(in, func(h types.Host) types.Rack { return types.Rack("rack-" + string(h)) })
	assert.Equal(t, types.Rack("rack-h1"), prefs[0].Rack)
}
