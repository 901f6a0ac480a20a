package rmclient

import (
	"testing"

	"github.com/cuemby/nimbus-allocator/pkg/resourcespec"
	"github.com/cuemby/nimbus-allocator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedResourceManagerGrantsPendingRequests(t *testing.T) {
	store := NewFakeRequestStore()
	rm := NewSimulatedResourceManager(store, 1, 1.0, 0.0)

	spec := resourcespec.New(512, 0, 0, 1, 0)
	require.NoError(t, store.AddContainerRequest(&Request{Spec: spec, Priority: 1}, ""))

	rm.Tick()

	resp, err := store.Allocate(0.1)
	require.NoError(t, err)
	assert.Len(t, resp.Allocated, 1)
	assert.Equal(t, spec.MemoryMB, resp.Allocated[0].MemoryMB)
}

func TestSimulatedResourceManagerCompletesGrantedContainers(t *testing.T) {
	store := NewFakeRequestStore()
	rm := NewSimulatedResourceManager(store, 1, 1.0, 1.0)

	spec := resourcespec.New(512, 0, 0, 1, 0)
	require.NoError(t, store.AddContainerRequest(&Request{Spec: spec, Priority: 1}, ""))

	rm.Tick()
	_, err := store.Allocate(0.1)
	require.NoError(t, err)

	rm.Tick()
	resp, err := store.Allocate(0.1)
	require.NoError(t, err)
	assert.Len(t, resp.Completed, 1)
	assert.Equal(t, types.ExitSuccess, resp.Completed[0].ExitStatus)
}

func TestSimulatedResourceManagerNeverGrantsAtZeroRate(t *testing.T) {
	store := NewFakeRequestStore()
	rm := NewSimulatedResourceManager(store, 1, 0.0, 0.0)

	spec := resourcespec.New(512, 0, 0, 1, 0)
	require.NoError(t, store.AddContainerRequest(&Request{Spec: spec, Priority: 1}, ""))

	rm.Tick()
	resp, err := store.Allocate(0.1)
	require.NoError(t, err)
	assert.Empty(t, resp.Allocated)
}
