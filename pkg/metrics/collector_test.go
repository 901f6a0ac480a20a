package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func readGauge(g prometheus.Gauge) float64 {
	return testutil.ToFloat64(g)
}

type fakeSource struct {
	running, failed, pending, released int
	blacklisted                        bool
}

func (f fakeSource) NumExecutorsRunning() int          { return f.running }
func (f fakeSource) NumExecutorsFailed() int           { return f.failed }
func (f fakeSource) NumContainersPendingAllocate() int { return f.pending }
func (f fakeSource) NumReleasedContainers() int        { return f.released }
func (f fakeSource) IsAllNodeBlacklisted() bool        { return f.blacklisted }

func TestCollectorStartSamplesImmediately(t *testing.T) {
	src := fakeSource{running: 3, failed: 1, pending: 2, released: 4, blacklisted: true}
	c := NewCollector(src, time.Hour)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return readGauge(ExecutorsRunning) == 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, float64(3), readGauge(ExecutorsRunning))
	assert.Equal(t, float64(1), readGauge(ExecutorsFailedTotal))
	assert.Equal(t, float64(2), readGauge(ContainersPending))
	assert.Equal(t, float64(4), readGauge(ContainersReleased))
	assert.Equal(t, float64(1), readGauge(NodesBlacklisted))
}

func TestCollectorStopAfterStartDoesNotPanic(t *testing.T) {
	c := NewCollector(fakeSource{}, time.Millisecond)
	c.Start()
	c.Stop()
	assert.NotPanics(t, func() { time.Sleep(5 * time.Millisecond) })
}
