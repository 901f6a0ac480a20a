package resourcespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppliesOverheadFloor(t *testing.T) {
	tests := []struct {
		name           string
		executorMemory int
		overheadMB     int
		extra          int
		cores          int
		factor         float64
		wantMemoryMB   int
	}{
		{
			name:           "small executor gets the floor, not the percentage",
			executorMemory: 1024,
			cores:          2,
			wantMemoryMB:   1024 + MinOverheadMB,
		},
		{
			name:           "large executor gets the percentage, which exceeds the floor",
			executorMemory: 10240,
			cores:          4,
			wantMemoryMB:   10240 + 1024, // ceil(10240*0.10) = 1024
		},
		{
			name:           "explicit overhead overrides the computed value",
			executorMemory: 1024,
			overheadMB:     512,
			cores:          1,
			wantMemoryMB:   1024 + 512,
		},
		{
			name:           "interpreter worker memory is additive",
			executorMemory: 2048,
			extra:          256,
			cores:          1,
			wantMemoryMB:   2048 + MinOverheadMB + 256,
		},
		{
			name:           "custom overhead factor is honored",
			executorMemory: 4000,
			cores:          1,
			factor:         0.20,
			wantMemoryMB:   4000 + 800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := New(tt.executorMemory, tt.overheadMB, tt.extra, tt.cores, tt.factor)
			assert.Equal(t, tt.wantMemoryMB, spec.MemoryMB)
			assert.Equal(t, tt.cores, spec.Cores)
		})
	}
}

func TestSpecMatches(t *testing.T) {
	spec := New(1024, 0, 0, 1, 0)
	assert.True(t, spec.Matches(spec.MemoryMB))
	assert.True(t, spec.Matches(spec.MemoryMB+1))
	assert.False(t, spec.Matches(spec.MemoryMB-1))
}
