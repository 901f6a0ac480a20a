package launcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/nimbus-allocator/pkg/resourcespec"
	"github.com/cuemby/nimbus-allocator/pkg/types"
)

func TestNewDefaultsScratchRoot(t *testing.T) {
	l, err := New(Config{Image: "docker.io/library/alpine:latest"})
	if err != nil {
		t.Skipf("containerd not available: %v", err)
	}
	defer l.Close()
	assert.Equal(t, DefaultScratchRoot, l.scratchRoot)
}

func TestNewHonorsCustomScratchRoot(t *testing.T) {
	l, err := New(Config{Image: "docker.io/library/alpine:latest", ScratchRoot: "/tmp/nimbus-scratch"})
	if err != nil {
		t.Skipf("containerd not available: %v", err)
	}
	defer l.Close()
	assert.Equal(t, "/tmp/nimbus-scratch", l.scratchRoot)
}

// TestContainerdLauncherBasicWorkflow launches a real container via
// containerd. It is skipped in environments without a reachable containerd
// socket, matching the teacher's integration test convention.
func TestContainerdLauncherBasicWorkflow(t *testing.T) {
	l, err := New(Config{Image: "docker.io/library/alpine:latest"})
	if err != nil {
		t.Skipf("containerd not available: %v", err)
	}
	defer l.Close()

	c := &types.Container{ID: "nimbus-launcher-test", Host: "localhost", MemoryMB: 256, Cores: 1}
	spec := resourcespec.New(128, 128, 0, 1, 0)

	if err := l.Launch(context.Background(), c, spec, "1"); err != nil {
		t.Fatalf("launch failed: %v", err)
	}
}
