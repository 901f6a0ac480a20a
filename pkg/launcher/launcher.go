// Package launcher starts worker processes for granted containers via
// containerd: pull the executor image, create a container scoped to the
// granted resourcespec.Spec, and start its task. It is the allocator's
// concrete Launcher implementation for real (non-embedded) deployments.
package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"

	"github.com/cuemby/nimbus-allocator/pkg/log"
	"github.com/cuemby/nimbus-allocator/pkg/resourcespec"
	"github.com/cuemby/nimbus-allocator/pkg/types"
)

// DefaultNamespace is the containerd namespace executor containers run
// under.
const DefaultNamespace = "nimbus-allocator"

// DefaultSocketPath is the default containerd socket path.
const DefaultSocketPath = "/run/containerd/containerd.sock"

// DefaultScratchRoot is where per-executor scratch directories are created
// when Config.ScratchRoot is empty.
const DefaultScratchRoot = "/var/lib/nimbus-allocator/scratch"

// ContainerdLauncher launches executor processes as containerd containers.
type ContainerdLauncher struct {
	client      *containerd.Client
	namespace   string
	image       string
	env         []string
	scratchRoot string
	logger      zerolog.Logger
}

// Config bundles ContainerdLauncher construction parameters.
type Config struct {
	SocketPath  string
	Namespace   string
	Image       string
	Env         []string
	ScratchRoot string
}

// New connects to containerd and returns a launcher that creates executor
// containers from cfg.Image.
func New(cfg Config) (*ContainerdLauncher, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", socketPath, err)
	}

	scratchRoot := cfg.ScratchRoot
	if scratchRoot == "" {
		scratchRoot = DefaultScratchRoot
	}

	return &ContainerdLauncher{
		client:      client,
		namespace:   namespace,
		image:       cfg.Image,
		env:         cfg.Env,
		scratchRoot: scratchRoot,
		logger:      log.WithComponent("launcher"),
	}, nil
}

// Close releases the underlying containerd client connection.
func (l *ContainerdLauncher) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Launch pulls the executor image if needed, creates a container scoped to
// spec's memory and core limits, and starts its task. It blocks until the
// task has been started, not until the executor exits; the allocator learns
// of exit via the resource manager's completion report, not this call.
func (l *ContainerdLauncher) Launch(ctx context.Context, c *types.Container, spec resourcespec.Spec, execID types.ExecutorID) error {
	ctx = namespaces.WithNamespace(ctx, l.namespace)

	image, err := l.client.GetImage(ctx, l.image)
	if err != nil {
		image, err = l.client.Pull(ctx, l.image, containerd.WithPullUnpack)
		if err != nil {
			return fmt.Errorf("pull image %s: %w", l.image, err)
		}
	}

	env := append([]string{
		fmt.Sprintf("EXECUTOR_ID=%s", execID),
		fmt.Sprintf("EXECUTOR_CORES=%d", spec.Cores),
		fmt.Sprintf("EXECUTOR_MEMORY_MB=%d", spec.MemoryMB),
	}, l.env...)

	containerID := string(c.ID)
	scratchDir := filepath.Join(l.scratchRoot, containerID)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return fmt.Errorf("create scratch dir %s: %w", scratchDir, err)
	}
	scratchMount := specs.Mount{
		Source:      scratchDir,
		Destination: "/scratch",
		Type:        "bind",
		Options:     []string{"rbind"},
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
		oci.WithCPUShares(uint64(spec.Cores) * 1024),
		oci.WithCPUCFS(int64(spec.Cores)*100000, 100000),
		oci.WithMemoryLimit(uint64(spec.MemoryMB) * 1024 * 1024),
		oci.WithMounts([]specs.Mount{scratchMount}),
	}

	ctrdContainer, err := l.client.NewContainer(
		ctx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return fmt.Errorf("create container %s: %w", containerID, err)
	}

	task, err := ctrdContainer.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("create task for container %s: %w", containerID, err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("start task for container %s: %w", containerID, err)
	}

	l.logger.Info().
		Str("container_id", containerID).
		Str("executor_id", string(execID)).
		Str("host", string(c.Host)).
		Msg("executor launched")

	return nil
}
