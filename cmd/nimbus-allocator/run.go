package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/nimbus-allocator/pkg/allocator"
	"github.com/cuemby/nimbus-allocator/pkg/config"
	"github.com/cuemby/nimbus-allocator/pkg/driver"
	"github.com/cuemby/nimbus-allocator/pkg/launcher"
	"github.com/cuemby/nimbus-allocator/pkg/log"
	"github.com/cuemby/nimbus-allocator/pkg/metrics"
	"github.com/cuemby/nimbus-allocator/pkg/rackresolver"
	"github.com/cuemby/nimbus-allocator/pkg/resourcespec"
	"github.com/cuemby/nimbus-allocator/pkg/rmclient"
	"github.com/cuemby/nimbus-allocator/pkg/state"
	"github.com/cuemby/nimbus-allocator/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the executor allocator",
	Long: `Start the allocator's reconciliation loop: negotiate containers
from the resource manager, launch executors, and report completions to
the driver, until interrupted.`,
	RunE: runAllocator,
}

func init() {
	runCmd.Flags().String("config", "/etc/nimbus-allocator/config.yaml", "Path to the allocator config file")
	runCmd.Flags().Bool("simulate", false, "Run against an in-memory resource manager instead of a real RM backend")
	runCmd.Flags().Duration("reconcile-interval", 5*time.Second, "Interval between allocate heartbeats")
}

func runAllocator(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	simulate, _ := cmd.Flags().GetBool("simulate")
	interval, _ := cmd.Flags().GetDuration("reconcile-interval")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	spec := resourcespec.New(
		cfg.Executor.MemoryMB,
		cfg.Executor.MemoryOverheadMB,
		cfg.Executor.InterpreterWorkerMemoryMB,
		cfg.Executor.Cores,
		cfg.Executor.MemoryOverheadFactor,
	)

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	store, err := state.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	restart, err := store.Load()
	if err != nil {
		return fmt.Errorf("load restart state: %w", err)
	}
	metrics.UpdateComponent("state", true, "")

	driverClient := driver.NewLocal(restart.LastExecutorIDCounter)
	initialExecID, err := driverClient.RetrieveLastAllocatedExecutorID(cmd.Context())
	if err != nil {
		return fmt.Errorf("retrieve last allocated executor id: %w", err)
	}

	// A production resource manager wire client is an external collaborator
	// (spec.md §1) with no implementation in this tree; --simulate runs the
	// full allocate/launch/complete loop against the deterministic in-memory
	// FakeRequestStore instead of a real cluster RM.
	if !simulate {
		return fmt.Errorf("a non-simulated resource manager client is not wired in this build; run with --simulate")
	}
	requestStore := rmclient.NewFakeRequestStore()
	simulatedRM := rmclient.NewSimulatedResourceManager(requestStore, 1, 0.6, 0.3)
	metrics.UpdateComponent("resourcemanager", true, "simulated")

	var launch allocator.Launcher
	containerdLauncher, err := launcher.New(launcher.Config{Image: "docker.io/library/alpine:latest"})
	if err != nil {
		log.WithComponent("cmd").Warn().Err(err).Msg("containerd unavailable, falling back to logging launcher")
		launch = &loggingLauncher{}
	} else {
		launch = containerdLauncher
		defer containerdLauncher.Close()
	}

	rack := rackresolver.Static{}
	metrics.UpdateComponent("rackresolver", true, "")

	alloc := allocator.New(
		spec,
		requestStore,
		launch,
		rack,
		driverClient,
		cfg.Launcher.MaxThreads,
		cfg.Blacklist.FailureThreshold,
		cfg.Blacklist.FailureWindowSeconds,
		initialExecID,
		cfg.Executor.NodeLabelExpression,
	)
	defer alloc.Stop()
	alloc.RestoreBlacklist(restart.BlacklistedHosts)

	collector := metrics.NewCollector(alloc, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	go serveMetrics(cfg.MetricsAddr)

	if ok := alloc.RequestTotal(cfg.Executor.InitialCount, 0, nil, nil); !ok {
		log.WithComponent("cmd").Warn().Msg("initial requestTotal returned false")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger := log.WithComponent("cmd")
	logger.Info().Str("metrics_addr", cfg.MetricsAddr).Int("initial_count", cfg.Executor.InitialCount).Msg("allocator started")

	for {
		select {
		case <-ticker.C:
			simulatedRM.Tick()
			if err := alloc.Allocate(ctx); err != nil {
				logger.Error().Err(err).Msg("allocate cycle failed")
			}
			if alloc.IsFatal() {
				logger.Error().Msg("failure threshold exceeded, shutting down")
				return saveAndExit(store, alloc)
			}
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
			return saveAndExit(store, alloc)
		}
	}
}

func saveAndExit(store *state.Store, alloc *allocator.Allocator) error {
	return store.Save(types.RestartState{
		LastExecutorIDCounter: alloc.ExecutorIDCounter(),
		BlacklistedHosts:      alloc.BlacklistSnapshot(),
	})
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadyHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithComponent("cmd").Error().Err(err).Msg("metrics server stopped")
	}
}

// loggingLauncher is the CLI's fallback launcher when containerd cannot be
// reached: it performs no real process launch, only logs and succeeds,
// standing in for an external container runtime during development and
// testing.
type loggingLauncher struct{}

func (l *loggingLauncher) Launch(ctx context.Context, c *types.Container, spec resourcespec.Spec, execID types.ExecutorID) error {
	log.WithComponent("cmd").Info().
		Str("container_id", string(c.ID)).
		Str("executor_id", string(execID)).
		Str("host", string(c.Host)).
		Msg("simulated launch")
	return nil
}
