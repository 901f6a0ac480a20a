package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allocator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
executor:
  memoryMB: 2048
  cores: 2
  initialCount: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxThreads, cfg.Launcher.MaxThreads)
	assert.Equal(t, DefaultFailureThreshold, cfg.Blacklist.FailureThreshold)
	assert.Equal(t, int64(DefaultFailureWindowSeconds), cfg.Blacklist.FailureWindowSeconds)
	assert.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
executor:
  memoryMB: 4096
  memoryOverheadMB: 512
  interpreterWorkerMemoryMB: 256
  cores: 4
  nodeLabelExpression: "gpu"
  initialCount: 10
launcher:
  maxThreads: 32
blacklist:
  failureThreshold: 5
  failureWindowSeconds: 1800
dataDir: /var/lib/nimbus
metricsAddr: "0.0.0.0:9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Executor.MemoryMB)
	assert.Equal(t, 512, cfg.Executor.MemoryOverheadMB)
	assert.Equal(t, 256, cfg.Executor.InterpreterWorkerMemoryMB)
	assert.Equal(t, 4, cfg.Executor.Cores)
	assert.Equal(t, "gpu", cfg.Executor.NodeLabelExpression)
	assert.Equal(t, 10, cfg.Executor.InitialCount)
	assert.Equal(t, 32, cfg.Launcher.MaxThreads)
	assert.Equal(t, 5, cfg.Blacklist.FailureThreshold)
	assert.Equal(t, int64(1800), cfg.Blacklist.FailureWindowSeconds)
	assert.Equal(t, "/var/lib/nimbus", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9100", cfg.MetricsAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidMemory(t *testing.T) {
	path := writeConfig(t, `
executor:
  memoryMB: 0
  cores: 1
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "memoryMB")
}

func TestLoadRejectsInvalidCores(t *testing.T) {
	path := writeConfig(t, `
executor:
  memoryMB: 1024
  cores: 0
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "cores")
}

func TestLoadRejectsNegativeInitialCount(t *testing.T) {
	path := writeConfig(t, `
executor:
  memoryMB: 1024
  cores: 1
  initialCount: -1
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "initialCount")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "executor: [this is not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}
