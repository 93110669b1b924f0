package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_DefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func Test_LoadConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
limits:
  max_ports: 8
  max_cores: 16
mempool:
  name: pool0
  count: 1024
  cache_size: 32
  element_size: 4KB
poll_max_interval: 1s
metrics_addr: "127.0.0.1:9100"
pin_workers: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Encoding)
	assert.Equal(t, uint32(8), cfg.Limits.MaxPorts)
	assert.Equal(t, uint32(16), cfg.Limits.MaxCores)
	assert.Equal(t, "pool0", cfg.Mempool.Name)
	assert.Equal(t, uint32(1024), cfg.Mempool.Count)
	assert.Equal(t, 4*datasize.KB, cfg.Mempool.ElementSize)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.PollMaxInterval)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.True(t, cfg.PinWorkers)
}

func Test_LoadConfigInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"ports":    "limits: {max_ports: 65}",
		"cores":    "limits: {max_cores: 0}",
		"cache":    "mempool: {cache_size: 513}",
		"poll":     "poll_interval: 1s\npoll_max_interval: 1ms",
		"buffer":   "event_buffer: 0",
		"syntax":   "limits: [",
		"element": "mempool: {element_size: 1B}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func Test_LoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
