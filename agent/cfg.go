package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yanet-platform/kniagent/agent/internal/mempool"
	"github.com/yanet-platform/kniagent/agent/internal/signals"
	"github.com/yanet-platform/kniagent/agent/internal/topology"
	"github.com/yanet-platform/kniagent/common/go/logging"
)

type Config config
type config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// Limits are the platform bounds the port topology is checked against.
	Limits topology.Limits `yaml:"limits"`
	// Mempool is the packet buffer pool created after workers are joined.
	Mempool mempool.Config `yaml:"mempool"`
	// PollInterval is the initial interval of the shutdown flag polling.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PollMaxInterval caps the polling interval.
	PollMaxInterval time.Duration `yaml:"poll_max_interval"`
	// MetricsAddr is the address of the Prometheus endpoint, disabled when
	// empty.
	MetricsAddr string `yaml:"metrics_addr"`
	// PinWorkers binds every worker thread to its core.
	PinWorkers bool `yaml:"pin_workers"`
	// EventBuffer is the capacity of the control event queue.
	EventBuffer int `yaml:"event_buffer"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging:         logging.DefaultConfig(),
		Limits:          topology.DefaultLimits(),
		Mempool:         mempool.DefaultConfig(),
		PollInterval:    10 * time.Millisecond,
		PollMaxInterval: 500 * time.Millisecond,
		EventBuffer:     signals.DefaultBufferSize,
	}
}

// LoadConfig loads the configuration from the given path.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}

	return cfg, nil
}

// UnmarshalYAML serves as a proxy for validation.
//
// The private config type has no unmarshal method, so decoding into it
// does not recurse.
func (m *Config) UnmarshalYAML(value *yaml.Node) error {
	if err := value.Decode((*config)(m)); err != nil {
		return err
	}
	return m.Validate()
}

// Validate validates the agent configuration.
func (m *Config) Validate() error {
	if err := m.Limits.Validate(); err != nil {
		return fmt.Errorf("invalid limits: %w", err)
	}
	if err := m.Mempool.Validate(); err != nil {
		return fmt.Errorf("invalid mempool: %w", err)
	}
	if m.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", m.PollInterval)
	}
	if m.PollMaxInterval < m.PollInterval {
		return fmt.Errorf("poll_max_interval %s is less than poll_interval %s", m.PollMaxInterval, m.PollInterval)
	}
	if m.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive, got %d", m.EventBuffer)
	}
	return nil
}
