package mempool

import (
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"
)

const (
	// DefaultCount is the default number of packet buffers.
	DefaultCount = 8192 * 16
	// DefaultCacheSize is the default per-core cache size.
	DefaultCacheSize = 250
	// MaxCacheSize is the largest per-core cache size.
	MaxCacheSize = 512
	// DefaultDataRoom is the default buffer data room.
	DefaultDataRoom = 2048 * datasize.B
	// Headroom is reserved in front of the packet data.
	Headroom = 128 * datasize.B
	// MinElementSize is the smallest accepted element size.
	MinElementSize = Headroom + 64*datasize.B
)

var ErrResourceInit = errors.New("packet buffer pool initialization failed")

// Config describes a packet buffer pool.
type Config struct {
	// Name identifies the pool.
	Name string `yaml:"name"`
	// Count is the number of buffers.
	Count uint32 `yaml:"count"`
	// CacheSize is the per-core cache size.
	CacheSize uint32 `yaml:"cache_size"`
	// ElementSize is the size of a single buffer, including the headroom.
	ElementSize datasize.ByteSize `yaml:"element_size"`
	// Limit caps the total pool size, zero means no limit.
	Limit datasize.ByteSize `yaml:"limit"`
}

func DefaultConfig() Config {
	return Config{
		Name:        "mbuf_pool",
		Count:       DefaultCount,
		CacheSize:   DefaultCacheSize,
		ElementSize: DefaultDataRoom + Headroom,
	}
}

// Validate checks the pool parameters.
func (m *Config) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("pool name is empty")
	}
	if m.Count == 0 {
		return fmt.Errorf("pool %q: buffer count is zero", m.Name)
	}
	if m.CacheSize > MaxCacheSize {
		return fmt.Errorf("pool %q: cache size %d exceeds %d", m.Name, m.CacheSize, MaxCacheSize)
	}
	if m.CacheSize > m.Count {
		return fmt.Errorf("pool %q: cache size %d exceeds buffer count %d", m.Name, m.CacheSize, m.Count)
	}
	if m.ElementSize < MinElementSize {
		return fmt.Errorf("pool %q: element size %s is less than %s", m.Name, m.ElementSize.HR(), MinElementSize.HR())
	}
	if m.Limit > 0 && m.TotalSize() > m.Limit {
		return fmt.Errorf("pool %q: total size %s exceeds limit %s", m.Name, m.TotalSize().HR(), m.Limit.HR())
	}
	return nil
}

// TotalSize is the memory the pool reserves.
func (m *Config) TotalSize() datasize.ByteSize {
	return datasize.ByteSize(m.Count) * m.ElementSize
}

// Pool is an opaque handle of a packet buffer pool.
//
// Buffers are handed out by the forwarding loops, the control plane only
// creates the pool and reports its geometry.
type Pool struct {
	cfg Config
}

// New creates a packet buffer pool.
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceInit, err)
	}

	return &Pool{cfg: cfg}, nil
}

func (m *Pool) Name() string {
	return m.cfg.Name
}

func (m *Pool) Count() uint32 {
	return m.cfg.Count
}

func (m *Pool) CacheSize() uint32 {
	return m.cfg.CacheSize
}

func (m *Pool) ElementSize() datasize.ByteSize {
	return m.cfg.ElementSize
}

// DataRoom is the space left for packet data in a single buffer.
func (m *Pool) DataRoom() datasize.ByteSize {
	return m.cfg.ElementSize - Headroom
}

func (m *Pool) TotalSize() datasize.ByteSize {
	return m.cfg.TotalSize()
}
