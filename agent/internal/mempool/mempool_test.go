package mempool

import (
	"errors"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewDefault(t *testing.T) {
	pool, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "mbuf_pool", pool.Name())
	assert.Equal(t, uint32(DefaultCount), pool.Count())
	assert.Equal(t, uint32(DefaultCacheSize), pool.CacheSize())
	assert.Equal(t, 2176*datasize.B, pool.ElementSize())
	assert.Equal(t, 2048*datasize.B, pool.DataRoom())
	assert.Equal(t, datasize.ByteSize(DefaultCount)*2176, pool.TotalSize())
}

func Test_NewInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"zero count", func(c *Config) { c.Count = 0 }},
		{"cache too large", func(c *Config) { c.CacheSize = MaxCacheSize + 1 }},
		{"cache over count", func(c *Config) { c.Count = 16; c.CacheSize = 32 }},
		{"element too small", func(c *Config) { c.ElementSize = Headroom }},
		{"over limit", func(c *Config) { c.Limit = datasize.MB }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			_, err := New(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrResourceInit))
		})
	}
}

func Test_NewWithinLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = datasize.GB

	_, err := New(cfg)
	require.NoError(t, err)
}
