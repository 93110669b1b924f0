package portmask

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse(t *testing.T) {
	m, err := Parse("0x5")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2}, slices.Collect(m.Iter()))
	assert.Equal(t, 2, m.Len())

	m, err = Parse("ff")
	require.NoError(t, err)
	assert.Equal(t, PortMask(0xff), m)
	assert.Equal(t, "0xff", m.String())
}

func Test_ParseInvalid(t *testing.T) {
	for _, in := range []string{"", "0x", "zz", "1ffffffffffffffff"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func Test_ContainsEnable(t *testing.T) {
	m := PortMask(0)
	assert.True(t, m.IsEmpty())

	m.Enable(3)
	m.Enable(63)
	assert.True(t, m.Contains(3))
	assert.True(t, m.Contains(63))
	assert.False(t, m.Contains(4))
	assert.False(t, m.Contains(64))

	assert.Panics(t, func() { NewWithOneBitSet(64) })
}
