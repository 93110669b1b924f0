package portmask

import (
	"fmt"
	"iter"
	"math/bits"
	"strconv"
	"strings"

	"github.com/yanet-platform/kniagent/common/go/bitset"
)

// MaxPorts is the number of ports a PortMask can describe.
const MaxPorts = 64

// PortMask is a bit mask of physical ports, bit N enables port N.
type PortMask uint64

// Parse parses a hexadecimal port mask, with or without the "0x" prefix.
func Parse(s string) (PortMask, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return 0, fmt.Errorf("empty port mask")
	}

	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid port mask %q: %w", s, err)
	}

	return PortMask(v), nil
}

// NewWithOneBitSet returns a new port mask with a single port enabled.
//
// Panics if the idx >= 64.
func NewWithOneBitSet(idx uint32) PortMask {
	if idx >= MaxPorts {
		panic("index is out of range")
	}

	return PortMask(1) << idx
}

func (m PortMask) IsEmpty() bool {
	return m == 0
}

func (m PortMask) Len() int {
	return bits.OnesCount64(uint64(m))
}

// Contains reports whether the given port is enabled.
func (m PortMask) Contains(port uint32) bool {
	return port < MaxPorts && m&(1<<port) != 0
}

// Iter returns enabled ports in ascending order.
func (m PortMask) Iter() iter.Seq[uint32] {
	return bitset.NewBitsTraverser(uint64(m)).Iter()
}

func (m *PortMask) Enable(port uint32) {
	*m |= NewWithOneBitSet(port)
}

func (m PortMask) String() string {
	return fmt.Sprintf("0x%x", uint64(m))
}
