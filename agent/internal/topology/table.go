package topology

import (
	"fmt"
	"io"
	"iter"

	"github.com/yanet-platform/kniagent/common/go/bitset"
	"github.com/yanet-platform/kniagent/common/go/portmask"
)

const (
	// DefaultMaxPorts is the default number of port slots.
	DefaultMaxPorts = 32
	// DefaultMaxCores is the default upper bound for core ids.
	DefaultMaxCores = 128
	// MaxKernelThreads is the maximum number of kernel-bridge threads per
	// port. Extra cores in a group are ignored.
	MaxKernelThreads = 32
	// MaxGroupLen is the size of the staging buffer for a group interior,
	// including the terminator, so the interior must be shorter.
	MaxGroupLen = 256
)

// Limits are platform bounds the configuration is validated against.
type Limits struct {
	// MaxPorts is the number of port slots in the table.
	MaxPorts uint32 `yaml:"max_ports"`
	// MaxCores is the core count bound.
	MaxCores uint32 `yaml:"max_cores"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxPorts: DefaultMaxPorts,
		MaxCores: DefaultMaxCores,
	}
}

// Validate checks the limits themselves.
func (m Limits) Validate() error {
	if m.MaxPorts == 0 || m.MaxPorts > portmask.MaxPorts {
		return fmt.Errorf("max_ports must be in [1, %d], got %d", portmask.MaxPorts, m.MaxPorts)
	}
	if m.MaxCores == 0 || m.MaxCores > bitset.MaxBits {
		return fmt.Errorf("max_cores must be in [1, %d], got %d", bitset.MaxBits, m.MaxCores)
	}
	return nil
}

// PortAssignment binds a physical port to its worker cores.
type PortAssignment struct {
	PortID uint32
	RxCore uint32
	TxCore uint32
	// KThreadCores hosts kernel-bridge threads; the position is the
	// kernel-thread index.
	KThreadCores []uint32
}

// Cores returns every core the assignment uses: rx, tx, then kernel threads.
func (m *PortAssignment) Cores() []uint32 {
	out := make([]uint32, 0, 2+len(m.KThreadCores))
	out = append(out, m.RxCore, m.TxCore)
	return append(out, m.KThreadCores...)
}

// Table maps port ids to their assignments.
//
// It is filled once by Parse and must be frozen before being shared with
// workers, after that it is read-only and safe for concurrent use.
type Table struct {
	limits Limits
	slots  []*PortAssignment
	count  int
	frozen bool
}

// NewTable creates an empty table with one slot per possible port.
func NewTable(limits Limits) *Table {
	return &Table{
		limits: limits,
		slots:  make([]*PortAssignment, limits.MaxPorts),
	}
}

// Parse creates a table using the given limits and fills it from the
// configuration string.
func Parse(s string, limits Limits) (*Table, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	table := NewTable(limits)
	if err := table.Parse(s); err != nil {
		return nil, err
	}

	return table, nil
}

func (m *Table) Limits() Limits {
	return m.limits
}

// Len returns the number of configured ports.
func (m *Table) Len() int {
	return m.count
}

// Get returns the assignment of the given port.
func (m *Table) Get(port uint32) (*PortAssignment, bool) {
	if port >= uint32(len(m.slots)) || m.slots[port] == nil {
		return nil, false
	}

	return m.slots[port], true
}

// Ports iterates over configured ports in ascending order.
func (m *Table) Ports() iter.Seq[*PortAssignment] {
	return func(yield func(*PortAssignment) bool) {
		for _, slot := range m.slots {
			if slot == nil {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// Clear releases every assignment.
func (m *Table) Clear() error {
	if m.frozen {
		return ErrTableFrozen
	}

	m.clear()
	return nil
}

func (m *Table) clear() {
	clear(m.slots)
	m.count = 0
}

// Freeze makes the table read-only.
func (m *Table) Freeze() {
	m.frozen = true
}

func (m *Table) IsFrozen() bool {
	return m.frozen
}

// Validate cross-checks the table against the port mask and the set of
// enabled cores.
//
// Every port in a non-empty mask must be configured, and all of its cores
// must be enabled. An empty mask disables the check.
func (m *Table) Validate(mask portmask.PortMask, enabled *bitset.TinyBitset) error {
	for port := range mask.Iter() {
		if port >= m.limits.MaxPorts {
			return fmt.Errorf("port %d in mask %s: %w", port, mask, ErrPortOutOfRange)
		}

		assignment, ok := m.Get(port)
		if !ok {
			return fmt.Errorf("port %d: %w", port, ErrPortNotConfigured)
		}
		if enabled == nil {
			continue
		}

		for _, core := range assignment.Cores() {
			if !enabled.Contains(core) {
				return fmt.Errorf("port %d: core %d: %w", port, core, ErrCoreNotEnabled)
			}
		}
	}

	return nil
}

// Unmasked returns configured ports which are not enabled in a non-empty
// mask.
func (m *Table) Unmasked(mask portmask.PortMask) []uint32 {
	out := []uint32{}
	if mask.IsEmpty() {
		return out
	}

	for assignment := range m.Ports() {
		if !mask.Contains(assignment.PortID) {
			out = append(out, assignment.PortID)
		}
	}

	return out
}

// Dump writes a human-readable representation of the table.
func (m *Table) Dump(w io.Writer) error {
	for assignment := range m.Ports() {
		_, err := fmt.Fprintf(w,
			"Port ID: %d\n  Rx lcore ID: %d, Tx lcore ID: %d\n",
			assignment.PortID,
			assignment.RxCore,
			assignment.TxCore,
		)
		if err != nil {
			return err
		}

		for _, core := range assignment.KThreadCores {
			if _, err := fmt.Fprintf(w, "  Kernel thread lcore ID: %d\n", core); err != nil {
				return err
			}
		}
	}

	return nil
}
