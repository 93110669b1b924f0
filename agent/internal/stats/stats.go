package stats

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/yanet-platform/kniagent/agent/internal/topology"
)

// Counters are traffic counters of a single port.
//
// Each port is updated by the workers owning it, while the telemetry path
// reads and resets concurrently, so every counter is atomic.
type Counters struct {
	rxPackets atomic.Uint64
	rxDrops   atomic.Uint64
	txPackets atomic.Uint64
	txDrops   atomic.Uint64
}

func (m *Counters) AddRx(n uint64)      { m.rxPackets.Add(n) }
func (m *Counters) AddRxDrops(n uint64) { m.rxDrops.Add(n) }
func (m *Counters) AddTx(n uint64)      { m.txPackets.Add(n) }
func (m *Counters) AddTxDrops(n uint64) { m.txDrops.Add(n) }

// Snapshot returns the current values.
func (m *Counters) Snapshot() Snapshot {
	return Snapshot{
		RxPackets: m.rxPackets.Load(),
		RxDrops:   m.rxDrops.Load(),
		TxPackets: m.txPackets.Load(),
		TxDrops:   m.txDrops.Load(),
	}
}

func (m *Counters) reset() {
	m.rxPackets.Store(0)
	m.rxDrops.Store(0)
	m.txPackets.Store(0)
	m.txDrops.Store(0)
}

// Snapshot is a point-in-time copy of port counters.
type Snapshot struct {
	RxPackets uint64
	RxDrops   uint64
	TxPackets uint64
	TxDrops   uint64
}

// Registry keeps one Counters record per port slot.
type Registry struct {
	ports []Counters
}

// NewRegistry creates a registry with the given number of port slots.
func NewRegistry(numPorts uint32) *Registry {
	return &Registry{
		ports: make([]Counters, numPorts),
	}
}

// Len returns the number of port slots.
func (m *Registry) Len() int {
	return len(m.ports)
}

// Port returns counters of the given port, or nil if it is out of range.
func (m *Registry) Port(port uint32) *Counters {
	if port >= uint32(len(m.ports)) {
		return nil
	}

	return &m.ports[port]
}

// Snapshot returns counters of the given port, zero for out of range ports.
func (m *Registry) Snapshot(port uint32) Snapshot {
	counters := m.Port(port)
	if counters == nil {
		return Snapshot{}
	}

	return counters.Snapshot()
}

// Reset zeroes every counter.
func (m *Registry) Reset() {
	for idx := range m.ports {
		m.ports[idx].reset()
	}
}

const (
	tableTitle  = "\n**KNI example application statistics**\n"
	tableBorder = "======  ==============  ============  ============  ============  ============\n"
	tableHeader = " Port    Lcore(RX/TX)    rx_packets    rx_dropped    tx_packets    tx_dropped\n"
	tableRule   = "------  --------------  ------------  ------------  ------------  ------------\n"
)

// Print writes counters of every port configured in the table.
func (m *Registry) Print(w io.Writer, table *topology.Table) error {
	if _, err := io.WriteString(w, tableTitle+tableBorder+tableHeader+tableRule); err != nil {
		return err
	}

	for assignment := range table.Ports() {
		s := m.Snapshot(assignment.PortID)

		_, err := fmt.Fprintf(w, "%7d %10d/%2d %13d %13d %13d %13d\n",
			assignment.PortID,
			assignment.RxCore,
			assignment.TxCore,
			s.RxPackets,
			s.RxDrops,
			s.TxPackets,
			s.TxDrops,
		)
		if err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, tableBorder)
	return err
}
