package stats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yanet-platform/kniagent/agent/internal/topology"
)

// Collector implements prometheus.Collector, reading port counters on each
// scrape.
type Collector struct {
	registry *Registry
	table    *topology.Table

	rxPackets *prometheus.Desc
	rxDropped *prometheus.Desc
	txPackets *prometheus.Desc
	txDropped *prometheus.Desc
}

// NewCollector creates a collector over configured ports of the table.
func NewCollector(registry *Registry, table *topology.Table) *Collector {
	labels := []string{"port", "rx_core", "tx_core"}

	return &Collector{
		registry: registry,
		table:    table,

		rxPackets: prometheus.NewDesc(
			"kni_port_rx_packets_total",
			"Total packets received from the port.",
			labels, nil,
		),
		rxDropped: prometheus.NewDesc(
			"kni_port_rx_dropped_total",
			"Total received packets dropped.",
			labels, nil,
		),
		txPackets: prometheus.NewDesc(
			"kni_port_tx_packets_total",
			"Total packets transmitted to the port.",
			labels, nil,
		),
		txDropped: prometheus.NewDesc(
			"kni_port_tx_dropped_total",
			"Total packets dropped on transmit.",
			labels, nil,
		),
	}
}

func (m *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.rxPackets
	ch <- m.rxDropped
	ch <- m.txPackets
	ch <- m.txDropped
}

func (m *Collector) Collect(ch chan<- prometheus.Metric) {
	for assignment := range m.table.Ports() {
		s := m.registry.Snapshot(assignment.PortID)
		labels := []string{
			strconv.FormatUint(uint64(assignment.PortID), 10),
			strconv.FormatUint(uint64(assignment.RxCore), 10),
			strconv.FormatUint(uint64(assignment.TxCore), 10),
		}

		ch <- prometheus.MustNewConstMetric(m.rxPackets, prometheus.CounterValue, float64(s.RxPackets), labels...)
		ch <- prometheus.MustNewConstMetric(m.rxDropped, prometheus.CounterValue, float64(s.RxDrops), labels...)
		ch <- prometheus.MustNewConstMetric(m.txPackets, prometheus.CounterValue, float64(s.TxPackets), labels...)
		ch <- prometheus.MustNewConstMetric(m.txDropped, prometheus.CounterValue, float64(s.TxDrops), labels...)
	}
}
