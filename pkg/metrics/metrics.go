// Package metrics implements Prometheus metrics for the switch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label of FramesDroppedTotal
const (
	DropMalformed       = "malformed"
	DropMalformedBPDU   = "malformed_bpdu"
	DropBlockingIngress = "blocking_ingress"
	DropBlockingEgress  = "blocking_egress"
	DropVlanMismatch    = "vlan_mismatch"
	DropSendError       = "send_error"
)

var (
	// FramesReceivedTotal counts frames delivered by the transport, per ingress port
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_frames_received_total",
			Help: "Total number of frames received",
		},
		[]string{"switch", "port"},
	)

	// FramesForwardedTotal counts data frames sent, per egress port
	FramesForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_frames_forwarded_total",
			Help: "Total number of data frames forwarded",
		},
		[]string{"switch", "port"},
	)

	// FramesFloodedTotal counts frames fanned out to all ports
	FramesFloodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_frames_flooded_total",
			Help: "Total number of frames flooded because the destination was unknown or multicast",
		},
		[]string{"switch"},
	)

	// FramesDroppedTotal counts frames (or per-egress copies) dropped by reason
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_frames_dropped_total",
			Help: "Total number of frames dropped",
		},
		[]string{"switch", "reason"},
	)

	// BPDUsReceivedTotal counts BPDUs handed to the STP engine
	BPDUsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_bpdus_received_total",
			Help: "Total number of BPDUs received",
		},
		[]string{"switch", "port"},
	)

	// BPDUsSentTotal counts BPDUs transmitted (hellos and re-announcements)
	BPDUsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_bpdus_sent_total",
			Help: "Total number of BPDUs sent",
		},
		[]string{"switch", "port"},
	)

	// RootChangesTotal counts adoptions of a better root bridge
	RootChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stella_switch_root_changes_total",
			Help: "Total number of root bridge changes",
		},
		[]string{"switch"},
	)

	// MACTableEntries tracks the size of the learning table
	MACTableEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stella_switch_mac_table_entries",
			Help: "Number of learned MAC addresses",
		},
		[]string{"switch"},
	)

	// PortListening is 1 when a port forwards, 0 when it blocks
	PortListening = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stella_switch_port_listening",
			Help: "STP state of a port (1=listening, 0=blocking)",
		},
		[]string{"switch", "port"},
	)

	// IsRoot is 1 while the switch believes itself to be the root bridge
	IsRoot = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stella_switch_is_root",
			Help: "Whether this switch is the spanning-tree root (1=root)",
		},
		[]string{"switch"},
	)
)

// BoolGauge converts a flag to a gauge value
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
