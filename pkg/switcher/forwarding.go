package switcher

import (
	"github.com/sirupsen/logrus"

	"github.com/stella/l2switch/pkg/metrics"
	"github.com/stella/l2switch/pkg/packet"
)

// FrameSender transmits a frame on one port. Transmission is best effort.
type FrameSender interface {
	Send(port int, data []byte) error
}

// PortStateReader exposes the STP state of ports to the forwarder
type PortStateReader interface {
	PortState(port int) PortState
}

// Forwarder applies VLAN and STP policy to one (ingress, egress) pair
type Forwarder struct {
	switchName string
	ports      []Port
	stp        PortStateReader
	out        FrameSender
	log        logrus.FieldLogger
}

// NewForwarder creates a forwarder over the switch's port table
func NewForwarder(switchName string, ports []Port, stp PortStateReader, out FrameSender, log logrus.FieldLogger) *Forwarder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Forwarder{
		switchName: switchName,
		ports:      ports,
		stp:        stp,
		out:        out,
		log:        log,
	}
}

// Dispatch sends frame from ingress to egress if policy allows it.
// vlanID is the id decoded from the frame's tag, or packet.NoVlan.
// It returns true when the frame was handed to the transport.
func (f *Forwarder) Dispatch(ingress, egress int, frame []byte, vlanID int) bool {
	if f.stp.PortState(egress) == PortStateBlocking {
		f.drop(metrics.DropBlockingEgress)
		return false
	}

	in := f.ports[ingress]
	dst := f.ports[egress]

	var data []byte
	switch {
	case in.IsTrunk() && dst.IsTrunk():
		data = frame

	case in.IsTrunk():
		if vlanID != int(dst.AccessVlanID) {
			f.drop(metrics.DropVlanMismatch)
			return false
		}
		data = packet.RemoveVlanTag(frame)

	case dst.IsTrunk():
		data = packet.AddVlanTag(frame, in.AccessVlanID)

	default:
		if in.AccessVlanID != dst.AccessVlanID {
			f.drop(metrics.DropVlanMismatch)
			return false
		}
		data = frame
	}

	if err := f.out.Send(egress, data); err != nil {
		f.log.WithError(err).WithField("port", dst.Name).Debug("send failed")
		f.drop(metrics.DropSendError)
		return false
	}
	metrics.FramesForwardedTotal.WithLabelValues(f.switchName, dst.Name).Inc()
	return true
}

func (f *Forwarder) drop(reason string) {
	metrics.FramesDroppedTotal.WithLabelValues(f.switchName, reason).Inc()
}
