package switcher

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/packet"
	"github.com/stella/l2switch/pkg/transport"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustMAC(t *testing.T, s string) address.MAC {
	t.Helper()
	mac, err := address.NewMACFromString(s)
	require.NoError(t, err)
	return mac
}

func access(t *testing.T, index int, name string, vlan int) Port {
	t.Helper()
	p, err := NewAccessPort(index, name, vlan)
	require.NoError(t, err)
	return p
}

// ethFrame builds an untagged IPv4 frame with a zero payload
func ethFrame(dst, src address.MAC, payload int) []byte {
	frame := make([]byte, 0, packet.HeaderLength+payload)
	frame = append(frame, dst[:]...)
	frame = append(frame, src[:]...)
	frame = append(frame, 0x08, 0x00)
	return append(frame, make([]byte, payload)...)
}

func bpduFrame(sender uint64, cost uint32, root uint64) []byte {
	return packet.Bpdu{
		SenderBridgeID: address.BridgeID(sender),
		SenderPathCost: cost,
		RootBridgeID:   address.BridgeID(root),
	}.Marshal()
}

// newTestSwitch builds a switch over an unconnected memory transport whose
// outboxes record everything the switch sends
func newTestSwitch(t *testing.T, name string, bridgeID uint64, ports []Port) (*Switcher, *transport.MemoryTransport) {
	t.Helper()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	tr := transport.NewMemoryTransport(names...)
	s, err := NewSwitcher(name, address.BridgeID(bridgeID), ports, tr, WithLogger(quietLog()))
	require.NoError(t, err)
	return s, tr
}
