//go:build linux

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// rawReadTimeout bounds each blocking read so Close can stop the loops
const rawReadTimeout = 200 * time.Millisecond

// maxFrameSize covers a tagged 1500 byte payload
const maxFrameSize = 1522

// RawConfig configures a RawTransport
type RawConfig struct {
	Interfaces []string `mapstructure:"interfaces"`
	QueueSize  int      `mapstructure:"queue_size"`
}

// rawPort is one AF_PACKET socket bound to a host interface
type rawPort struct {
	fd      int
	ifindex int
}

// RawTransport attaches switch ports to host network interfaces through
// AF_PACKET sockets. It needs CAP_NET_RAW.
type RawTransport struct {
	*BaseTransport
	ports   []rawPort
	closing atomic.Bool
	wg      sync.WaitGroup
	log     logrus.FieldLogger
}

// NewRawTransport opens one promiscuous packet socket per interface
func NewRawTransport(cfg RawConfig, log logrus.FieldLogger) (*RawTransport, error) {
	if len(cfg.Interfaces) == 0 {
		return nil, NewTransportError("raw transport needs at least one interface", CodeBadConfig, nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	t := &RawTransport{
		BaseTransport: NewBaseTransport(cfg.Interfaces, cfg.QueueSize),
		log:           log,
	}

	for _, name := range cfg.Interfaces {
		p, err := openRawPort(name)
		if err != nil {
			t.closeSockets()
			return nil, err
		}
		t.ports = append(t.ports, p)
	}

	for i := range t.ports {
		t.wg.Add(1)
		go t.receiveLoop(i)
	}
	return t, nil
}

func openRawPort(name string) (rawPort, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return rawPort{}, NewTransportError(fmt.Sprintf("interface %s", name), CodeOpenFailed, err)
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return rawPort{}, NewTransportError("raw socket (needs CAP_NET_RAW)", CodeOpenFailed, err)
	}

	if err := unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return rawPort{}, NewTransportError(fmt.Sprintf("bind %s", name), CodeOpenFailed, err)
	}

	mreq := unix.PacketMreq{Ifindex: int32(iface.Index), Type: unix.PACKET_MR_PROMISC}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
		unix.Close(fd)
		return rawPort{}, NewTransportError(fmt.Sprintf("promiscuous %s", name), CodeOpenFailed, err)
	}

	tv := unix.NsecToTimeval(rawReadTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return rawPort{}, NewTransportError("set read timeout", CodeOpenFailed, err)
	}

	return rawPort{fd: fd, ifindex: iface.Index}, nil
}

// Send writes a frame to the interface
func (t *RawTransport) Send(port int, data []byte) error {
	if err := t.checkPort(port); err != nil {
		return err
	}
	if len(data) < 6 {
		return NewTransportError("frame too short", CodeSendFailed, nil)
	}

	p := t.ports[port]
	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  p.ifindex,
		Halen:    6,
	}
	copy(addr.Addr[:], data[:6])

	if err := unix.Sendto(p.fd, data, 0, &addr); err != nil {
		return NewTransportError(fmt.Sprintf("send on %s", t.PortName(port)), CodeSendFailed, err)
	}
	return nil
}

func (t *RawTransport) receiveLoop(port int) {
	defer t.wg.Done()
	p := t.ports[port]
	buf := make([]byte, maxFrameSize)

	for !t.closing.Load() {
		n, from, err := unix.Recvfrom(p.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			if t.closing.Load() {
				return
			}
			t.log.WithError(err).WithField("port", t.PortName(port)).Warn("raw read failed")
			continue
		}

		// Skip our own transmissions looped back by the kernel
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		t.deliver(port, data)
	}
}

func (t *RawTransport) closeSockets() {
	for _, p := range t.ports {
		unix.Close(p.fd)
	}
}

// Close stops the receive loops and closes the sockets
func (t *RawTransport) Close() error {
	if t.closing.Swap(true) {
		return nil
	}
	t.BaseTransport.Close()
	t.wg.Wait()
	t.closeSockets()
	return nil
}

// htons converts a 16-bit integer from host byte order to network byte order
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
