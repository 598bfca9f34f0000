package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stella/l2switch/pkg/crypto"
)

// UDPPortConfig describes one virtual cable: a local socket and the peer at the other end
type UDPPortConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Listen string `mapstructure:"listen" yaml:"listen"`
	Peer   string `mapstructure:"peer" yaml:"peer"`
}

// UDPConfig configures a UDPTransport
type UDPConfig struct {
	Ports      []UDPPortConfig `mapstructure:"ports"`
	Key        string          `mapstructure:"key"`
	BufferSize int             `mapstructure:"buffer_size"`
	QueueSize  int             `mapstructure:"queue_size"`
}

// udpPort is an open UDP cable
type udpPort struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// UDPTransport carries Ethernet frames over UDP, one socket per switch port.
// Frames are optionally sealed with a pre-shared link key.
type UDPTransport struct {
	*BaseTransport
	ports      []udpPort
	key        *crypto.LinkKey
	bufferSize int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        logrus.FieldLogger
}

// NewUDPTransport opens every configured port and starts the receive loops
func NewUDPTransport(cfg UDPConfig, log logrus.FieldLogger) (*UDPTransport, error) {
	if len(cfg.Ports) == 0 {
		return nil, NewTransportError("udp transport needs at least one port", CodeBadConfig, nil)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 2048
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	var key *crypto.LinkKey
	if cfg.Key != "" {
		k, err := crypto.ParseLinkKey(cfg.Key)
		if err != nil {
			return nil, NewTransportError("invalid udp link key", CodeBadConfig, err)
		}
		key = k
	}

	names := make([]string, len(cfg.Ports))
	for i, p := range cfg.Ports {
		names[i] = p.Name
	}

	t := &UDPTransport{
		BaseTransport: NewBaseTransport(names, cfg.QueueSize),
		ports:         make([]udpPort, 0, len(cfg.Ports)),
		key:           key,
		bufferSize:    cfg.BufferSize,
		log:           log,
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())

	for _, p := range cfg.Ports {
		up, err := openUDPPort(p)
		if err != nil {
			t.closeSockets()
			return nil, err
		}
		t.ports = append(t.ports, up)
	}

	for i := range t.ports {
		t.wg.Add(1)
		go t.receiveLoop(i)
	}

	return t, nil
}

func openUDPPort(p UDPPortConfig) (udpPort, error) {
	if p.Name == "" {
		return udpPort{}, NewTransportError("udp port without name", CodeBadConfig, nil)
	}
	laddr, err := net.ResolveUDPAddr("udp", p.Listen)
	if err != nil {
		return udpPort{}, NewTransportError(fmt.Sprintf("port %s: bad listen address", p.Name), CodeBadConfig, err)
	}
	peer, err := net.ResolveUDPAddr("udp", p.Peer)
	if err != nil {
		return udpPort{}, NewTransportError(fmt.Sprintf("port %s: bad peer address", p.Name), CodeBadConfig, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return udpPort{}, NewTransportError(fmt.Sprintf("port %s: bind %s", p.Name, p.Listen), CodeOpenFailed, err)
	}
	return udpPort{conn: conn, peer: peer}, nil
}

// LocalAddr returns the bound address of a port
func (t *UDPTransport) LocalAddr(port int) net.Addr {
	if port < 0 || port >= len(t.ports) {
		return nil
	}
	return t.ports[port].conn.LocalAddr()
}

// Send transmits a frame to the peer of the port
func (t *UDPTransport) Send(port int, data []byte) error {
	if err := t.checkPort(port); err != nil {
		return err
	}

	payload := data
	if t.key != nil {
		sealed, err := crypto.Seal(t.key, data)
		if err != nil {
			return NewTransportError("seal failed", CodeSendFailed, err)
		}
		payload = sealed
	}

	p := t.ports[port]
	if _, err := p.conn.WriteToUDP(payload, p.peer); err != nil {
		return NewTransportError(fmt.Sprintf("send on %s", t.PortName(port)), CodeSendFailed, err)
	}
	return nil
}

// receiveLoop handles incoming datagrams of one port
func (t *UDPTransport) receiveLoop(port int) {
	defer t.wg.Done()
	p := t.ports[port]
	buffer := make([]byte, t.bufferSize)

	for {
		n, addr, err := p.conn.ReadFromUDP(buffer)
		if err != nil {
			if t.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.WithError(err).WithField("port", t.PortName(port)).Debug("udp read failed")
			continue
		}

		// Only the cabled peer may inject frames into this port
		if !addr.IP.Equal(p.peer.IP) || addr.Port != p.peer.Port {
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])

		if t.key != nil {
			opened, err := crypto.Open(t.key, data)
			if err != nil {
				t.log.WithField("port", t.PortName(port)).Debug("dropping unauthenticated frame")
				continue
			}
			data = opened
		}

		t.deliver(port, data)
	}
}

func (t *UDPTransport) closeSockets() {
	for _, p := range t.ports {
		p.conn.Close()
	}
}

// Close stops the receive loops and closes every socket
func (t *UDPTransport) Close() error {
	t.BaseTransport.Close()
	t.cancel()
	t.closeSockets()
	t.wg.Wait()
	return nil
}
