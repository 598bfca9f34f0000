package transport

import (
	"fmt"
	"sync"
)

// memLink is the far end of a virtual cable
type memLink struct {
	peer *MemoryTransport
	port int
}

// MemoryTransport connects switches inside one process. Ports can be cabled to a
// port of another MemoryTransport; frames sent on an uncabled port are kept in
// an outbox so tests can inspect them.
type MemoryTransport struct {
	*BaseTransport

	mu     sync.Mutex
	links  []*memLink
	outbox [][][]byte
}

// NewMemoryTransport creates an in-process transport with the given port names
func NewMemoryTransport(names ...string) *MemoryTransport {
	return &MemoryTransport{
		BaseTransport: NewBaseTransport(names, DefaultQueueSize),
		links:         make([]*memLink, len(names)),
		outbox:        make([][][]byte, len(names)),
	}
}

// Connect cables port pa of a to port pb of b
func Connect(a *MemoryTransport, pa int, b *MemoryTransport, pb int) error {
	if pa < 0 || pa >= a.NumPorts() || pb < 0 || pb >= b.NumPorts() {
		return NewTransportError(fmt.Sprintf("invalid link %d<->%d", pa, pb), CodeInvalidPort, nil)
	}

	a.mu.Lock()
	a.links[pa] = &memLink{peer: b, port: pb}
	a.mu.Unlock()

	b.mu.Lock()
	b.links[pb] = &memLink{peer: a, port: pa}
	b.mu.Unlock()
	return nil
}

// Send delivers a copy of the frame to the cabled peer, or to the outbox
func (m *MemoryTransport) Send(port int, data []byte) error {
	if err := m.checkPort(port); err != nil {
		return err
	}

	frame := append([]byte(nil), data...)

	m.mu.Lock()
	link := m.links[port]
	if link == nil {
		m.outbox[port] = append(m.outbox[port], frame)
	}
	m.mu.Unlock()

	if link != nil {
		link.peer.deliver(link.port, frame)
	}
	return nil
}

// Inject queues a frame as if it had arrived on port
func (m *MemoryTransport) Inject(port int, data []byte) error {
	if port < 0 || port >= m.NumPorts() {
		return NewTransportError(fmt.Sprintf("invalid port %d", port), CodeInvalidPort, nil)
	}
	if !m.deliver(port, append([]byte(nil), data...)) {
		return NewTransportError("receive queue full or closed", CodeSendFailed, nil)
	}
	return nil
}

// Drain returns and clears the frames sent on an uncabled port
func (m *MemoryTransport) Drain(port int) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.outbox[port]
	m.outbox[port] = nil
	return out
}
