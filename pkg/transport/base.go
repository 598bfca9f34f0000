package transport

import (
	"context"
	"fmt"
	"sync"
)

// DefaultQueueSize is the number of received frames buffered before tail drop
const DefaultQueueSize = 1024

// inbound is a frame waiting for Receive
type inbound struct {
	port int
	data []byte
}

// BaseTransport implements the port table, the shared receive queue and the
// close/state handling common to every transport
type BaseTransport struct {
	names []string
	rx    chan inbound
	done  chan struct{}

	mu        sync.RWMutex
	state     ConnectionState
	dropped   uint64
	closeOnce sync.Once
}

// NewBaseTransport creates a base transport over the given port names
func NewBaseTransport(names []string, queueSize int) *BaseTransport {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	cp := make([]string, len(names))
	copy(cp, names)
	return &BaseTransport{
		names: cp,
		rx:    make(chan inbound, queueSize),
		done:  make(chan struct{}),
		state: StateConnected,
	}
}

// Receive returns the next queued frame
func (bt *BaseTransport) Receive(ctx context.Context) (int, []byte, error) {
	select {
	case f := <-bt.rx:
		return f.port, f.data, nil
	case <-bt.done:
		return 0, nil, NewTransportError("transport is closed", CodeClosed, ErrClosed)
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// deliver queues a received frame; the frame is dropped when the queue is full
func (bt *BaseTransport) deliver(port int, data []byte) bool {
	select {
	case <-bt.done:
		return false
	default:
	}

	select {
	case bt.rx <- inbound{port: port, data: data}:
		return true
	default:
		bt.mu.Lock()
		bt.dropped++
		bt.mu.Unlock()
		return false
	}
}

// Dropped returns the number of frames lost to a full receive queue
func (bt *BaseTransport) Dropped() uint64 {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.dropped
}

// PortName returns the display name of a port
func (bt *BaseTransport) PortName(port int) string {
	if port < 0 || port >= len(bt.names) {
		return fmt.Sprintf("port%d", port)
	}
	return bt.names[port]
}

// PortNames returns all port names in index order
func (bt *BaseTransport) PortNames() []string {
	cp := make([]string, len(bt.names))
	copy(cp, bt.names)
	return cp
}

// NumPorts returns the number of ports
func (bt *BaseTransport) NumPorts() int {
	return len(bt.names)
}

// GetState returns the current state of the transport
func (bt *BaseTransport) GetState() ConnectionState {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.state
}

// checkPort validates a port index for Send
func (bt *BaseTransport) checkPort(port int) error {
	if port < 0 || port >= len(bt.names) {
		return NewTransportError(fmt.Sprintf("invalid port %d", port), CodeInvalidPort, nil)
	}
	if bt.isClosed() {
		return NewTransportError("transport is closed", CodeClosed, ErrClosed)
	}
	return nil
}

// isClosed checks if the transport is closed
func (bt *BaseTransport) isClosed() bool {
	select {
	case <-bt.done:
		return true
	default:
		return false
	}
}

// Close marks the transport closed and wakes blocked receivers
func (bt *BaseTransport) Close() error {
	bt.closeOnce.Do(func() {
		bt.mu.Lock()
		bt.state = StateDisconnected
		bt.mu.Unlock()
		close(bt.done)
	})
	return nil
}
