package node

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stella/l2switch/pkg/capture"
	"github.com/stella/l2switch/pkg/metrics"
	"github.com/stella/l2switch/pkg/switcher"
	"github.com/stella/l2switch/pkg/transport"
)

// NodeState represents the current state of a node
type NodeState int

const (
	// NodeStateStopped means the node is not running
	NodeStateStopped NodeState = iota
	// NodeStateStarting means the node is in the process of starting up
	NodeStateStarting
	// NodeStateRunning means the node is fully operational
	NodeStateRunning
	// NodeStateStopping means the node is in the process of shutting down
	NodeStateStopping
	// NodeStateError means the node encountered an error
	NodeStateError
)

// String returns the string representation of the node state
func (s NodeState) String() string {
	switch s {
	case NodeStateStopped:
		return "STOPPED"
	case NodeStateStarting:
		return "STARTING"
	case NodeStateRunning:
		return "RUNNING"
	case NodeStateStopping:
		return "STOPPING"
	case NodeStateError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// NodeOption customises a Node
type NodeOption func(*Node)

// WithTransport makes the node use an existing transport instead of building
// one from the transport section of the configuration
func WithTransport(tr transport.Transport) NodeOption {
	return func(n *Node) { n.transport = tr }
}

// WithSwitchConfig supplies the switch configuration instead of reading switch.config_file
func WithSwitchConfig(sc *SwitchConfig) NodeOption {
	return func(n *Node) { n.switchConfig = sc }
}

// Node hosts one switch together with its transport, capture and metrics endpoint
type Node struct {
	// ID is the switch name taken from the configuration
	ID string

	// State represents the current state of the node
	State NodeState

	config       *Config
	logger       *Logger
	switchConfig *SwitchConfig

	transport     transport.Transport
	ownsTransport bool
	sw            *switcher.Switcher
	recorder      *capture.Recorder
	metrics       *metrics.Server

	// mu protects concurrent access to the node
	mu sync.RWMutex

	// shutdownChan is used to signal shutdown to goroutines
	shutdownChan chan struct{}
	wg           sync.WaitGroup

	// err holds the last error encountered by the node
	err error
}

// NewNode creates a new Stella node from a validated configuration
func NewNode(config *Config, logger *Logger, opts ...NodeOption) (*Node, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewLogger(config.Switch.Name, config.Log.Level)
	}

	n := &Node{
		ID:     config.Switch.Name,
		State:  NodeStateStopped,
		config: config,
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Switch returns the running switch, nil before Start
func (n *Node) Switch() *switcher.Switcher {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sw
}

// MetricsAddr returns the bound metrics address, empty when metrics are off
func (n *Node) MetricsAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.metrics == nil {
		return ""
	}
	return n.metrics.Addr()
}

// GetState returns the current state of the node
func (n *Node) GetState() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.State
}

// SetState sets the state of the node
func (n *Node) SetState(state NodeState) {
	n.mu.Lock()
	n.State = state
	n.mu.Unlock()
}

// GetError returns the last error encountered by the node
func (n *Node) GetError() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.err
}

// SetError sets the error state for the node
func (n *Node) SetError(err error) {
	n.mu.Lock()
	n.err = err
	n.State = NodeStateError
	n.mu.Unlock()
}

// IsRunning returns true if the node is in the RUNNING state
func (n *Node) IsRunning() bool {
	return n.GetState() == NodeStateRunning
}

// IsStopped returns true if the node is in the STOPPED state
func (n *Node) IsStopped() bool {
	return n.GetState() == NodeStateStopped
}
