package switcher

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/packet"
)

// Outbound is a frame the STP engine wants transmitted on a port
type Outbound struct {
	Port int
	Data []byte
}

// STPStatus is a consistent snapshot of the spanning-tree state
type STPStatus struct {
	OwnBridgeID  address.BridgeID
	RootBridgeID address.BridgeID
	// RootPathCost does not wrap: a sender cost near the 32-bit limit plus the
	// increment is still larger than the sender cost
	RootPathCost uint64
	// RootPort is NoPort while this switch is root
	RootPort   int
	IsRoot     bool
	PortStates []PortState
}

// STPEngine runs the simplified two-state spanning tree.
//
// All root-election state and every port state live behind one mutex, so a BPDU
// being processed and a heartbeat tick never interleave. Frames the engine wants
// to send are returned to the caller and transmitted outside the lock.
type STPEngine struct {
	ownID address.BridgeID
	ports []Port

	mu           sync.Mutex
	states       []PortState
	rootID       address.BridgeID
	rootPathCost uint64
	rootPort     int

	log logrus.FieldLogger
}

// NewSTPEngine creates the engine with this switch as its own root
func NewSTPEngine(ownID address.BridgeID, ports []Port, log logrus.FieldLogger) *STPEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}

	e := &STPEngine{
		ownID:        ownID,
		ports:        ports,
		states:       make([]PortState, len(ports)),
		rootID:       ownID,
		rootPathCost: 0,
		rootPort:     NoPort,
		log:          log,
	}

	// Trunks start blocked pending election, access ports listen
	for i, p := range ports {
		if p.IsTrunk() {
			e.states[i] = PortStateBlocking
		} else {
			e.states[i] = PortStateListening
		}
	}
	// A freshly started switch is trivially its own root
	e.enforceRootListening()

	return e
}

// OwnBridgeID returns the immutable identity of this switch
func (e *STPEngine) OwnBridgeID() address.BridgeID {
	return e.ownID
}

// ProcessBPDU applies a BPDU received on port and returns the BPDUs to re-announce
func (e *STPEngine) ProcessBPDU(port int, bpdu packet.Bpdu) []Outbound {
	if port < 0 || port >= len(e.ports) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	oldRootID := e.rootID
	oldRootPathCost := e.rootPathCost
	var out []Outbound

	switch {
	case bpdu.RootBridgeID.Better(e.rootID):
		e.rootID = bpdu.RootBridgeID
		e.rootPathCost = uint64(bpdu.SenderPathCost) + packet.PathCostIncrement
		e.rootPort = port

		if oldRootID == e.ownID {
			for i, p := range e.ports {
				if p.IsTrunk() && i != e.rootPort {
					e.states[i] = PortStateBlocking
				}
			}
		}

		if e.states[e.rootPort] == PortStateBlocking {
			e.states[e.rootPort] = PortStateListening
		}

		// Re-announce on the other trunks as ourselves, carrying the root and
		// cost we held before this BPDU arrived.
		relay := packet.Bpdu{
			SenderBridgeID: e.ownID,
			SenderPathCost: wireCost(oldRootPathCost),
			RootBridgeID:   oldRootID,
		}.Marshal()
		for i, p := range e.ports {
			if p.IsTrunk() && i != port {
				out = append(out, Outbound{Port: i, Data: append([]byte(nil), relay...)})
			}
		}

		e.log.WithFields(logrus.Fields{
			"old_root":  oldRootID.String(),
			"root":      e.rootID.String(),
			"cost":      e.rootPathCost,
			"root_port": e.ports[port].Name,
		}).Info("adopted new root bridge")

	case bpdu.RootBridgeID == e.rootID:
		if port == e.rootPort {
			if cost := uint64(bpdu.SenderPathCost) + packet.PathCostIncrement; cost < e.rootPathCost {
				e.rootPathCost = cost
				e.log.WithField("cost", e.rootPathCost).Debug("shorter path to root")
			}
		} else if uint64(bpdu.SenderPathCost) > e.rootPathCost {
			// Downstream switch on a non-improving path: this side stays designated.
			// Known deviation from 802.1D: this also unblocks a port that an earlier
			// looped-back BPDU had blocked.
			e.states[port] = PortStateListening
		}

	case bpdu.SenderBridgeID == e.ownID:
		// Our own announcement came back: there is a loop through this port
		e.states[port] = PortStateBlocking
		e.log.WithField("port", e.ports[port].Name).Warn("own BPDU looped back, blocking port")
	}

	e.enforceRootListening()
	return out
}

// Heartbeat returns one hello BPDU per trunk port while this switch is root
func (e *STPEngine) Heartbeat() []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rootID != e.ownID {
		return nil
	}

	hello := packet.Bpdu{
		SenderBridgeID: e.ownID,
		SenderPathCost: 0,
		RootBridgeID:   e.ownID,
	}.Marshal()

	var out []Outbound
	for i, p := range e.ports {
		if p.IsTrunk() {
			out = append(out, Outbound{Port: i, Data: append([]byte(nil), hello...)})
		}
	}
	return out
}

// PortState returns the current state of one port
func (e *STPEngine) PortState(port int) PortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[port]
}

// IsRoot reports whether this switch currently believes itself to be root
func (e *STPEngine) IsRoot() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rootID == e.ownID
}

// Status returns a snapshot of the whole STP state
func (e *STPEngine) Status() STPStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	states := make([]PortState, len(e.states))
	copy(states, e.states)

	return STPStatus{
		OwnBridgeID:  e.ownID,
		RootBridgeID: e.rootID,
		RootPathCost: e.rootPathCost,
		RootPort:     e.rootPort,
		IsRoot:       e.rootID == e.ownID,
		PortStates:   states,
	}
}

// wireCost saturates a path cost to the 32-bit BPDU field
func wireCost(cost uint64) uint32 {
	if cost > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(cost)
}

// enforceRootListening opens every port while we are root. Caller holds mu.
func (e *STPEngine) enforceRootListening() {
	if e.rootID != e.ownID {
		return
	}
	for i := range e.states {
		e.states[i] = PortStateListening
	}
}
