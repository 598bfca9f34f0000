package switcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/metrics"
	"github.com/stella/l2switch/pkg/packet"
	"github.com/stella/l2switch/pkg/transport"
)

// 交换机状态枚举
type SwitchState int

const (
	StateStopped SwitchState = iota
	StateRunning
)

// String returns the state name
func (s SwitchState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Lifecycle errors
var (
	ErrNotRunning     = errors.New("stella: switch is not running")
	ErrAlreadyRunning = errors.New("stella: switch is already running")
)

// FrameRecorder receives a copy of every frame read from the transport
type FrameRecorder interface {
	Record(port int, data []byte) error
}

// Option customises a Switcher
type Option func(*Switcher)

// WithLogger sets the logger used by the switch and its components
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Switcher) { s.log = log }
}

// WithHelloInterval overrides the 1s BPDU heartbeat period
func WithHelloInterval(d time.Duration) Option {
	return func(s *Switcher) { s.helloInterval = d }
}

// WithRecorder attaches a frame recorder (pcap capture)
func WithRecorder(r FrameRecorder) Option {
	return func(s *Switcher) { s.recorder = r }
}

// 交换机结构: owns the port table, STP state and MAC table for the process lifetime
type Switcher struct {
	// 基本信息
	ID   string
	Name string

	// 组件
	ports     []Port
	stp       *STPEngine
	macTable  *MACTable
	forwarder *Forwarder
	scheduler *BPDUScheduler
	transport transport.Transport
	recorder  FrameRecorder

	helloInterval time.Duration
	log           logrus.FieldLogger

	// 同步控制
	mutex  sync.Mutex
	state  SwitchState
	cancel context.CancelFunc
	wg     sync.WaitGroup
	err    error
}

// 创建新的交换机实例
func NewSwitcher(name string, bridgeID address.BridgeID, ports []Port, tr transport.Transport, opts ...Option) (*Switcher, error) {
	if name == "" {
		return nil, errors.New("switch name cannot be empty")
	}
	if tr == nil {
		return nil, errors.New("transport cannot be nil")
	}
	if err := validatePorts(ports); err != nil {
		return nil, err
	}
	if tr.NumPorts() != len(ports) {
		return nil, fmt.Errorf("transport has %d ports, configuration has %d", tr.NumPorts(), len(ports))
	}

	s := &Switcher{
		ID:            uuid.NewString(),
		Name:          name,
		ports:         ports,
		macTable:      NewMACTable(),
		transport:     tr,
		helloInterval: DefaultHelloInterval,
		log:           logrus.StandardLogger(),
		state:         StateStopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"switch": name, "instance": s.ID})

	s.stp = NewSTPEngine(bridgeID, ports, s.log.WithField("component", "stp"))
	s.forwarder = NewForwarder(name, ports, s.stp, tr, s.log.WithField("component", "forwarder"))
	s.scheduler = NewBPDUScheduler(s.stp, s.helloInterval, s.sendBPDUs, s.log.WithField("component", "scheduler"))

	s.publishSTPMetrics()
	return s, nil
}

// Ports returns the port table
func (s *Switcher) Ports() []Port {
	out := make([]Port, len(s.ports))
	copy(out, s.ports)
	return out
}

// STP returns the spanning-tree engine
func (s *Switcher) STP() *STPEngine {
	return s.stp
}

// MACTable returns the learning table
func (s *Switcher) MACTable() *MACTable {
	return s.macTable
}

// Scheduler returns the BPDU scheduler
func (s *Switcher) Scheduler() *BPDUScheduler {
	return s.scheduler
}

// GetState returns the lifecycle state
func (s *Switcher) GetState() SwitchState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// IsRunning reports whether the loops are active
func (s *Switcher) IsRunning() bool {
	return s.GetState() == StateRunning
}

// Err returns the error that ended the receive loop, if any
func (s *Switcher) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// Start launches the receive loop and the BPDU scheduler
func (s *Switcher) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == StateRunning {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.err = nil
	s.state = StateRunning

	for _, p := range s.ports {
		s.log.WithFields(logrus.Fields{"index": p.Index, "port": p.String()}).Info("port configured")
	}
	s.log.WithField("bridge_id", s.stp.OwnBridgeID().String()).Info("switch started")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		err := s.receiveLoop(runCtx)
		s.mutex.Lock()
		s.err = err
		s.mutex.Unlock()
		// A dead receive loop takes the scheduler with it
		cancel()
	}()

	return nil
}

// Stop cancels both loops and waits for them
func (s *Switcher) Stop() error {
	s.mutex.Lock()
	if s.state != StateRunning {
		s.mutex.Unlock()
		return ErrNotRunning
	}
	cancel := s.cancel
	s.mutex.Unlock()

	cancel()
	s.wg.Wait()

	s.mutex.Lock()
	s.state = StateStopped
	s.mutex.Unlock()

	s.log.Info("switch stopped")
	return nil
}

// Wait blocks until the receive loop and scheduler have exited
func (s *Switcher) Wait() error {
	s.wg.Wait()
	return s.Err()
}

// Run starts the switch and blocks until ctx is done or the transport closes
func (s *Switcher) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	err := s.Wait()

	s.mutex.Lock()
	s.state = StateStopped
	s.mutex.Unlock()

	s.log.Info("switch stopped")
	return err
}

// receiveLoop processes one frame at a time until ctx is done or the transport closes
func (s *Switcher) receiveLoop(ctx context.Context) error {
	for {
		port, data, err := s.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Warn("receive failed")
			continue
		}

		if s.recorder != nil {
			if err := s.recorder.Record(port, data); err != nil {
				s.log.WithError(err).Debug("frame capture failed")
			}
		}

		s.HandleFrame(port, data)
	}
}

// HandleFrame runs one received frame through classification, learning and forwarding
func (s *Switcher) HandleFrame(ingress int, data []byte) {
	if ingress < 0 || ingress >= len(s.ports) {
		s.log.WithField("port", ingress).Warn("frame on unknown port")
		return
	}
	in := s.ports[ingress]
	metrics.FramesReceivedTotal.WithLabelValues(s.Name, in.Name).Inc()

	hdr, err := packet.DecodeHeader(data)
	if err != nil {
		metrics.FramesDroppedTotal.WithLabelValues(s.Name, metrics.DropMalformed).Inc()
		s.log.WithError(err).WithField("port", in.Name).Debug("dropping frame")
		return
	}

	if packet.IsBPDUDestination(hdr.Dst) {
		s.handleBPDU(ingress, data)
		return
	}

	if in.IsTrunk() && s.stp.PortState(ingress) == PortStateBlocking {
		metrics.FramesDroppedTotal.WithLabelValues(s.Name, metrics.DropBlockingIngress).Inc()
		return
	}

	if debugEnabled(s.log) {
		s.log.WithField("port", in.Name).Debugf("received %s", packet.Describe(data))
	}

	s.macTable.Learn(hdr.Src, ingress)
	metrics.MACTableEntries.WithLabelValues(s.Name).Set(float64(s.macTable.Len()))

	if hdr.Dst.IsUnicast() {
		// A known destination gets exactly its learned port, even when that is
		// the ingress port; only flooding excludes the ingress
		if egress, ok := s.macTable.Lookup(hdr.Dst); ok {
			s.forwarder.Dispatch(ingress, egress, data, hdr.VlanID)
			return
		}
	}

	metrics.FramesFloodedTotal.WithLabelValues(s.Name).Inc()
	for egress := range s.ports {
		if egress == ingress {
			continue
		}
		s.forwarder.Dispatch(ingress, egress, data, hdr.VlanID)
	}
}

func (s *Switcher) handleBPDU(ingress int, data []byte) {
	bpdu, err := packet.ParseBPDU(data)
	if err != nil {
		metrics.FramesDroppedTotal.WithLabelValues(s.Name, metrics.DropMalformedBPDU).Inc()
		s.log.WithError(err).Debug("dropping BPDU")
		return
	}
	metrics.BPDUsReceivedTotal.WithLabelValues(s.Name, s.ports[ingress].Name).Inc()

	before := s.stp.Status().RootBridgeID
	out := s.stp.ProcessBPDU(ingress, bpdu)
	if s.stp.Status().RootBridgeID != before {
		metrics.RootChangesTotal.WithLabelValues(s.Name).Inc()
	}

	s.sendBPDUs(out)
	s.publishSTPMetrics()
}

// sendBPDUs transmits engine output; called outside the STP lock
func (s *Switcher) sendBPDUs(out []Outbound) {
	for _, o := range out {
		if err := s.transport.Send(o.Port, o.Data); err != nil {
			s.log.WithError(err).WithField("port", s.ports[o.Port].Name).Debug("BPDU send failed")
			continue
		}
		metrics.BPDUsSentTotal.WithLabelValues(s.Name, s.ports[o.Port].Name).Inc()
	}
}

// SwitchStatus is a point-in-time view of the switch for logs and the CLI
type SwitchStatus struct {
	Name       string
	ID         string
	State      SwitchState
	Ports      []Port
	STP        STPStatus
	MACEntries []MACEntry
}

// Status returns a snapshot of ports, STP state and learned addresses
func (s *Switcher) Status() SwitchStatus {
	return SwitchStatus{
		Name:       s.Name,
		ID:         s.ID,
		State:      s.GetState(),
		Ports:      s.Ports(),
		STP:        s.stp.Status(),
		MACEntries: s.macTable.Entries(),
	}
}

func (s *Switcher) publishSTPMetrics() {
	st := s.stp.Status()
	metrics.IsRoot.WithLabelValues(s.Name).Set(metrics.BoolGauge(st.IsRoot))
	for i, state := range st.PortStates {
		metrics.PortListening.WithLabelValues(s.Name, s.ports[i].Name).Set(metrics.BoolGauge(state == PortStateListening))
	}
}

// debugEnabled avoids rendering frames for logs nobody reads
func debugEnabled(log logrus.FieldLogger) bool {
	switch l := log.(type) {
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	default:
		return false
	}
}
