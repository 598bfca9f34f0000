package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stella/l2switch/pkg/capture"
	"github.com/stella/l2switch/pkg/metrics"
	"github.com/stella/l2switch/pkg/switcher"
	"github.com/stella/l2switch/pkg/transport"
)

// Start builds the transport and switch and starts forwarding
func (n *Node) Start(ctx context.Context) error {
	// Check if the node is already running
	if n.IsRunning() {
		return errors.New("node is already running")
	}

	// Check if the node is in the process of stopping
	if n.GetState() == NodeStateStopping {
		return errors.New("node is in the process of stopping")
	}

	n.logger.Info("Starting node...")
	n.SetState(NodeStateStarting)

	if err := n.build(); err != nil {
		n.teardown()
		n.SetError(err)
		return err
	}

	if n.metrics != nil {
		if err := n.metrics.Start(); err != nil {
			n.teardown()
			n.SetError(err)
			return err
		}
	}

	if err := n.sw.Start(ctx); err != nil {
		n.teardown()
		n.SetError(err)
		return err
	}

	n.mu.Lock()
	n.shutdownChan = make(chan struct{})
	shutdown := n.shutdownChan
	n.mu.Unlock()

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		n.runMainLoop(shutdown)
	}()
	go func() {
		defer n.wg.Done()
		n.watchSwitch(ctx, shutdown)
	}()

	n.SetState(NodeStateRunning)
	n.logger.Info("Node started successfully")
	return nil
}

// build wires transport, capture, switch and metrics from the configuration
func (n *Node) build() error {
	sc := n.switchConfig
	if sc == nil {
		loaded, err := LoadSwitchConfig(n.config.Switch.ConfigFile)
		if err != nil {
			return err
		}
		sc = loaded
	}

	tr := n.transport
	if tr == nil {
		built, err := transport.NewTransport(
			transport.TransportType(n.config.Transport.Type),
			n.config.Transport.Options,
			n.logger.Entry().WithField("component", "transport"),
		)
		if err != nil {
			return fmt.Errorf("failed to create transport: %w", err)
		}
		tr = built
		n.mu.Lock()
		n.transport = tr
		n.ownsTransport = true
		n.mu.Unlock()
	}

	names := make([]string, tr.NumPorts())
	for i := range names {
		names[i] = tr.PortName(i)
	}
	ports, err := sc.Ports(names)
	if err != nil {
		return err
	}

	opts := []switcher.Option{
		switcher.WithLogger(n.logger.Entry()),
		switcher.WithHelloInterval(n.config.Switch.HelloInterval),
	}

	if n.config.Capture.Enabled {
		rec, err := capture.NewRecorder(n.config.Capture)
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.recorder = rec
		n.mu.Unlock()
		opts = append(opts, switcher.WithRecorder(rec))
		n.logger.Info("Capturing frames to %s", n.config.Capture.Path)
	}

	sw, err := switcher.NewSwitcher(n.config.Switch.Name, sc.BridgeID, ports, tr, opts...)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.sw = sw
	if n.config.Metrics.Enabled {
		n.metrics = metrics.NewServer(n.config.Metrics.Listen, n.config.Metrics.Path, n.logger.Entry().WithField("component", "metrics"))
	}
	n.mu.Unlock()
	return nil
}

// Stop begins the node shutdown process
func (n *Node) Stop() error {
	// Check if the node is already stopped
	if n.IsStopped() {
		return errors.New("node is already stopped")
	}

	// Check if the node is already stopping
	if n.GetState() == NodeStateStopping {
		return errors.New("node is already stopping")
	}

	n.logger.Info("Stopping node...")
	n.SetState(NodeStateStopping)

	// Signal shutdown
	n.mu.Lock()
	if n.shutdownChan != nil {
		close(n.shutdownChan)
		n.shutdownChan = nil
	}
	n.mu.Unlock()

	n.wg.Wait()
	err := n.teardown()

	n.SetState(NodeStateStopped)
	n.logger.Info("Node stopped successfully")
	return err
}

// teardown stops the switch and releases every resource that was built
func (n *Node) teardown() error {
	n.mu.Lock()
	sw, tr, rec, ms := n.sw, n.transport, n.recorder, n.metrics
	n.recorder, n.metrics = nil, nil
	// A transport built from configuration is rebuilt on the next Start
	if n.ownsTransport {
		n.transport = nil
		n.ownsTransport = false
	}
	n.mu.Unlock()

	var errs []error
	if sw != nil && sw.IsRunning() {
		if err := sw.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if tr != nil {
		if err := tr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rec != nil {
		if err := rec.Close(); err != nil {
			errs = append(errs, fmt.Errorf("capture: %w", err))
		}
	}
	if ms != nil {
		if err := ms.Stop(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runMainLoop periodically logs the switch status at debug level
func (n *Node) runMainLoop(shutdown <-chan struct{}) {
	n.logger.Debug("Main loop started")

	interval := n.config.Switch.StatusInterval
	if interval <= 0 {
		<-shutdown
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.logStatus()

		case <-shutdown:
			n.logger.Debug("Received shutdown signal, exiting main loop")
			return
		}
	}
}

// watchSwitch records an unexpected end of the switch loops as a node error.
// Cancelling the start context is an orderly stop, not a failure.
func (n *Node) watchSwitch(ctx context.Context, shutdown <-chan struct{}) {
	done := make(chan error, 1)
	sw := n.Switch()
	go func() { done <- sw.Wait() }()

	select {
	case err := <-done:
		select {
		case <-shutdown:
			return
		default:
		}
		if err == nil && ctx.Err() != nil {
			n.logger.Info("Switch stopped: %v", ctx.Err())
			return
		}
		if err == nil {
			err = errors.New("switch stopped unexpectedly")
		}
		n.logger.Error("Switch terminated: %v", err)
		n.SetError(err)
	case <-shutdown:
	}
}

func (n *Node) logStatus() {
	sw := n.Switch()
	if sw == nil {
		return
	}
	st := sw.Status()

	rootPort := "none"
	if st.STP.RootPort != switcher.NoPort {
		rootPort = st.Ports[st.STP.RootPort].Name
	}

	entry := n.logger.Entry().WithFields(logrus.Fields{
		"root":        st.STP.RootBridgeID.String(),
		"cost":        st.STP.RootPathCost,
		"root_port":   rootPort,
		"is_root":     st.STP.IsRoot,
		"mac_entries": len(st.MACEntries),
	})
	for i, p := range st.Ports {
		entry = entry.WithField("port."+p.Name, st.STP.PortStates[i].String())
	}
	entry.Debug("switch status")
}

// ShutdownWithTimeout attempts to gracefully shutdown the node within the specified timeout
func (n *Node) ShutdownWithTimeout(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- n.Stop() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errors.New("shutdown timed out")
	}
}
